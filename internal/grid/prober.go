// internal/grid/prober.go
package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/internal/browser/realm"
	"github.com/xkilldash9x/formbridge/internal/config"
)

var (
	// ErrNoInstance means no accessor produced a component instance: the host
	// page changed how components are attached to rows.
	ErrNoInstance = errors.New("no framework component instance found on row")
	// ErrNoMethod means an instance was found but it exposes none of the known
	// data-assignment methods: the component's API changed.
	ErrNoMethod = errors.New("component instance present but no known data-assignment method")
)

// Prober discovers the component instance behind a row and writes the row
// data through the first known method it exposes.
type Prober struct {
	accessors []config.AccessorConfig
	methods   []string
	logger    *zap.Logger
}

// NewProber creates a prober with the configured accessor and method cascades.
func NewProber(cfg config.GridConfig, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		accessors: cfg.Accessors,
		methods:   cfg.Methods,
		logger:    logger.Named("prober"),
	}
}

// Assign writes fields into the row's component and returns the name of the
// method that accepted them. A method reached through a property accessor is
// reported with the property as prefix, such as "__vue__.setRowValue".
func (p *Prober) Assign(ctx context.Context, row realm.Value, fields map[string]string) (string, error) {
	foundInstance := false
	for _, acc := range p.accessors {
		inst, err := p.instance(ctx, row, acc)
		if err != nil {
			return "", err
		}
		if realm.IsNullish(inst) {
			continue
		}
		foundInstance = true

		for _, method := range p.methods {
			ok, err := realm.HasMethod(ctx, inst, method)
			if err != nil {
				return "", err
			}
			if !ok {
				continue
			}
			p.logger.Debug("Invoking data-assignment method.", zap.String("accessor", describeAccessor(acc)), zap.String("method", method))
			if _, err := inst.Call(ctx, method, fields); err != nil {
				return "", fmt.Errorf("%s failed: %w", method, err)
			}
			if acc.Kind != config.AccessorMethod {
				return acc.Name + "." + method, nil
			}
			return method, nil
		}
	}

	if foundInstance {
		return "", fmt.Errorf("%w (tried %s)", ErrNoMethod, strings.Join(p.methods, ", "))
	}
	names := make([]string, len(p.accessors))
	for i, acc := range p.accessors {
		names[i] = describeAccessor(acc)
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNoInstance, strings.Join(names, ", "))
}

// instance runs one accessor against row. A missing accessor yields nil.
func (p *Prober) instance(ctx context.Context, row realm.Value, acc config.AccessorConfig) (realm.Value, error) {
	switch acc.Kind {
	case config.AccessorMethod:
		ok, err := realm.HasMethod(ctx, row, acc.Name)
		if err != nil || !ok {
			return nil, err
		}
		inst, err := row.Call(ctx, acc.Name)
		if err != nil {
			return nil, fmt.Errorf("%s() failed: %w", acc.Name, err)
		}
		return inst, nil
	case config.AccessorProperty:
		// Back-reference properties such as __vue__ are framework internals.
		// Best-effort and version-fragile: they disappear across major versions.
		inst, err := row.Get(ctx, acc.Name)
		if err != nil {
			return nil, err
		}
		if t := inst.Type(); t != realm.TypeObject && t != realm.TypeFunction {
			return nil, nil
		}
		return inst, nil
	default:
		return nil, fmt.Errorf("unknown accessor kind %q", acc.Kind)
	}
}

// Accessors reports which accessors resolve to an instance on row.
func (p *Prober) Accessors(ctx context.Context, row realm.Value) (map[string]bool, error) {
	out := make(map[string]bool, len(p.accessors))
	for _, acc := range p.accessors {
		var present bool
		switch acc.Kind {
		case config.AccessorMethod:
			ok, err := realm.HasMethod(ctx, row, acc.Name)
			if err != nil {
				return nil, err
			}
			present = ok
		default:
			inst, err := p.instance(ctx, row, acc)
			if err != nil {
				return nil, err
			}
			present = !realm.IsNullish(inst)
		}
		out[describeAccessor(acc)] = present
	}
	return out, nil
}

func describeAccessor(acc config.AccessorConfig) string {
	if acc.Kind == config.AccessorMethod {
		return acc.Name + "()"
	}
	return acc.Name
}
