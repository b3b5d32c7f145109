// internal/formfill/applier.go
package formfill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/internal/browser/dom"
)

var (
	ErrElementDisabled    = errors.New("element is disabled")
	ErrElementReadOnly    = errors.New("element is read-only")
	ErrNoMatchingOption   = errors.New("no option matches the value")
	ErrUnsupportedElement = errors.New("element kind cannot hold a value")
)

// ChangeEvents is the event sequence fired after every write. input alone
// does not finalize validation in most frameworks; blur does.
var ChangeEvents = []string{"input", "change", "blur"}

// valueWriter stores value into el without firing events.
type valueWriter func(ctx context.Context, el dom.Element, value string) error

// Applier writes values into resolved elements so the host page observes them.
type Applier struct {
	writers map[dom.Kind]valueWriter
	logger  *zap.Logger
}

// NewApplier creates an applier with the standard writers.
func NewApplier(logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{
		writers: map[dom.Kind]valueWriter{
			dom.KindText:     writeText,
			dom.KindTextArea: writeText,
			dom.KindCheckbox: writeChecked,
			dom.KindRadio:    writeChecked,
			dom.KindSelect:   writeSelect,
		},
		logger: logger.Named("applier"),
	}
}

// Apply writes value into el and fires the change event sequence once.
func (a *Applier) Apply(ctx context.Context, el dom.Element, value string) error {
	info := el.Info()
	switch {
	case info.Disabled:
		return ErrElementDisabled
	case info.ReadOnly:
		return ErrElementReadOnly
	}

	write, ok := a.writers[info.Kind()]
	if !ok {
		return fmt.Errorf("%w: <%s type=%q>", ErrUnsupportedElement, info.Tag, info.Type)
	}
	if err := write(ctx, el, value); err != nil {
		return err
	}

	for _, eventType := range ChangeEvents {
		if err := el.Dispatch(ctx, eventType); err != nil {
			return fmt.Errorf("failed to dispatch %s event: %w", eventType, err)
		}
	}
	a.logger.Debug("Value applied.", zap.String("path", info.Path), zap.Stringer("kind", info.Kind()))
	return nil
}

func writeText(ctx context.Context, el dom.Element, value string) error {
	if err := el.SetNativeValue(ctx, value); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

func writeChecked(ctx context.Context, el dom.Element, value string) error {
	if err := el.SetChecked(ctx, Truthy(value)); err != nil {
		return fmt.Errorf("failed to set checked state: %w", err)
	}
	return nil
}

func writeSelect(ctx context.Context, el dom.Element, value string) error {
	idx := MatchOption(el.Info().Options, value)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrNoMatchingOption, value)
	}
	if err := el.SelectOption(ctx, idx); err != nil {
		return fmt.Errorf("failed to select option: %w", err)
	}
	return nil
}

// Truthy reports whether value checks a checkbox or radio: exactly "true"
// (any case) or "1". Surrounding whitespace makes it false.
func Truthy(value string) bool {
	return strings.EqualFold(value, "true") || value == "1"
}

// MatchOption returns the position of the first option whose value equals
// value, else the first whose trimmed text does, else -1.
func MatchOption(options []dom.Option, value string) int {
	for i, o := range options {
		if o.Value == value {
			return i
		}
	}
	want := strings.TrimSpace(value)
	for i, o := range options {
		if strings.TrimSpace(o.Text) == want {
			return i
		}
	}
	return -1
}
