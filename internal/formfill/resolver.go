// internal/formfill/resolver.go
package formfill

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/internal/browser/dom"
)

// Strategy names how an identifier was matched.
type Strategy string

const (
	StrategyID       Strategy = "id"
	StrategyName     Strategy = "name"
	StrategyPosition Strategy = "position"
)

// Resolver maps a field identifier to an editable element.
type Resolver struct {
	includeHidden bool
	logger        *zap.Logger
}

// NewResolver creates a resolver. With includeHidden false, elements hidden
// by CSS are not counted for positional identifiers.
func NewResolver(includeHidden bool, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{includeHidden: includeHidden, logger: logger.Named("resolver")}
}

// Resolve finds the element for identifier, trying the id attribute, then the
// name attribute, then a zero-based position among editables. No match is
// reported as (nil, false, nil).
func (r *Resolver) Resolve(ctx context.Context, doc dom.Document, identifier string) (dom.Element, bool, error) {
	els, err := doc.Editables(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list editable elements: %w", err)
	}
	el, strategy := r.match(els, identifier)
	if el == nil {
		return nil, false, nil
	}
	r.logger.Debug("Field resolved.",
		zap.String("identifier", identifier),
		zap.String("strategy", string(strategy)),
		zap.String("path", el.Info().Path))
	return el, true, nil
}

func (r *Resolver) match(els []dom.Element, identifier string) (dom.Element, Strategy) {
	if identifier == "" {
		return nil, ""
	}
	for _, el := range els {
		if el.Info().ID == identifier {
			return el, StrategyID
		}
	}
	for _, el := range els {
		if el.Info().Name == identifier {
			return el, StrategyName
		}
	}

	pos, err := strconv.ParseUint(identifier, 10, 31)
	if err != nil {
		return nil, ""
	}
	candidates := els
	if !r.includeHidden {
		candidates = make([]dom.Element, 0, len(els))
		for _, el := range els {
			if el.Info().Visible {
				candidates = append(candidates, el)
			}
		}
	}
	if int(pos) >= len(candidates) {
		return nil, ""
	}
	return candidates[pos], StrategyPosition
}
