// internal/formfill/inspect.go
package formfill

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/browser/dom"
)

// Inspect lists every editable element with the index a positional
// identifier would use for it.
func Inspect(ctx context.Context, doc dom.Document) ([]schemas.ElementInfo, error) {
	els, err := doc.Editables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list editable elements: %w", err)
	}
	out := make([]schemas.ElementInfo, 0, len(els))
	for _, el := range els {
		info := el.Info()
		out = append(out, schemas.ElementInfo{
			Index:       info.Index,
			TagName:     info.Tag,
			Type:        info.Type,
			ID:          info.ID,
			Name:        info.Name,
			Placeholder: info.Placeholder,
			ClassName:   info.ClassName,
			Value:       info.Value,
			Visible:     info.Visible,
			Enabled:     !info.Disabled,
		})
	}
	return out, nil
}
