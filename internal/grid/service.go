// internal/grid/service.go
package grid

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/bridge"
	"github.com/xkilldash9x/formbridge/internal/browser/realm"
	"github.com/xkilldash9x/formbridge/internal/config"
)

// Service answers bridge insert requests against one page realm.
type Service struct {
	controller *Controller
	prober     *Prober
	realm      realm.Realm
	cfg        config.GridConfig
}

var _ bridge.Handler = (*Service)(nil)

// NewService creates the page-side handler for r.
func NewService(r realm.Realm, cfg config.GridConfig, logger *zap.Logger) *Service {
	return &Service{
		controller: NewController(r, cfg, logger),
		prober:     NewProber(cfg, logger),
		realm:      r,
		cfg:        cfg,
	}
}

// HandleInsert runs the request to a terminal result.
func (s *Service) HandleInsert(ctx context.Context, req schemas.RowInsertionRequest) schemas.RowInsertionResult {
	return s.controller.Run(ctx, req)
}

// Diagnose lists the rows matching the configured row selector anywhere in
// the document, with the accessors each one exposes.
func (s *Service) Diagnose(ctx context.Context) ([]schemas.RowDiagnostic, error) {
	r, release := realm.Scope(s.realm)
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	doc, err := realm.Document(ctx, r)
	if err != nil {
		return nil, err
	}
	rows, err := realm.QueryAll(ctx, doc, s.cfg.RowSelector)
	if err != nil {
		return nil, err
	}

	out := make([]schemas.RowDiagnostic, 0, len(rows))
	for i, row := range rows {
		class, err := realm.String(ctx, row, "className")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		accessors, err := s.prober.Accessors(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, schemas.RowDiagnostic{
			Selector:  s.cfg.RowSelector,
			Index:     i,
			ClassName: class,
			Accessors: accessors,
		})
	}
	return out, nil
}

// Summary renders the one notification shown after a row batch.
func Summary(report schemas.RowBatchReport) (string, schemas.Severity) {
	total := report.Succeeded + report.Failed
	switch {
	case total > 0 && report.Failed == 0:
		return fmt.Sprintf("Inserted %d rows into the grid.", total), schemas.SeveritySuccess
	case report.Succeeded > 0:
		return fmt.Sprintf("Inserted %d/%d rows. %d failed.", report.Succeeded, total, report.Failed), schemas.SeverityInfo
	default:
		return fmt.Sprintf("No rows were inserted (%d failed).", report.Failed), schemas.SeverityError
	}
}
