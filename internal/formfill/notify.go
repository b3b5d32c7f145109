// internal/formfill/notify.go
package formfill

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/api/schemas"
)

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, message string, severity schemas.Severity) error {
	switch severity {
	case schemas.SeverityError:
		n.logger.Error(message)
	case schemas.SeveritySuccess:
		n.logger.Info(message, zap.String("severity", string(severity)))
	default:
		n.logger.Info(message)
	}
	return nil
}

// MultiNotifier fans a notification out to several sinks. The first error is
// returned after every sink has been tried.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, message string, severity schemas.Severity) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, message, severity); err != nil && first == nil {
			first = err
		}
	}
	return first
}
