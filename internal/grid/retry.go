// internal/grid/retry.go
package grid

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/browser/realm"
	"github.com/xkilldash9x/formbridge/internal/config"
)

// Controller runs locate-then-assign attempts for one request with a fixed
// delay between attempts. Faults never leave Run: it always returns a result.
type Controller struct {
	realm       realm.Realm
	locator     *Locator
	prober      *Prober
	maxAttempts int
	delay       time.Duration
	logger      *zap.Logger
}

// NewController creates a controller over r.
func NewController(r realm.Realm, cfg config.GridConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Controller{
		realm:       r,
		locator:     NewLocator(cfg, logger),
		prober:      NewProber(cfg, logger),
		maxAttempts: maxAttempts,
		delay:       cfg.RetryDelay,
		logger:      logger.Named("grid_retry"),
	}
}

// Run performs the insertion. Each attempt re-runs the locator from the top,
// because the page may have changed since the last one.
func (c *Controller) Run(ctx context.Context, req schemas.RowInsertionRequest) schemas.RowInsertionResult {
	logger := c.logger.With(zap.Int64("correlation_id", req.CorrelationID), zap.Int("row_index", req.RowIndex))

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		method, err := c.attempt(ctx, req)
		if err == nil {
			logger.Info("Row inserted.", zap.String("method", method), zap.Int("attempt", attempt))
			return schemas.NewRowSuccess(req, method)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == c.maxAttempts {
			break
		}
		logger.Debug("Attempt failed; retrying.",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Duration("delay", c.delay),
			zap.Error(err))
		if err := sleep(ctx, c.delay); err != nil {
			lastErr = err
			break
		}
	}

	logger.Warn("Row insertion failed.", zap.Error(lastErr))
	return schemas.NewRowFailure(req, lastErr.Error())
}

func (c *Controller) attempt(ctx context.Context, req schemas.RowInsertionRequest) (method string, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic during insertion attempt.", zap.Any("panic", r), zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	scoped, release := realm.Scope(c.realm)
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			c.logger.Debug("Failed to release page handles.", zap.Error(rerr))
		}
	}()

	row, err := c.locator.Locate(ctx, scoped, req)
	if err != nil {
		return "", err
	}
	return c.prober.Assign(ctx, row, req.Fields)
}
