// internal/formfill/orchestrator.go
package formfill

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/browser/dom"
	"github.com/xkilldash9x/formbridge/internal/config"
)

// Notifier receives the one summary message produced per batch.
type Notifier interface {
	Notify(ctx context.Context, message string, severity schemas.Severity) error
}

// Hooks are optional callbacks run synchronously around each assignment, in
// assignment order.
type Hooks struct {
	BeforeAssignment func(index int, a schemas.FieldAssignment)
	AfterAssignment  func(index int, res schemas.FieldResult)
}

// Orchestrator fills a batch of field assignments. It is the boundary where
// per-assignment faults are contained: FillForm never fails as a whole.
type Orchestrator struct {
	resolver *Resolver
	applier  *Applier
	notifier Notifier
	hooks    Hooks
	logger   *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets the summary sink.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithHooks sets the per-assignment callbacks.
func WithHooks(h Hooks) Option {
	return func(o *Orchestrator) { o.hooks = h }
}

// NewOrchestrator wires a resolver and an applier from cfg.
func NewOrchestrator(cfg config.FormFillConfig, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		resolver: NewResolver(cfg.IncludeHidden, logger),
		applier:  NewApplier(logger),
		logger:   logger.Named("formfill"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FillForm processes the assignments one by one, in order. Every assignment
// is represented in the report exactly once.
func (o *Orchestrator) FillForm(ctx context.Context, doc dom.Document, assignments []schemas.FieldAssignment) schemas.FillReport {
	report := schemas.FillReport{Results: make([]schemas.FieldResult, 0, len(assignments))}

	for i, a := range assignments {
		if o.hooks.BeforeAssignment != nil {
			o.hooks.BeforeAssignment(i, a)
		}

		var res schemas.FieldResult
		if err := ctx.Err(); err != nil {
			res = schemas.FieldResult{Assignment: a, Outcome: schemas.OutcomeErrored, Reason: err.Error()}
		} else {
			res = o.fillOne(ctx, doc, a)
		}
		report.Record(res)
		o.logResult(i, res)

		if o.hooks.AfterAssignment != nil {
			o.hooks.AfterAssignment(i, res)
		}
	}

	o.logger.Info("Form fill complete.",
		zap.Int("total", report.Total()),
		zap.Int("filled", report.Filled),
		zap.Int("not_found", report.NotFound),
		zap.Int("errored", report.Errored))
	o.notify(ctx, report)
	return report
}

// fillOne resolves and applies a single assignment. Panics are converted into
// an Errored result.
func (o *Orchestrator) fillOne(ctx context.Context, doc dom.Document, a schemas.FieldAssignment) (res schemas.FieldResult) {
	res.Assignment = a
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Panic while filling field.",
				zap.String("identifier", a.Identifier),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			res.Outcome = schemas.OutcomeErrored
			res.Reason = fmt.Sprintf("internal error: %v", r)
		}
	}()

	el, found, err := o.resolver.Resolve(ctx, doc, a.Identifier)
	switch {
	case err != nil:
		res.Outcome, res.Reason = schemas.OutcomeErrored, err.Error()
	case !found:
		res.Outcome = schemas.OutcomeNotFound
	default:
		if err := o.applier.Apply(ctx, el, a.Value); err != nil {
			res.Outcome, res.Reason = schemas.OutcomeErrored, err.Error()
		} else {
			res.Outcome = schemas.OutcomeFilled
		}
	}
	return res
}

func (o *Orchestrator) logResult(index int, res schemas.FieldResult) {
	fields := []zap.Field{
		zap.Int("index", index),
		zap.String("identifier", res.Assignment.Identifier),
		zap.String("outcome", string(res.Outcome)),
	}
	switch res.Outcome {
	case schemas.OutcomeErrored:
		o.logger.Warn("Field not filled.", append(fields, zap.String("reason", res.Reason))...)
	case schemas.OutcomeNotFound:
		o.logger.Debug("Field not found.", fields...)
	default:
		o.logger.Debug("Field filled.", fields...)
	}
}

func (o *Orchestrator) notify(ctx context.Context, report schemas.FillReport) {
	if o.notifier == nil {
		return
	}
	message, severity := Summary(report)
	// The summary is still delivered when the batch itself was cancelled.
	if err := o.notifier.Notify(context.WithoutCancel(ctx), message, severity); err != nil {
		o.logger.Warn("Failed to deliver fill summary.", zap.Error(err))
	}
}

// Summary renders the user-facing message for a report.
func Summary(report schemas.FillReport) (string, schemas.Severity) {
	total := report.Total()
	failed := total - report.Filled
	switch {
	case total > 0 && report.Filled == total:
		return fmt.Sprintf("Filled %d fields.", total), schemas.SeveritySuccess
	case report.Filled > 0:
		return fmt.Sprintf("Filled %d/%d fields. %d failed.", report.Filled, total, failed), schemas.SeverityInfo
	default:
		return fmt.Sprintf("No fields were filled (%d failed).", failed), schemas.SeverityError
	}
}
