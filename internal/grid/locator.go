// internal/grid/locator.go
package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/browser/dom"
	"github.com/xkilldash9x/formbridge/internal/browser/realm"
	"github.com/xkilldash9x/formbridge/internal/config"
)

// State is a step of the row locator.
type State int

const (
	StateLocatingContainer State = iota
	StateLocatingTable
	StateLocatingExistingRow
	StateCreatingRow
	StateAwaitingRowCreated
	StateRowReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLocatingContainer:
		return "LocatingContainer"
	case StateLocatingTable:
		return "LocatingTable"
	case StateLocatingExistingRow:
		return "LocatingExistingRow"
	case StateCreatingRow:
		return "CreatingRow"
	case StateAwaitingRowCreated:
		return "AwaitingRowCreated"
	case StateRowReady:
		return "RowReady"
	default:
		return "Failed"
	}
}

// ErrLocator matches every locator failure under errors.Is.
var ErrLocator = errors.New("grid locator failed")

// LocatorError reports the state a locator run failed in. Its message is the
// user-facing reason.
type LocatorError struct {
	State   State
	Message string
}

func (e *LocatorError) Error() string { return e.Message }
func (e *LocatorError) Unwrap() error { return ErrLocator }

// Locator finds, or creates, the grid row a request writes into.
type Locator struct {
	cfg    config.GridConfig
	logger *zap.Logger
}

// NewLocator creates a locator from the grid selectors and settle delay.
func NewLocator(cfg config.GridConfig, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{cfg: cfg, logger: logger.Named("locator")}
}

// locateRun carries one pass through the state machine.
type locateRun struct {
	l      *Locator
	r      realm.Realm
	req    schemas.RowInsertionRequest
	logger *zap.Logger

	state  State
	table  realm.Value
	rowSel string
	before int
}

// Locate runs the state machine once. Every call starts from scratch: it
// never resumes from a previous run. A positive RowIndex always creates
// exactly one new row; RowIndex 0 never touches a row-level insert control.
func (l *Locator) Locate(ctx context.Context, r realm.Realm, req schemas.RowInsertionRequest) (realm.Value, error) {
	run := &locateRun{
		l:      l,
		r:      r,
		req:    req,
		logger: l.logger.With(zap.Int64("correlation_id", req.CorrelationID), zap.Int("row_index", req.RowIndex)),
		rowSel: l.cfg.RowSelector,
	}
	if req.Selector != "" {
		run.rowSel = req.Selector
	}
	return run.execute(ctx)
}

func (run *locateRun) transition(next State) {
	run.logger.Debug("Locator transition.", zap.Stringer("from", run.state), zap.Stringer("to", next))
	run.state = next
}

func (run *locateRun) fail(format string, args ...any) error {
	failedIn := run.state
	run.transition(StateFailed)
	return &LocatorError{State: failedIn, Message: fmt.Sprintf(format, args...)}
}

func (run *locateRun) execute(ctx context.Context) (realm.Value, error) {
	run.state = StateLocatingContainer
	doc, err := realm.Document(ctx, run.r)
	if err != nil {
		return nil, err
	}
	container, ok, err := realm.Query(ctx, doc, run.l.cfg.ContainerSelector)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, run.fail("Modal not found")
	}

	run.transition(StateLocatingTable)
	tables, err := realm.QueryAll(ctx, container, run.l.cfg.TableSelector)
	if err != nil {
		return nil, err
	}
	if run.req.GridIndex < 0 || run.req.GridIndex >= len(tables) {
		if len(tables) == 0 {
			return nil, run.fail("Table not found")
		}
		return nil, run.fail("Invalid grid index %d, only %d grids available", run.req.GridIndex, len(tables))
	}
	run.table = tables[run.req.GridIndex]

	if run.req.RowIndex > 0 {
		run.transition(StateCreatingRow)
		return run.createRow(ctx)
	}
	run.transition(StateLocatingExistingRow)
	return run.existingRow(ctx)
}

func (run *locateRun) rows(ctx context.Context) ([]realm.Value, error) {
	return realm.QueryAll(ctx, run.table, run.rowSel)
}

// existingRow takes the first row matching the row selector. When nothing
// matches it falls back to the broader fallback rows: the first empty one,
// else the last one. An empty grid gets its first row from the add button.
func (run *locateRun) existingRow(ctx context.Context) (realm.Value, error) {
	rows, err := run.rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return run.ready(rows[0]), nil
	}

	if sel := run.l.cfg.FallbackRowSelector; sel != "" {
		fallback, err := realm.QueryAll(ctx, run.table, sel)
		if err != nil {
			return nil, err
		}
		for i, row := range fallback {
			empty, err := isEmptyRow(ctx, row)
			if err != nil {
				return nil, err
			}
			if empty {
				run.logger.Debug("Using first empty fallback row.", zap.Int("position", i))
				return run.ready(row), nil
			}
		}
		if len(fallback) > 0 {
			run.logger.Debug("Using last fallback row.", zap.Int("position", len(fallback)-1))
			return run.ready(fallback[len(fallback)-1]), nil
		}
		run.rowSel = run.rowSel + ", " + sel
	}

	add, ok, err := realm.Query(ctx, run.table, run.l.cfg.AddRowSelector)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, run.fail("No rows found and no add button available")
	}
	run.before = 0
	if _, err := add.Call(ctx, "click"); err != nil {
		return nil, fmt.Errorf("failed to click add button: %w", err)
	}
	run.transition(StateAwaitingRowCreated)
	return run.awaitRow(ctx, "Failed to create first row in selected grid")
}

// createRow clicks the insert control of the last row, once.
func (run *locateRun) createRow(ctx context.Context) (realm.Value, error) {
	rows, err := run.rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, run.fail("No target row found for insertion")
	}
	run.before = len(rows)

	cells, err := realm.QueryAll(ctx, rows[len(rows)-1], "td")
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, run.fail("Insert button not found")
	}
	insert, ok, err := realm.Query(ctx, cells[len(cells)-1], run.l.cfg.InsertControlSelector)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, run.fail("Insert button not found")
	}
	if _, err := insert.Call(ctx, "click"); err != nil {
		return nil, fmt.Errorf("failed to click insert control: %w", err)
	}
	run.logger.Debug("Insert control clicked.", zap.Int("rows_before", run.before))

	run.transition(StateAwaitingRowCreated)
	return run.awaitRow(ctx, "No new row created after clicking insert")
}

// awaitRow lets the page settle, then requires the row count to have grown.
// The new row is the last one in document order.
func (run *locateRun) awaitRow(ctx context.Context, unchanged string) (realm.Value, error) {
	if err := sleep(ctx, run.l.cfg.SettleDelay); err != nil {
		return nil, err
	}
	rows, err := run.rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) <= run.before {
		return nil, run.fail("%s", unchanged)
	}
	run.logger.Debug("Row created.", zap.Int("rows_before", run.before), zap.Int("rows_after", len(rows)))
	return run.ready(rows[len(rows)-1]), nil
}

func (run *locateRun) ready(row realm.Value) realm.Value {
	run.transition(StateRowReady)
	return row
}

// isEmptyRow reports whether every form control in row has a blank value.
func isEmptyRow(ctx context.Context, row realm.Value) (bool, error) {
	controls, err := realm.QueryAll(ctx, row, dom.EditableSelector)
	if err != nil {
		return false, err
	}
	for _, c := range controls {
		v, err := realm.String(ctx, c, "value")
		if err != nil {
			return false, err
		}
		if strings.TrimSpace(v) != "" {
			return false, nil
		}
	}
	return true, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
