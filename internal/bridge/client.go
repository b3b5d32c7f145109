// internal/bridge/client.go
package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/config"
)

var (
	// ErrBridgeTimeout means no reply arrived within the caller's budget.
	ErrBridgeTimeout = errors.New("bridge timeout: no reply received")
	// ErrClientClosed is returned by a closed client.
	ErrClientClosed = errors.New("bridge client is closed")
)

// RowTarget selects the grid a batch of rows is written into.
type RowTarget struct {
	GridIndex int
	Selector  string
}

// Correlation ids are namespace<<32 | sequence. The namespace keeps ids from
// different clients apart on a shared channel; ids stay below 2^53 so they
// survive a round trip through page JavaScript numbers.
const (
	namespaceBits = 21
	sequenceBits  = 32
)

// processBase is random per process; clientSeq separates clients within it.
var (
	processBase = binary.BigEndian.Uint32(uuid.New().NodeID())
	clientSeq   atomic.Uint32
)

func newNamespace() int64 {
	ns := (processBase + clientSeq.Add(1)) & (1<<namespaceBits - 1)
	return int64(ns) << sequenceBits
}

type waiter struct {
	rowIndex int
	reply    chan schemas.RowInsertionResult
}

// Client is the automation side of the bridge. It tags each request with a
// fresh correlation id and resolves the matching reply.
type Client struct {
	transport Transport
	cfg       config.BridgeConfig
	logger    *zap.Logger

	namespace int64
	nextID    atomic.Int64

	mu      sync.Mutex
	pending map[int64]*waiter
	closed  bool

	unsubscribe func()
	wg          sync.WaitGroup
}

// NewClient subscribes to the transport and starts routing replies. Call
// Close to stop.
func NewClient(transport Transport, cfg config.BridgeConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		transport: transport,
		cfg:       cfg,
		logger:    logger.Named("bridge_client"),
		namespace: newNamespace(),
		pending:   make(map[int64]*waiter),
	}
	ch, unsubscribe := transport.Subscribe()
	c.unsubscribe = unsubscribe
	c.wg.Add(1)
	go c.readLoop(ch)
	return c
}

// Close stops reply routing. Waiting Insert calls return ErrClientClosed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, w := range c.pending {
		close(w.reply)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	c.unsubscribe()
	c.wg.Wait()
}

// Insert sends one row request and waits for its reply. Without a deadline
// on ctx the configured reply timeout applies. On timeout the returned result
// is a failure carrying the request's identity alongside ErrBridgeTimeout.
func (c *Client) Insert(ctx context.Context, req schemas.RowInsertionRequest) (schemas.RowInsertionResult, error) {
	req.CorrelationID = c.namespace | (c.nextID.Add(1) & (1<<sequenceBits - 1))
	logger := c.logger.With(zap.Int64("correlation_id", req.CorrelationID), zap.Int("row_index", req.RowIndex))

	w := &waiter{rowIndex: req.RowIndex, reply: make(chan schemas.RowInsertionResult, 1)}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return schemas.NewRowFailure(req, ErrClientClosed.Error()), ErrClientClosed
	}
	c.pending[req.CorrelationID] = w
	c.mu.Unlock()
	defer c.forget(req.CorrelationID)

	if _, ok := ctx.Deadline(); !ok && c.cfg.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ReplyTimeout)
		defer cancel()
	}

	payload, err := EncodeRequest(req)
	if err != nil {
		return schemas.NewRowFailure(req, err.Error()), fmt.Errorf("failed to encode request: %w", err)
	}
	if err := c.transport.Post(ctx, payload); err != nil {
		return schemas.NewRowFailure(req, err.Error()), fmt.Errorf("failed to post request: %w", err)
	}
	logger.Debug("Row request sent.")

	select {
	case res, ok := <-w.reply:
		if !ok {
			return schemas.NewRowFailure(req, ErrClientClosed.Error()), ErrClientClosed
		}
		logger.Debug("Row reply received.", zap.String("status", string(res.Status)))
		return res, nil
	case <-ctx.Done():
		err := fmt.Errorf("%w for correlation %d: %w", ErrBridgeTimeout, req.CorrelationID, ctx.Err())
		logger.Warn("Row request abandoned.", zap.Error(err))
		return schemas.NewRowFailure(req, err.Error()), err
	}
}

// InsertRows writes rows into one grid, strictly in order: row N+1 is sent
// only after row N has been answered or abandoned. Row 0 targets the
// existing first row; every later row asks the page to create one. Sends are
// paced by the configured row interval.
func (c *Client) InsertRows(ctx context.Context, target RowTarget, rows []map[string]string) schemas.RowBatchReport {
	var report schemas.RowBatchReport
	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.cfg.RowInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(c.cfg.RowInterval), 1)
	}

	for i, fields := range rows {
		req := schemas.RowInsertionRequest{
			RowIndex:  i,
			GridIndex: target.GridIndex,
			Selector:  target.Selector,
			Fields:    fields,
		}

		var res schemas.RowInsertionResult
		if err := limiter.Wait(ctx); err != nil {
			res = schemas.NewRowFailure(req, fmt.Sprintf("batch stopped: %v", err))
		} else {
			start := time.Now()
			res, _ = c.Insert(ctx, req)
			c.logger.Info("Row processed.",
				zap.Int("row_index", i),
				zap.String("status", string(res.Status)),
				zap.Duration("elapsed", time.Since(start)))
		}
		report.Record(res)
	}
	return report
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop matches replies to waiters until the subscription ends.
func (c *Client) readLoop(ch <-chan []byte) {
	defer c.wg.Done()
	for raw := range ch {
		msg, err := Decode(raw)
		if err != nil {
			c.logger.Debug("Ignoring foreign message.", zap.Error(err))
			continue
		}
		if msg.Result == nil {
			continue
		}
		c.resolve(*msg.Result)
	}
}

func (c *Client) resolve(res schemas.RowInsertionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.pending[res.CorrelationID]
	if !ok {
		c.logger.Debug("Dropping reply with no waiter.", zap.Int64("correlation_id", res.CorrelationID))
		return
	}
	if w.rowIndex != res.RowIndex {
		c.logger.Warn("Dropping reply with mismatched row index.",
			zap.Int64("correlation_id", res.CorrelationID),
			zap.Int("expected_row", w.rowIndex),
			zap.Int("got_row", res.RowIndex))
		return
	}
	// Consumed exactly once.
	delete(c.pending, res.CorrelationID)
	w.reply <- res
}
