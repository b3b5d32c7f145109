// internal/bridge/server.go
package bridge

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/api/schemas"
)

// Handler performs a row insertion on the page side. It always returns a
// terminal result; failures are reported in the result, not as errors.
type Handler interface {
	HandleInsert(ctx context.Context, req schemas.RowInsertionRequest) schemas.RowInsertionResult
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req schemas.RowInsertionRequest) schemas.RowInsertionResult

func (f HandlerFunc) HandleInsert(ctx context.Context, req schemas.RowInsertionRequest) schemas.RowInsertionResult {
	return f(ctx, req)
}

// Server is the page side of the bridge. It answers every insert request
// seen on the transport with exactly one reply.
type Server struct {
	transport Transport
	handler   Handler
	logger    *zap.Logger

	requests    <-chan []byte
	unsubscribe func()
}

// NewServer creates a server. It subscribes immediately, so requests posted
// after NewServer returns are seen by Serve.
func NewServer(transport Transport, handler Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch, unsubscribe := transport.Subscribe()
	return &Server{
		transport:   transport,
		handler:     handler,
		logger:      logger.Named("bridge_server"),
		requests:    ch,
		unsubscribe: unsubscribe,
	}
}

// Serve handles requests until ctx is done or the transport closes. In-flight
// requests are allowed to finish before Serve returns. A server serves once.
func (s *Server) Serve(ctx context.Context) error {
	ch := s.requests
	defer s.unsubscribe()

	var wg sync.WaitGroup
	defer wg.Wait()

	s.logger.Info("Bridge server listening.")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Bridge server stopping.", zap.Error(ctx.Err()))
			return ctx.Err()
		case raw, ok := <-ch:
			if !ok {
				s.logger.Info("Transport closed; bridge server stopping.")
				return ErrTransportClosed
			}
			msg, err := Decode(raw)
			if err != nil || msg.Request == nil {
				continue
			}
			req := *msg.Request
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handle(ctx, req)
			}()
		}
	}
}

func (s *Server) handle(ctx context.Context, req schemas.RowInsertionRequest) {
	logger := s.logger.With(zap.Int64("correlation_id", req.CorrelationID), zap.Int("row_index", req.RowIndex))
	res := s.invoke(ctx, req, logger)

	// The reply always carries the request's identity.
	res.CorrelationID = req.CorrelationID
	res.RowIndex = req.RowIndex

	payload, err := EncodeResult(res)
	if err != nil {
		logger.Error("Failed to encode reply.", zap.Error(err))
		return
	}
	// Replies are posted even after ctx ends so the waiting side is not left hanging.
	if err := s.transport.Post(context.WithoutCancel(ctx), payload); err != nil {
		logger.Warn("Failed to post reply.", zap.Error(err))
		return
	}
	logger.Debug("Reply posted.", zap.String("status", string(res.Status)))
}

func (s *Server) invoke(ctx context.Context, req schemas.RowInsertionRequest, logger *zap.Logger) (res schemas.RowInsertionResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in insert handler.", zap.Any("panic", r), zap.String("stack", string(debug.Stack())))
			res = schemas.NewRowFailure(req, fmt.Sprintf("internal error: %v", r))
		}
	}()
	return s.handler.HandleInsert(ctx, req)
}
