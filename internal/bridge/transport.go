// internal/bridge/transport.go
package bridge

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// DefaultBufferSize is the per-subscriber queue length when none is configured.
const DefaultBufferSize = 64

// ErrTransportClosed is returned when posting to a closed transport.
var ErrTransportClosed = errors.New("transport is closed")

// Transport is the one primitive both sides share: an origin-scoped broadcast.
// Every subscriber, the sender included, sees every posted message. Delivery
// is best effort.
type Transport interface {
	Post(ctx context.Context, payload []byte) error
	// Subscribe returns a channel of raw messages and a function that ends the
	// subscription and closes the channel.
	Subscribe() (<-chan []byte, func())
}

// LocalBus is an in-process Transport.
type LocalBus struct {
	logger     *zap.Logger
	bufferSize int

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	isShutdown  bool
}

var _ Transport = (*LocalBus)(nil)

// NewLocalBus creates a bus. A bufferSize of zero or less selects DefaultBufferSize.
func NewLocalBus(logger *zap.Logger, bufferSize int) *LocalBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &LocalBus{
		logger:      logger.Named("local_bus"),
		bufferSize:  bufferSize,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Post delivers payload to every current subscriber. A subscriber whose queue
// is full misses the message, as a reloading page would.
func (b *LocalBus) Post(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.isShutdown {
		return ErrTransportClosed
	}

	for ch := range b.subscribers {
		select {
		case ch <- payload:
		default:
			b.logger.Warn("Subscriber queue full; message dropped.", zap.Int("buffer_size", b.bufferSize))
		}
	}
	return nil
}

// Subscribe registers a new listener.
func (b *LocalBus) Subscribe() (<-chan []byte, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []byte, b.bufferSize)
	if b.isShutdown {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[ch] = struct{}{}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Shutdown closes every subscription. Later posts fail with ErrTransportClosed.
func (b *LocalBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return
	}
	b.isShutdown = true
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[chan []byte]struct{})
	b.logger.Debug("Local bus shut down.")
}
