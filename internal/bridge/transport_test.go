package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formbridge/internal/bridge"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLocalBus_BroadcastsToEverySubscriber(t *testing.T) {
	bus := bridge.NewLocalBus(zaptest.NewLogger(t), 4)
	defer bus.Shutdown()

	a, unsubA := bus.Subscribe()
	defer unsubA()
	b, unsubB := bus.Subscribe()
	defer unsubB()

	require.NoError(t, bus.Post(context.Background(), []byte(`{"n":1}`)))

	for _, ch := range []<-chan []byte{a, b} {
		select {
		case msg := <-ch:
			assert.Equal(t, `{"n":1}`, string(msg))
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the message")
		}
	}
}

func TestLocalBus_FullQueueDrops(t *testing.T) {
	bus := bridge.NewLocalBus(zaptest.NewLogger(t), 1)
	defer bus.Shutdown()

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	require.NoError(t, bus.Post(context.Background(), []byte(`1`)))
	// The second post must not block on the full queue.
	require.NoError(t, bus.Post(context.Background(), []byte(`2`)))

	assert.Equal(t, "1", string(<-ch))
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %q", msg)
	default:
	}
}

func TestLocalBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := bridge.NewLocalBus(zaptest.NewLogger(t), 0)
	defer bus.Shutdown()

	ch, unsubscribe := bus.Subscribe()
	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, bus.Post(context.Background(), []byte(`{}`)))
}

func TestLocalBus_Shutdown(t *testing.T) {
	bus := bridge.NewLocalBus(zaptest.NewLogger(t), 0)
	ch, unsubscribe := bus.Subscribe()

	bus.Shutdown()
	bus.Shutdown()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, bus.Post(context.Background(), []byte(`{}`)), bridge.ErrTransportClosed)

	late, _ := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscriptions after shutdown start closed")
}

func TestLocalBus_PostHonorsCancellation(t *testing.T) {
	bus := bridge.NewLocalBus(zaptest.NewLogger(t), 0)
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Post(ctx, []byte(`{}`)), context.Canceled)
}
