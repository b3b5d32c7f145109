// internal/browser/cdp/transport.go
package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/internal/bridge"
	"github.com/xkilldash9x/formbridge/internal/config"
)

// relayScript forwards every same-window message event to the CDP binding, so
// Go subscribers see exactly what page listeners see.
const relayScript = `(function (binding) {
  if (window['__formbridgeRelayInstalled_' + binding]) return;
  window['__formbridgeRelayInstalled_' + binding] = true;
  window.addEventListener('message', function (e) {
    if (e.source !== window || typeof window[binding] !== 'function') return;
    try { window[binding](JSON.stringify(e.data)); } catch (err) {}
  });
})`

// Transport carries bridge messages over a tab's window. Post is
// window.postMessage in the main world; Subscribe observes the relayed
// message events.
type Transport struct {
	session *Session
	binding string
	bus     *bridge.LocalBus
	logger  *zap.Logger
	stop    context.CancelFunc
}

var _ bridge.Transport = (*Transport)(nil)

// NewTransport installs the relay binding on s and on every document it loads
// from now on.
func NewTransport(ctx context.Context, s *Session, cfg config.BridgeConfig, logger *zap.Logger) (*Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Transport{
		session: s,
		binding: cfg.BindingName,
		bus:     bridge.NewLocalBus(logger, cfg.BufferSize),
		logger:  logger.Named("cdp_transport"),
	}

	relay, err := invocation(relayScript, t.binding)
	if err != nil {
		return nil, err
	}

	listenCtx, stop := context.WithCancel(s.ctx)
	t.stop = stop
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		called, ok := ev.(*runtime.EventBindingCalled)
		if !ok || called.Name != t.binding {
			return
		}
		// Listener callbacks must not block the event loop.
		if err := t.bus.Post(listenCtx, []byte(called.Payload)); err != nil {
			t.logger.Debug("Dropped relayed message.", zap.Error(err))
		}
	})

	err = s.RunActions(ctx,
		runtime.AddBinding(t.binding),
		chromedp.ActionFunc(func(c context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(relay).Do(c)
			return err
		}),
	)
	if err == nil {
		err = s.evaluate(ctx, 0, relay, nil)
	}
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("failed to install message relay: %w", err)
	}
	return t, nil
}

// Post sends payload with window.postMessage.
func (t *Transport) Post(ctx context.Context, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("message is not valid JSON")
	}
	expr := fmt.Sprintf("window.postMessage(%s, '*')", payload)
	if err := t.session.evaluate(ctx, 0, expr, nil); err != nil {
		return fmt.Errorf("postMessage failed: %w", err)
	}
	return nil
}

func (t *Transport) Subscribe() (<-chan []byte, func()) {
	return t.bus.Subscribe()
}

// Close stops relaying and closes every subscription.
func (t *Transport) Close() {
	t.stop()
	t.bus.Shutdown()
}
