// internal/browser/jsbind/transport.go
package jsbind

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/formbridge/internal/bridge"
)

var _ bridge.Transport = (*Page)(nil)

// Post broadcasts a message on the page window as window.postMessage would.
// Page listeners see it as a message event whose source is the window.
func (p *Page) Post(ctx context.Context, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("message is not valid JSON")
	}
	return p.publish(ctx, payload)
}

// Subscribe observes every message posted on the page window, from page
// script or from Post.
func (p *Page) Subscribe() (<-chan []byte, func()) {
	return p.bus.Subscribe()
}

// publish fans a message out to Go subscribers and queues its delivery to
// page listeners. It never takes the page lock.
func (p *Page) publish(ctx context.Context, payload []byte) error {
	msg := append([]byte(nil), payload...)
	if !p.queueTask("message", func() error { return p.bridge.deliverMessage(msg) }) {
		return ErrPageClosed
	}
	return p.bus.Post(ctx, msg)
}
