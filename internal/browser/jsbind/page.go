// internal/browser/jsbind/page.go
package jsbind

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/formbridge/internal/bridge"
	"github.com/xkilldash9x/formbridge/internal/browser/dom/htmldoc"
)

// DefaultTimeout bounds a single script run when the context has no deadline.
const DefaultTimeout = 30 * time.Second

// ErrPageClosed is returned by operations on a closed page.
var ErrPageClosed = errors.New("page is closed")

// Page is an in-process page: an HTML tree scripted by a goja runtime with a
// small DOM binding. All access to the runtime and the tree is serialized by
// one mutex, and timers and message events run on a single task loop, the way
// a browser tab runs its event loop.
type Page struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	bridge *DOMBridge
	root   *html.Node
	logger *zap.Logger
	origin string

	doc *htmldoc.Document
	bus *bridge.LocalBus

	loop      *taskLoop
	timersMu  sync.Mutex
	timers    map[int64]*time.Timer
	nextTimer int64
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithOrigin sets the origin reported on message events.
func WithOrigin(origin string) PageOption {
	return func(p *Page) { p.origin = origin }
}

// NewPage parses r, binds the DOM into a fresh runtime and runs the inline
// scripts in document order. The caller must Close the page.
func NewPage(r io.Reader, logger *zap.Logger, opts ...PageOption) (*Page, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}

	p := &Page{
		vm:     goja.New(),
		root:   root,
		logger: logger.Named("jsbind"),
		origin: "null",
		timers: make(map[int64]*time.Timer),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.loop = newTaskLoop()
	p.bus = bridge.NewLocalBus(p.logger, 0)
	p.bridge = newDOMBridge(p)
	p.doc = htmldoc.New(root,
		htmldoc.WithLocker(&p.mu),
		htmldoc.WithDispatcher(p.dispatchFromDocument),
		htmldoc.WithLogger(p.logger),
	)

	if err := p.runInlineScripts(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Document returns the automation view of the page. Events fired through it
// reach the page's listeners.
func (p *Page) Document() *htmldoc.Document { return p.doc }

// Close stops pending timers and the task loop.
func (p *Page) Close() {
	p.timersMu.Lock()
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
	p.timersMu.Unlock()
	p.loop.close()
	p.bus.Shutdown()
}

// Run executes a script in the page.
func (p *Page) Run(ctx context.Context, script string) error {
	_, err := p.Eval(ctx, script)
	return err
}

// Eval executes a script and exports its completion value.
func (p *Page) Eval(ctx context.Context, script string) (interface{}, error) {
	var out interface{}
	err := p.withVM(ctx, func() error {
		v, err := p.vm.RunString(script)
		if err != nil {
			return err
		}
		out = v.Export()
		return nil
	})
	return out, err
}

// Flush waits until every task queued so far has run.
func (p *Page) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !p.loop.enqueue(func() { close(done) }) {
		return ErrPageClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withVM runs fn with exclusive access to the runtime. Context cancellation
// interrupts running script.
func (p *Page) withVM(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { p.vm.Interrupt(ctx.Err()) })
	defer func() {
		if !stop() {
			// The interrupt may already be pending; clear it for the next caller.
			p.vm.ClearInterrupt()
		}
	}()

	return convertError(ctx, fn())
}

func (p *Page) runInlineScripts() error {
	for _, n := range htmlquery.Find(p.root, "//script") {
		if src := htmlquery.SelectAttr(n, "src"); src != "" {
			p.logger.Debug("Skipping external script.", zap.String("src", src))
			continue
		}
		if t := strings.ToLower(htmlquery.SelectAttr(n, "type")); t != "" && t != "text/javascript" && t != "module" {
			continue
		}
		if err := p.Run(context.Background(), htmlquery.InnerText(n)); err != nil {
			return fmt.Errorf("inline script failed: %w", err)
		}
	}
	return nil
}

// dispatchFromDocument delivers an event fired by the automation view to the
// page's listeners.
func (p *Page) dispatchFromDocument(ctx context.Context, node *html.Node, eventType string) error {
	return p.withVM(ctx, func() error {
		return p.bridge.dispatch(p.bridge.wrap(node), eventType, eventType != "blur" && eventType != "focus")
	})
}

// queueTask schedules fn on the page loop under the page lock. Script errors
// are logged like uncaught exceptions.
func (p *Page) queueTask(name string, fn func() error) bool {
	return p.loop.enqueue(func() {
		if err := p.withVM(context.Background(), fn); err != nil {
			p.logger.Warn("Uncaught error in page task.", zap.String("task", name), zap.Error(err))
		}
	})
}

// setTimer arms a one-shot timer. Caller holds the page lock.
func (p *Page) setTimer(delay time.Duration, fn func() error) int64 {
	p.timersMu.Lock()
	defer p.timersMu.Unlock()
	p.nextTimer++
	id := p.nextTimer
	p.timers[id] = time.AfterFunc(delay, func() {
		p.timersMu.Lock()
		_, live := p.timers[id]
		delete(p.timers, id)
		p.timersMu.Unlock()
		if live {
			p.queueTask("timer", fn)
		}
	})
	return id
}

func (p *Page) clearTimer(id int64) {
	p.timersMu.Lock()
	defer p.timersMu.Unlock()
	if t, ok := p.timers[id]; ok {
		t.Stop()
		delete(p.timers, id)
	}
}

// convertError maps goja failures onto context and script errors.
func convertError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("javascript execution interrupted by context: %w", ctx.Err())
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return throwError(ex)
	}
	return err
}

// -- Task loop --

// taskLoop runs queued functions one at a time on its own goroutine.
type taskLoop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

func newTaskLoop() *taskLoop {
	l := &taskLoop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *taskLoop) enqueue(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *taskLoop) run() {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			select {
			case <-l.wake:
				continue
			case <-l.done:
				return
			}
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		fn()
	}
}

func (l *taskLoop) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
	l.wg.Wait()
}
