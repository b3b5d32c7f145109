// internal/browser/dom/htmldoc/document.go
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/formbridge/internal/browser/dom"
)

// Event records one synthetic event fired through the document.
type Event struct {
	Path string
	Type string
}

// Dispatcher delivers a synthetic event to page-side listeners. It is called
// without the document lock held.
type Dispatcher func(ctx context.Context, node *html.Node, eventType string) error

// Option configures a Document.
type Option func(*Document)

// WithLocker shares the lock that guards the node tree with another owner,
// such as a script realm mutating the same tree.
func WithLocker(l sync.Locker) Option {
	return func(d *Document) { d.mu = l }
}

// WithDispatcher routes synthetic events to page listeners.
func WithDispatcher(fn Dispatcher) Option {
	return func(d *Document) { d.dispatch = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Document) { d.logger = logger }
}

// Document is an offline automation view over a parsed HTML tree.
type Document struct {
	mu       sync.Locker
	root     *html.Node
	dispatch Dispatcher
	logger   *zap.Logger

	eventsMu sync.Mutex
	events   []Event
}

var _ dom.Document = (*Document)(nil)

// New wraps an existing node tree.
func New(root *html.Node, opts ...Option) *Document {
	d := &Document{
		mu:     &sync.Mutex{},
		root:   root,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("htmldoc")
	return d
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return New(root, opts...), nil
}

// Root returns the underlying tree. Callers must hold the document lock while
// walking it if a realm shares the tree.
func (d *Document) Root() *html.Node { return d.root }

// Render serializes the current tree.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return sb.String(), nil
}

// Events returns a copy of every event dispatched so far.
func (d *Document) Events() []Event {
	d.eventsMu.Lock()
	defer d.eventsMu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Editables lists the form controls in document order.
func (d *Document) Editables(ctx context.Context) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	nodes := goquery.NewDocumentFromNode(d.root).Find(dom.EditableSelector).Nodes
	elements := make([]dom.Element, 0, len(nodes))
	for i, n := range nodes {
		elements = append(elements, &element{doc: d, node: n, info: describe(n, i)})
	}
	return elements, nil
}

func (d *Document) record(node *html.Node, eventType string) {
	d.mu.Lock()
	path := NodePath(node)
	d.mu.Unlock()

	d.eventsMu.Lock()
	d.events = append(d.events, Event{Path: path, Type: eventType})
	d.eventsMu.Unlock()
}

// describe builds the element snapshot. Caller holds the document lock.
func describe(n *html.Node, index int) dom.Info {
	tag := strings.ToLower(n.Data)
	info := dom.Info{
		Index:       index,
		Tag:         tag,
		ID:          htmlquery.SelectAttr(n, "id"),
		Name:        htmlquery.SelectAttr(n, "name"),
		Placeholder: htmlquery.SelectAttr(n, "placeholder"),
		ClassName:   htmlquery.SelectAttr(n, "class"),
		Disabled:    isDisabled(n),
		Visible:     isVisible(n),
		Path:        NodePath(n),
	}
	_, info.Checked = attr(n, "checked")

	switch tag {
	case "input":
		info.Type = strings.ToLower(htmlquery.SelectAttr(n, "type"))
		if info.Type == "" {
			info.Type = "text"
		}
		info.Value = htmlquery.SelectAttr(n, "value")
		_, info.ReadOnly = attr(n, "readonly")
	case "textarea":
		info.Value = htmlquery.InnerText(n)
		_, info.ReadOnly = attr(n, "readonly")
	case "select":
		info.Options = options(n)
		for _, o := range info.Options {
			if o.Selected {
				info.Value = o.Value
				break
			}
		}
		if info.Value == "" && len(info.Options) > 0 {
			info.Value = info.Options[0].Value
		}
	}
	return info
}

func options(sel *html.Node) []dom.Option {
	nodes := htmlquery.Find(sel, ".//option")
	out := make([]dom.Option, 0, len(nodes))
	for _, n := range nodes {
		text := htmlquery.InnerText(n)
		value, ok := attr(n, "value")
		if !ok {
			value = strings.TrimSpace(text)
		}
		_, selected := attr(n, "selected")
		out = append(out, dom.Option{Value: value, Text: text, Selected: selected})
	}
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func isDisabled(n *html.Node) bool {
	if _, ok := attr(n, "disabled"); ok {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.EqualFold(p.Data, "fieldset") {
			if _, ok := attr(p, "disabled"); ok {
				return true
			}
		}
	}
	return false
}

// isVisible approximates CSS visibility from markup: the hidden attribute,
// type=hidden, and inline display/visibility rules on the node or an ancestor.
func isVisible(n *html.Node) bool {
	if strings.EqualFold(htmlquery.SelectAttr(n, "type"), "hidden") {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := attr(p, "hidden"); ok {
			return false
		}
		if hiddenByStyle(htmlquery.SelectAttr(p, "style")) {
			return false
		}
	}
	return true
}

func hiddenByStyle(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important")))
		if (prop == "display" && val == "none") || (prop == "visibility" && val == "hidden") {
			return true
		}
	}
	return false
}
