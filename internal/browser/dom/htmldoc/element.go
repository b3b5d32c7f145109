// internal/browser/dom/htmldoc/element.go
package htmldoc

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/formbridge/internal/browser/dom"
)

type element struct {
	doc  *Document
	node *html.Node
	info dom.Info
}

func (e *element) Info() dom.Info { return e.info }

// SetNativeValue writes the value straight into the tree. Offline there is no
// script-visible setter to bypass.
func (e *element) SetNativeValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	switch e.info.Tag {
	case "textarea":
		for c := e.node.FirstChild; c != nil; {
			next := c.NextSibling
			e.node.RemoveChild(c)
			c = next
		}
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	case "input":
		setAttr(e.node, "value", value)
	default:
		return fmt.Errorf("cannot write a text value into <%s>", e.info.Tag)
	}
	return nil
}

func (e *element) SetChecked(ctx context.Context, checked bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if !checked {
		removeAttr(e.node, "checked")
		return nil
	}
	// Checking a radio unchecks the rest of its group.
	if e.info.Kind() == dom.KindRadio && e.info.Name != "" {
		xpath := fmt.Sprintf("//input[@type='radio' and @name=%s]", xpathLiteral(e.info.Name))
		for _, n := range htmlquery.Find(e.doc.root, xpath) {
			removeAttr(n, "checked")
		}
	}
	setAttr(e.node, "checked", "")
	return nil
}

func (e *element) SelectOption(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	opts := htmlquery.Find(e.node, ".//option")
	if index < 0 || index >= len(opts) {
		return fmt.Errorf("option index %d out of range (%d options)", index, len(opts))
	}
	for i, n := range opts {
		if i == index {
			setAttr(n, "selected", "")
		} else {
			removeAttr(n, "selected")
		}
	}
	return nil
}

func (e *element) Dispatch(ctx context.Context, eventType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.record(e.node, eventType)
	e.doc.logger.Debug("Dispatched event", zap.String("type", eventType), zap.String("path", e.info.Path))
	if e.doc.dispatch == nil {
		return nil
	}
	return e.doc.dispatch(ctx, e.node, eventType)
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
