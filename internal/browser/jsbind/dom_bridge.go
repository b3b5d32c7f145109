// internal/browser/jsbind/dom_bridge.go
package jsbind

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// prelude defines the event constructors page scripts expect.
const prelude = `
function Event(type, init) {
	this.type = String(type);
	this.bubbles = !!(init && init.bubbles);
	this.cancelable = !!(init && init.cancelable);
	this.defaultPrevented = false;
	this.target = null;
	this.currentTarget = null;
	this.__stopped = false;
}
Event.prototype.preventDefault = function () { this.defaultPrevented = true; };
Event.prototype.stopPropagation = function () { this.__stopped = true; };
function MessageEvent(type, init) {
	Event.call(this, type, init);
	this.data = init ? init.data : undefined;
	this.origin = (init && init.origin) || "";
	this.source = (init && init.source) || null;
}
MessageEvent.prototype = Object.create(Event.prototype);
MessageEvent.prototype.constructor = MessageEvent;
`

// DOMBridge binds the page's HTML tree into the goja runtime. Every node has
// exactly one script object, so properties that page scripts attach to an
// element (framework back-references, for one) stay visible on later lookups.
// All methods run with the page lock held.
type DOMBridge struct {
	page   *Page
	vm     *goja.Runtime
	logger *zap.Logger

	proto    *goja.Object
	wrappers map[*html.Node]*goja.Object
	nodes    map[*goja.Object]*html.Node

	listeners       map[*html.Node]map[string][]goja.Value
	windowListeners map[string][]goja.Value

	eventCtor   goja.Value
	messageCtor goja.Value
}

func newDOMBridge(p *Page) *DOMBridge {
	b := &DOMBridge{
		page:            p,
		vm:              p.vm,
		logger:          p.logger.Named("dom_bridge"),
		wrappers:        make(map[*html.Node]*goja.Object),
		nodes:           make(map[*goja.Object]*html.Node),
		listeners:       make(map[*html.Node]map[string][]goja.Value),
		windowListeners: make(map[string][]goja.Value),
	}

	if _, err := b.vm.RunString(prelude); err != nil {
		// The prelude is static; failing here is a programming error.
		panic(fmt.Sprintf("jsbind prelude failed: %v", err))
	}
	b.eventCtor = b.vm.Get("Event")
	b.messageCtor = b.vm.Get("MessageEvent")

	b.proto = b.vm.NewObject()
	b.defineNodeProperties()
	b.defineNodeMethods()
	b.initWindow()
	return b
}

// -- Window (global scope) --

func (b *DOMBridge) initWindow() {
	global := b.vm.GlobalObject()
	set := func(name string, v interface{}) {
		if err := global.Set(name, v); err != nil {
			b.logger.Error("Failed to set global", zap.String("name", name), zap.Error(err))
		}
	}

	set("window", global)
	set("self", global)
	set("document", b.newDocumentObject())

	location := b.vm.NewObject()
	_ = location.Set("origin", b.page.origin)
	_ = location.Set("href", "about:blank")
	set("location", location)

	// Element constructors share one prototype; scripts use them to reach
	// the native value setter.
	for _, name := range []string{"Node", "Element", "HTMLElement", "HTMLInputElement", "HTMLTextAreaElement", "HTMLSelectElement"} {
		ctor := b.vm.NewObject()
		_ = ctor.Set("prototype", b.proto)
		set(name, ctor)
	}

	set("addEventListener", func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		if fn := call.Argument(1); isCallable(fn) {
			b.windowListeners[typ] = append(b.windowListeners[typ], fn)
		}
		return goja.Undefined()
	})
	set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		b.windowListeners[typ] = without(b.windowListeners[typ], call.Argument(1))
		return goja.Undefined()
	})
	set("postMessage", func(call goja.FunctionCall) goja.Value {
		payload, err := b.stringify(call.Argument(0))
		if err != nil {
			panic(b.vm.NewTypeError("postMessage: could not clone message: %v", err))
		}
		if err := b.page.publish(context.Background(), []byte(payload)); err != nil {
			b.logger.Debug("postMessage dropped.", zap.Error(err))
		}
		return goja.Undefined()
	})
	set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return b.vm.ToValue(0)
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		var extra []goja.Value
		if len(call.Arguments) > 2 {
			extra = append(extra, call.Arguments[2:]...)
		}
		id := b.page.setTimer(delay, func() error {
			_, err := fn(goja.Undefined(), extra...)
			return err
		})
		return b.vm.ToValue(id)
	})
	set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		b.page.clearTimer(call.Argument(0).ToInteger())
		return goja.Undefined()
	})
	set("alert", func(call goja.FunctionCall) goja.Value {
		b.logger.Info("[JS Alert]", zap.String("message", call.Argument(0).String()))
		return goja.Undefined()
	})
	b.initConsole()
}

// deliverMessage fires a message event at the window listeners.
func (b *DOMBridge) deliverMessage(payload []byte) error {
	data, err := b.parse(string(payload))
	if err != nil {
		return err
	}
	init := b.vm.NewObject()
	_ = init.Set("data", data)
	_ = init.Set("origin", b.page.origin)
	_ = init.Set("source", b.vm.GlobalObject())
	ev, err := b.vm.New(b.messageCtor, b.vm.ToValue("message"), init)
	if err != nil {
		return err
	}

	global := b.vm.GlobalObject()
	var firstErr error
	handlers := append([]goja.Value{global.Get("onmessage")}, b.windowListeners["message"]...)
	for _, h := range handlers {
		fn, ok := goja.AssertFunction(h)
		if !ok {
			continue
		}
		if _, err := fn(global, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// -- Document object --

func (b *DOMBridge) newDocumentObject() *goja.Object {
	doc := b.wrap(b.page.root).(*goja.Object)

	_ = doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		for _, n := range htmlquery.Find(b.page.root, "//*[@id]") {
			if htmlquery.SelectAttr(n, "id") == id {
				return b.wrap(n)
			}
		}
		return goja.Null()
	})
	_ = doc.Set("createElement", func(call goja.FunctionCall) goja.Value {
		tag := strings.ToLower(call.Argument(0).String())
		return b.wrap(&html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))})
	})
	_ = doc.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return b.wrap(&html.Node{Type: html.TextNode, Data: call.Argument(0).String()})
	})
	getter := func(xpath string) goja.Value {
		return b.vm.ToValue(func(goja.FunctionCall) goja.Value {
			return b.wrap(htmlquery.FindOne(b.page.root, xpath))
		})
	}
	_ = doc.DefineAccessorProperty("body", getter("//body"), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = doc.DefineAccessorProperty("head", getter("//head"), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = doc.DefineAccessorProperty("documentElement", getter("/html"), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
	return doc
}

// -- Node wrappers --

// wrap returns the script object for n, creating it on first use.
func (b *DOMBridge) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := b.wrappers[n]; ok {
		return obj
	}
	obj := b.vm.NewObject()
	if err := obj.SetPrototype(b.proto); err != nil {
		b.logger.Error("Failed to set node prototype", zap.Error(err))
	}
	b.wrappers[n] = obj
	b.nodes[obj] = n
	return obj
}

func (b *DOMBridge) wrapList(nodes []*html.Node) goja.Value {
	vals := make([]interface{}, len(nodes))
	for i, n := range nodes {
		vals[i] = b.wrap(n)
	}
	return b.vm.NewArray(vals...)
}

// nodeOf resolves this (or an argument) back to its tree node.
func (b *DOMBridge) nodeOf(v goja.Value) *html.Node {
	if obj, ok := v.(*goja.Object); ok {
		if n, ok := b.nodes[obj]; ok {
			return n
		}
	}
	panic(b.vm.NewTypeError("Illegal invocation: value is not a DOM node"))
}

func (b *DOMBridge) accessor(name string, get func(n *html.Node) goja.Value, set func(n *html.Node, v goja.Value)) {
	getter := b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return get(b.nodeOf(call.This))
	})
	var setter goja.Value
	if set != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(b.nodeOf(call.This), call.Argument(0))
			return goja.Undefined()
		})
	}
	if err := b.proto.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		b.logger.Error("Failed to define accessor", zap.String("property", name), zap.Error(err))
	}
}

func (b *DOMBridge) method(name string, fn func(n *html.Node, call goja.FunctionCall) goja.Value) {
	err := b.proto.Set(name, func(call goja.FunctionCall) goja.Value {
		return fn(b.nodeOf(call.This), call)
	})
	if err != nil {
		b.logger.Error("Failed to define method", zap.String("method", name), zap.Error(err))
	}
}

func (b *DOMBridge) defineNodeProperties() {
	str := func(s string) goja.Value { return b.vm.ToValue(s) }
	attrAccessor := func(prop, attrName string) {
		b.accessor(prop,
			func(n *html.Node) goja.Value { return str(htmlquery.SelectAttr(n, attrName)) },
			func(n *html.Node, v goja.Value) { setAttr(n, attrName, v.String()) })
	}

	b.accessor("nodeType", func(n *html.Node) goja.Value { return b.vm.ToValue(nodeType(n)) }, nil)
	b.accessor("nodeName", func(n *html.Node) goja.Value { return str(nodeName(n)) }, nil)
	b.accessor("tagName", func(n *html.Node) goja.Value { return str(nodeName(n)) }, nil)
	attrAccessor("id", "id")
	attrAccessor("className", "class")
	attrAccessor("name", "name")
	attrAccessor("type", "type")
	attrAccessor("title", "title")

	b.accessor("value", func(n *html.Node) goja.Value { return str(valueOf(n)) },
		func(n *html.Node, v goja.Value) { setValue(n, v.String()) })
	b.accessor("checked",
		func(n *html.Node) goja.Value { return b.vm.ToValue(hasAttr(n, "checked")) },
		func(n *html.Node, v goja.Value) { toggleAttr(n, "checked", v.ToBoolean()) })
	b.accessor("disabled",
		func(n *html.Node) goja.Value { return b.vm.ToValue(hasAttr(n, "disabled")) },
		func(n *html.Node, v goja.Value) { toggleAttr(n, "disabled", v.ToBoolean()) })
	b.accessor("readOnly",
		func(n *html.Node) goja.Value { return b.vm.ToValue(hasAttr(n, "readonly")) },
		func(n *html.Node, v goja.Value) { toggleAttr(n, "readonly", v.ToBoolean()) })

	b.accessor("textContent",
		func(n *html.Node) goja.Value { return str(htmlquery.InnerText(n)) },
		func(n *html.Node, v goja.Value) {
			removeChildren(n)
			n.AppendChild(&html.Node{Type: html.TextNode, Data: v.String()})
		})
	b.accessor("innerHTML",
		func(n *html.Node) goja.Value {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				_ = html.Render(&sb, c)
			}
			return str(sb.String())
		},
		func(n *html.Node, v goja.Value) {
			parsed, err := html.ParseFragment(strings.NewReader(v.String()), n)
			if err != nil {
				panic(b.vm.NewGoError(fmt.Errorf("failed to parse HTML: %w", err)))
			}
			removeChildren(n)
			for _, c := range parsed {
				n.AppendChild(c)
			}
		})
	b.accessor("outerHTML", func(n *html.Node) goja.Value {
		var sb strings.Builder
		_ = html.Render(&sb, n)
		return str(sb.String())
	}, nil)

	b.accessor("parentNode", func(n *html.Node) goja.Value { return b.wrap(n.Parent) }, nil)
	b.accessor("parentElement", func(n *html.Node) goja.Value {
		if n.Parent != nil && n.Parent.Type == html.ElementNode {
			return b.wrap(n.Parent)
		}
		return goja.Null()
	}, nil)
	b.accessor("childNodes", func(n *html.Node) goja.Value {
		var out []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, c)
		}
		return b.wrapList(out)
	}, nil)
	b.accessor("children", func(n *html.Node) goja.Value { return b.wrapList(elementChildren(n)) }, nil)
	b.accessor("firstElementChild", func(n *html.Node) goja.Value {
		kids := elementChildren(n)
		if len(kids) == 0 {
			return goja.Null()
		}
		return b.wrap(kids[0])
	}, nil)
	b.accessor("lastElementChild", func(n *html.Node) goja.Value {
		kids := elementChildren(n)
		if len(kids) == 0 {
			return goja.Null()
		}
		return b.wrap(kids[len(kids)-1])
	}, nil)
	b.accessor("nextElementSibling", func(n *html.Node) goja.Value {
		for s := n.NextSibling; s != nil; s = s.NextSibling {
			if s.Type == html.ElementNode {
				return b.wrap(s)
			}
		}
		return goja.Null()
	}, nil)
}

func (b *DOMBridge) defineNodeMethods() {
	b.method("getAttribute", func(n *html.Node, call goja.FunctionCall) goja.Value {
		if v, ok := attr(n, call.Argument(0).String()); ok {
			return b.vm.ToValue(v)
		}
		return goja.Null()
	})
	b.method("hasAttribute", func(n *html.Node, call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(hasAttr(n, call.Argument(0).String()))
	})
	b.method("setAttribute", func(n *html.Node, call goja.FunctionCall) goja.Value {
		setAttr(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	b.method("removeAttribute", func(n *html.Node, call goja.FunctionCall) goja.Value {
		toggleAttr(n, call.Argument(0).String(), false)
		return goja.Undefined()
	})

	b.method("querySelector", func(n *html.Node, call goja.FunctionCall) goja.Value {
		found := b.selectAll(n, call.Argument(0).String())
		if len(found) == 0 {
			return goja.Null()
		}
		return b.wrap(found[0])
	})
	b.method("querySelectorAll", func(n *html.Node, call goja.FunctionCall) goja.Value {
		return b.wrapList(b.selectAll(n, call.Argument(0).String()))
	})
	b.method("getElementsByTagName", func(n *html.Node, call goja.FunctionCall) goja.Value {
		return b.wrapList(b.selectAll(n, strings.ToLower(call.Argument(0).String())))
	})
	b.method("matches", func(n *html.Node, call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(b.compile(call.Argument(0).String()).Match(n))
	})
	b.method("closest", func(n *html.Node, call goja.FunctionCall) goja.Value {
		sel := b.compile(call.Argument(0).String())
		for p := n; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && sel.Match(p) {
				return b.wrap(p)
			}
		}
		return goja.Null()
	})

	b.method("appendChild", func(n *html.Node, call goja.FunctionCall) goja.Value {
		child := b.nodeOf(call.Argument(0))
		detach(child)
		n.AppendChild(child)
		return call.Argument(0)
	})
	b.method("insertBefore", func(n *html.Node, call goja.FunctionCall) goja.Value {
		child := b.nodeOf(call.Argument(0))
		var ref *html.Node
		if r := call.Argument(1); !goja.IsNull(r) && !goja.IsUndefined(r) {
			ref = b.nodeOf(r)
			if ref.Parent != n {
				panic(b.vm.NewTypeError("insertBefore: the reference node is not a child of this node"))
			}
		}
		detach(child)
		n.InsertBefore(child, ref)
		return call.Argument(0)
	})
	b.method("removeChild", func(n *html.Node, call goja.FunctionCall) goja.Value {
		child := b.nodeOf(call.Argument(0))
		if child.Parent != n {
			panic(b.vm.NewTypeError("removeChild: the node to be removed is not a child of this node"))
		}
		n.RemoveChild(child)
		return call.Argument(0)
	})
	b.method("remove", func(n *html.Node, _ goja.FunctionCall) goja.Value {
		detach(n)
		return goja.Undefined()
	})
	b.method("cloneNode", func(n *html.Node, call goja.FunctionCall) goja.Value {
		return b.wrap(cloneNode(n, call.Argument(0).ToBoolean()))
	})

	b.method("addEventListener", func(n *html.Node, call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		if fn := call.Argument(1); isCallable(fn) {
			if b.listeners[n] == nil {
				b.listeners[n] = make(map[string][]goja.Value)
			}
			b.listeners[n][typ] = append(b.listeners[n][typ], fn)
		}
		return goja.Undefined()
	})
	b.method("removeEventListener", func(n *html.Node, call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		if m := b.listeners[n]; m != nil {
			m[typ] = without(m[typ], call.Argument(1))
		}
		return goja.Undefined()
	})
	b.method("dispatchEvent", func(n *html.Node, call goja.FunctionCall) goja.Value {
		ev := call.Argument(0).ToObject(b.vm)
		if err := b.fire(n, ev); err != nil {
			b.logger.Warn("Uncaught error in event listener.", zap.Error(err))
		}
		return b.vm.ToValue(!ev.Get("defaultPrevented").ToBoolean())
	})
	b.method("click", func(n *html.Node, _ goja.FunctionCall) goja.Value {
		if hasAttr(n, "disabled") {
			return goja.Undefined()
		}
		if err := b.dispatch(b.wrap(n), "click", true); err != nil {
			b.logger.Warn("Uncaught error in click handler.", zap.Error(err))
		}
		return goja.Undefined()
	})
}

// dispatch creates an Event and fires it at target.
func (b *DOMBridge) dispatch(target goja.Value, eventType string, bubbles bool) error {
	init := b.vm.NewObject()
	_ = init.Set("bubbles", bubbles)
	ev, err := b.vm.New(b.eventCtor, b.vm.ToValue(eventType), init)
	if err != nil {
		return err
	}
	return b.fire(b.nodeOf(target), ev)
}

// fire runs the on<type> handler and listeners of each node on the
// propagation path. It returns the first listener error; later listeners
// still run.
func (b *DOMBridge) fire(target *html.Node, ev *goja.Object) error {
	typ := ev.Get("type").String()
	_ = ev.Set("target", b.wrap(target))

	path := []*html.Node{target}
	if ev.Get("bubbles").ToBoolean() {
		for p := target.Parent; p != nil; p = p.Parent {
			path = append(path, p)
		}
	}

	var firstErr error
	for _, n := range path {
		obj := b.wrap(n).(*goja.Object)
		_ = ev.Set("currentTarget", obj)

		handlers := []goja.Value{obj.Get("on" + typ)}
		handlers = append(handlers, b.listeners[n][typ]...)
		for _, h := range handlers {
			fn, ok := goja.AssertFunction(h)
			if !ok {
				continue
			}
			if _, err := fn(obj, ev); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if ev.Get("__stopped").ToBoolean() {
			break
		}
	}
	return firstErr
}

func (b *DOMBridge) compile(selector string) cascadia.Selector {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		panic(b.vm.NewTypeError("'%s' is not a valid selector", selector))
	}
	return sel
}

// selectAll matches descendants of n in document order.
func (b *DOMBridge) selectAll(n *html.Node, selector string) []*html.Node {
	return goquery.NewDocumentFromNode(n).FindMatcher(b.compile(selector)).Nodes
}

func (b *DOMBridge) stringify(v goja.Value) (string, error) {
	stringify, ok := goja.AssertFunction(b.vm.Get("JSON").ToObject(b.vm).Get("stringify"))
	if !ok {
		return "", fmt.Errorf("JSON.stringify is not available")
	}
	out, err := stringify(goja.Undefined(), v)
	if err != nil {
		return "", err
	}
	if goja.IsUndefined(out) {
		return "null", nil
	}
	return out.String(), nil
}

func (b *DOMBridge) parse(s string) (goja.Value, error) {
	parse, ok := goja.AssertFunction(b.vm.Get("JSON").ToObject(b.vm).Get("parse"))
	if !ok {
		return nil, fmt.Errorf("JSON.parse is not available")
	}
	return parse(goja.Undefined(), b.vm.ToValue(s))
}

// initConsole routes console output to the logger.
func (b *DOMBridge) initConsole() {
	console := b.vm.NewObject()
	logFunc := func(level zapcore.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				if _, isObj := arg.(*goja.Object); isObj {
					if s, err := b.stringify(arg); err == nil {
						args[i] = s
						continue
					}
				}
				args[i] = arg.String()
			}
			b.logger.Log(level, "[JS Console]", zap.String("message", strings.Join(args, " ")))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logFunc(zapcore.DebugLevel))
	_ = console.Set("info", logFunc(zapcore.DebugLevel))
	_ = console.Set("debug", logFunc(zapcore.DebugLevel))
	_ = console.Set("warn", logFunc(zapcore.WarnLevel))
	_ = console.Set("error", logFunc(zapcore.WarnLevel))
	_ = b.vm.GlobalObject().Set("console", console)
}

// -- Tree helpers --

func isCallable(v goja.Value) bool {
	_, ok := goja.AssertFunction(v)
	return ok
}

func without(list []goja.Value, fn goja.Value) []goja.Value {
	out := list[:0]
	for _, v := range list {
		if !v.SameAs(fn) {
			out = append(out, v)
		}
	}
	return out
}

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	case html.DocumentNode:
		return 9
	default:
		return 0
	}
}

func nodeName(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return strings.ToUpper(n.Data)
	case html.TextNode:
		return "#text"
	case html.DocumentNode:
		return "#document"
	case html.CommentNode:
		return "#comment"
	}
	return ""
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
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

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
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

func toggleAttr(n *html.Node, key string, on bool) {
	if on {
		if !hasAttr(n, key) {
			n.Attr = append(n.Attr, html.Attribute{Key: key})
		}
		return
	}
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func cloneNode(n *html.Node, deep bool) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	if deep {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			clone.AppendChild(cloneNode(c, true))
		}
	}
	return clone
}

// valueOf mirrors the value property of form controls.
func valueOf(n *html.Node) string {
	switch strings.ToLower(n.Data) {
	case "textarea":
		return htmlquery.InnerText(n)
	case "select":
		opts := htmlquery.Find(n, ".//option")
		for _, o := range opts {
			if hasAttr(o, "selected") {
				return optionValue(o)
			}
		}
		if len(opts) > 0 {
			return optionValue(opts[0])
		}
		return ""
	case "option":
		return optionValue(n)
	default:
		return htmlquery.SelectAttr(n, "value")
	}
}

func setValue(n *html.Node, v string) {
	switch strings.ToLower(n.Data) {
	case "textarea":
		removeChildren(n)
		n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
	case "select":
		for _, o := range htmlquery.Find(n, ".//option") {
			toggleAttr(o, "selected", false)
			if optionValue(o) == v {
				toggleAttr(o, "selected", true)
			}
		}
	default:
		setAttr(n, "value", v)
	}
}

func optionValue(o *html.Node) string {
	if v, ok := attr(o, "value"); ok {
		return v
	}
	return strings.TrimSpace(htmlquery.InnerText(o))
}
