// internal/browser/cdp/isolated.go
package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/internal/browser/dom"
)

// snapshotScript lists the editable elements with the same fields and XPath
// anchoring as the offline document.
const snapshotScript = `(function (selector) {
  function position(n) {
    var pos = 1;
    for (var p = n.previousElementSibling; p; p = p.previousElementSibling) {
      if (p.tagName === n.tagName) pos++;
    }
    return pos;
  }
  function path(node) {
    var steps = [];
    for (var n = node; n && n.nodeType === 1; n = n.parentElement) {
      var id = n.getAttribute('id');
      if (id && id.indexOf("'") < 0) { steps.push("//*[@id='" + id + "']"); break; }
      steps.push(n.tagName.toLowerCase() + '[' + position(n) + ']');
    }
    var out = steps.reverse().join('/');
    return out.indexOf('//') === 0 ? out : '/' + out;
  }
  function visible(el) {
    if ((el.getAttribute('type') || '').toLowerCase() === 'hidden') return false;
    for (var n = el; n && n.nodeType === 1; n = n.parentElement) {
      if (n.hidden) return false;
      var style = getComputedStyle(n);
      if (style.display === 'none' || style.visibility === 'hidden') return false;
    }
    return true;
  }
  var out = [];
  document.querySelectorAll(selector).forEach(function (el, i) {
    var tag = el.tagName.toLowerCase();
    var info = {
      index: i, tag: tag, type: '', id: el.id || '', name: el.getAttribute('name') || '',
      placeholder: el.getAttribute('placeholder') || '', className: el.getAttribute('class') || '',
      value: el.value || '', checked: !!el.checked, disabled: el.matches(':disabled'),
      readOnly: !!el.readOnly, visible: visible(el), options: [], path: path(el)
    };
    if (tag === 'input') info.type = (el.getAttribute('type') || 'text').toLowerCase();
    if (tag === 'select') {
      for (var j = 0; j < el.options.length; j++) {
        var o = el.options[j];
        info.options.push({ value: o.value, text: o.text, selected: o.selected });
      }
    }
    out.push(info);
  });
  return out;
})`

// elementScript resolves an element by path and applies one operation with
// the prototype setters, so instance-level overrides installed by page
// scripts are bypassed.
const elementScript = `(function (path, tag, op, arg) {
  var el = document.evaluate(path, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
  if (!el || el.tagName.toLowerCase() !== tag) throw new Error('element ' + path + ' is no longer attached');
  function native(proto, prop, v) { Object.getOwnPropertyDescriptor(proto, prop).set.call(el, v); }
  switch (op) {
    case 'value':
      native(tag === 'textarea' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype, 'value', arg);
      return;
    case 'checked':
      native(HTMLInputElement.prototype, 'checked', arg);
      return;
    case 'select':
      native(HTMLSelectElement.prototype, 'selectedIndex', arg);
      return;
    case 'event':
      el.dispatchEvent(new Event(arg, { bubbles: arg !== 'blur' && arg !== 'focus' }));
      return;
  }
  throw new Error('unknown operation ' + op);
})`

// IsolatedDocument is the automation view of a tab. Scripts run in an
// isolated world: the DOM is shared with the page, page script objects are not.
type IsolatedDocument struct {
	session   *Session
	contextID runtime.ExecutionContextID
	logger    *zap.Logger
}

var _ dom.Document = (*IsolatedDocument)(nil)

type snapshot struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	ClassName   string `json:"className"`
	Value       string `json:"value"`
	Checked     bool   `json:"checked"`
	Disabled    bool   `json:"disabled"`
	ReadOnly    bool   `json:"readOnly"`
	Visible     bool   `json:"visible"`
	Options     []struct {
		Value    string `json:"value"`
		Text     string `json:"text"`
		Selected bool   `json:"selected"`
	} `json:"options"`
	Path string `json:"path"`
}

func (s snapshot) info() dom.Info {
	info := dom.Info{
		Index:       s.Index,
		Tag:         s.Tag,
		Type:        s.Type,
		ID:          s.ID,
		Name:        s.Name,
		Placeholder: s.Placeholder,
		ClassName:   s.ClassName,
		Value:       s.Value,
		Checked:     s.Checked,
		Disabled:    s.Disabled,
		ReadOnly:    s.ReadOnly,
		Visible:     s.Visible,
		Path:        s.Path,
	}
	for _, o := range s.Options {
		info.Options = append(info.Options, dom.Option{Value: o.Value, Text: o.Text, Selected: o.Selected})
	}
	return info
}

// Editables snapshots every input, textarea and select element.
func (d *IsolatedDocument) Editables(ctx context.Context) ([]dom.Element, error) {
	expr, err := invocation(snapshotScript, dom.EditableSelector)
	if err != nil {
		return nil, err
	}
	var snaps []snapshot
	if err := d.session.evaluate(ctx, d.contextID, expr, &snaps); err != nil {
		return nil, fmt.Errorf("failed to snapshot editable elements: %w", err)
	}
	out := make([]dom.Element, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, &isolatedElement{doc: d, info: s.info()})
	}
	return out, nil
}

type isolatedElement struct {
	doc  *IsolatedDocument
	info dom.Info
}

func (e *isolatedElement) Info() dom.Info { return e.info }

func (e *isolatedElement) run(ctx context.Context, op string, arg any) error {
	expr, err := invocation(elementScript, e.info.Path, e.info.Tag, op, arg)
	if err != nil {
		return err
	}
	return e.doc.session.evaluate(ctx, e.doc.contextID, expr, nil)
}

func (e *isolatedElement) SetNativeValue(ctx context.Context, value string) error {
	if e.info.Tag != "input" && e.info.Tag != "textarea" {
		return fmt.Errorf("cannot write a text value into <%s>", e.info.Tag)
	}
	return e.run(ctx, "value", value)
}

func (e *isolatedElement) SetChecked(ctx context.Context, checked bool) error {
	return e.run(ctx, "checked", checked)
}

func (e *isolatedElement) SelectOption(ctx context.Context, index int) error {
	if index < 0 || index >= len(e.info.Options) {
		return fmt.Errorf("option index %d out of range", index)
	}
	return e.run(ctx, "select", index)
}

func (e *isolatedElement) Dispatch(ctx context.Context, eventType string) error {
	e.doc.logger.Debug("Dispatching event", zap.String("type", eventType), zap.String("path", e.info.Path))
	return e.run(ctx, "event", eventType)
}
