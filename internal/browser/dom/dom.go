// internal/browser/dom/dom.go
package dom

import (
	"context"
	"strings"
)

// Kind classifies an editable element by the way a value is written into it.
type Kind int

const (
	KindUnsupported Kind = iota
	KindText
	KindTextArea
	KindCheckbox
	KindRadio
	KindSelect
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTextArea:
		return "textarea"
	case KindCheckbox:
		return "checkbox"
	case KindRadio:
		return "radio"
	case KindSelect:
		return "select"
	default:
		return "unsupported"
	}
}

// EditableSelector matches every element the form filler can target.
const EditableSelector = "input, textarea, select"

// Option is one <option> of a select element.
type Option struct {
	Value    string
	Text     string
	Selected bool
}

// Info is a snapshot of an editable element taken when it was queried.
type Info struct {
	// Index is the element's position among all editables in document order.
	Index       int
	Tag         string // lower case
	Type        string // lower case input type, "" for textarea and select
	ID          string
	Name        string
	Placeholder string
	ClassName   string
	Value       string
	Checked     bool
	Disabled    bool
	ReadOnly    bool
	Visible     bool
	Options     []Option
	// Path is a stable locator for logs and diagnostics.
	Path string
}

// nonTextInputs are input types that carry no user-writable text value.
var nonTextInputs = map[string]bool{
	"button": true,
	"submit": true,
	"reset":  true,
	"image":  true,
	"file":   true,
}

// Kind derives the element kind from its tag and type.
func (i Info) Kind() Kind {
	switch i.Tag {
	case "textarea":
		return KindTextArea
	case "select":
		return KindSelect
	case "input":
		switch t := strings.ToLower(i.Type); {
		case t == "checkbox":
			return KindCheckbox
		case t == "radio":
			return KindRadio
		case nonTextInputs[t]:
			return KindUnsupported
		default:
			return KindText
		}
	}
	return KindUnsupported
}

// Element is a handle to one editable element in the automation view of a page.
// It sees the DOM only; page script objects are out of reach.
type Element interface {
	// Info returns the snapshot taken when the element was queried.
	Info() Info
	// SetNativeValue writes through the prototype's value setter, bypassing any
	// instance-level override installed by page scripts.
	SetNativeValue(ctx context.Context, value string) error
	SetChecked(ctx context.Context, checked bool) error
	// SelectOption selects the option at the given position in Info().Options.
	SelectOption(ctx context.Context, index int) error
	// Dispatch fires a synthetic event of the given type at the element.
	Dispatch(ctx context.Context, eventType string) error
}

// Document is the automation view of a page.
type Document interface {
	// Editables lists input, textarea and select elements in document order,
	// hidden ones included. Info().Index is the position in this list.
	Editables(ctx context.Context) ([]Element, error)
}
