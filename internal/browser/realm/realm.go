// internal/browser/realm/realm.go
package realm

import (
	"context"
	"errors"
	"fmt"
)

// Type is the JavaScript type of a value, with null reported separately from object.
type Type string

const (
	TypeUndefined Type = "undefined"
	TypeNull      Type = "null"
	TypeBoolean   Type = "boolean"
	TypeNumber    Type = "number"
	TypeString    Type = "string"
	TypeObject    Type = "object"
	TypeFunction  Type = "function"
)

// ErrNotObject is returned when a property or method is requested on a primitive.
var ErrNotObject = errors.New("value is not an object")

// ThrowError reports an exception thrown by page script.
type ThrowError struct {
	Message string
}

func (e *ThrowError) Error() string {
	return fmt.Sprintf("javascript exception: %s", e.Message)
}

// Value is a handle to a value living in the page's script realm. Handles are
// only meaningful to the realm that produced them.
type Value interface {
	Type() Type
	// Get reads a property.
	Get(ctx context.Context, name string) (Value, error)
	// Call invokes a method with this set to the value. Arguments must be
	// JSON-encodable; they arrive in the page as plain script data.
	Call(ctx context.Context, method string, args ...any) (Value, error)
	// Items expands an array-like value (Array, NodeList).
	Items(ctx context.Context) ([]Value, error)
	// Export decodes the value's JSON form into out.
	Export(ctx context.Context, out any) error
}

// Realm is the page-side view of a document: full access to the script
// objects attached to nodes, no access to automation messaging.
type Realm interface {
	// Global returns the window object.
	Global(ctx context.Context) (Value, error)
}

// Grouper is implemented by realms that hold remote handles. NewGroup returns
// a view of the realm whose handles are all dropped by release, leaving
// handles of other groups alone.
type Grouper interface {
	NewGroup() (group Realm, release func(ctx context.Context) error)
}

// Scope returns a handle group of r when r supports one, else r itself with a
// no-op release.
func Scope(r Realm) (Realm, func(ctx context.Context) error) {
	if g, ok := r.(Grouper); ok {
		return g.NewGroup()
	}
	return r, func(context.Context) error { return nil }
}

// IsNullish reports whether v is null or undefined.
func IsNullish(v Value) bool {
	if v == nil {
		return true
	}
	t := v.Type()
	return t == TypeNull || t == TypeUndefined
}

// Document returns window.document.
func Document(ctx context.Context, r Realm) (Value, error) {
	global, err := r.Global(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := global.Get(ctx, "document")
	if err != nil {
		return nil, fmt.Errorf("failed to read window.document: %w", err)
	}
	if IsNullish(doc) {
		return nil, errors.New("window.document is not available")
	}
	return doc, nil
}

// Query runs querySelector on root. The bool reports whether a node matched.
func Query(ctx context.Context, root Value, selector string) (Value, bool, error) {
	v, err := root.Call(ctx, "querySelector", selector)
	if err != nil {
		return nil, false, fmt.Errorf("querySelector(%q): %w", selector, err)
	}
	if IsNullish(v) {
		return nil, false, nil
	}
	return v, true, nil
}

// QueryAll runs querySelectorAll on root.
func QueryAll(ctx context.Context, root Value, selector string) ([]Value, error) {
	list, err := root.Call(ctx, "querySelectorAll", selector)
	if err != nil {
		return nil, fmt.Errorf("querySelectorAll(%q): %w", selector, err)
	}
	return list.Items(ctx)
}

// HasMethod reports whether v has a callable property called name.
func HasMethod(ctx context.Context, v Value, name string) (bool, error) {
	if IsNullish(v) {
		return false, nil
	}
	prop, err := v.Get(ctx, name)
	if err != nil {
		return false, err
	}
	return prop.Type() == TypeFunction, nil
}

// String reads a property as a string. Missing properties read as "".
func String(ctx context.Context, v Value, name string) (string, error) {
	prop, err := v.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if IsNullish(prop) {
		return "", nil
	}
	var s any
	if err := prop.Export(ctx, &s); err != nil {
		return "", err
	}
	switch t := s.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(t), nil
	}
}
