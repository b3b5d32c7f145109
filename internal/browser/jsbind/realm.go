// internal/browser/jsbind/realm.go
package jsbind

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dop251/goja"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/formbridge/internal/browser/realm"
)

var _ realm.Realm = (*Page)(nil)

// Global returns the page's window.
func (p *Page) Global(ctx context.Context) (realm.Value, error) {
	var out realm.Value
	err := p.withVM(ctx, func() error {
		out = p.value(p.vm.GlobalObject())
		return nil
	})
	return out, err
}

// value wraps v. Caller holds the page lock.
func (p *Page) value(v goja.Value) *value {
	return &value{page: p, v: v, typ: typeOf(v)}
}

// value is a handle to a goja value owned by a page.
type value struct {
	page *Page
	v    goja.Value
	typ  realm.Type
}

func (v *value) Type() realm.Type { return v.typ }

func (v *value) object() (*goja.Object, error) {
	obj, ok := v.v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("%w (%s)", realm.ErrNotObject, v.typ)
	}
	return obj, nil
}

func (v *value) Get(ctx context.Context, name string) (realm.Value, error) {
	obj, err := v.object()
	if err != nil {
		return nil, err
	}
	var out realm.Value
	err = v.page.withVM(ctx, func() error {
		out = v.page.value(obj.Get(name))
		return nil
	})
	return out, err
}

func (v *value) Call(ctx context.Context, method string, args ...any) (realm.Value, error) {
	obj, err := v.object()
	if err != nil {
		return nil, err
	}
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, method, err)
		}
		encoded[i] = string(b)
	}

	var out realm.Value
	err = v.page.withVM(ctx, func() error {
		fn, ok := goja.AssertFunction(obj.Get(method))
		if !ok {
			return &realm.ThrowError{Message: method + " is not a function"}
		}
		jsArgs := make([]goja.Value, len(encoded))
		for i, s := range encoded {
			parsed, err := v.page.bridge.parse(s)
			if err != nil {
				return err
			}
			jsArgs[i] = parsed
		}
		res, err := fn(obj, jsArgs...)
		if err != nil {
			return err
		}
		out = v.page.value(res)
		return nil
	})
	return out, err
}

func (v *value) Items(ctx context.Context) ([]realm.Value, error) {
	obj, err := v.object()
	if err != nil {
		return nil, err
	}
	var out []realm.Value
	err = v.page.withVM(ctx, func() error {
		length := obj.Get("length")
		if length == nil || goja.IsUndefined(length) {
			return fmt.Errorf("value is not array-like")
		}
		n := int(length.ToInteger())
		out = make([]realm.Value, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, v.page.value(obj.Get(strconv.Itoa(i))))
		}
		return nil
	})
	return out, err
}

func (v *value) Export(ctx context.Context, out any) error {
	var raw string
	err := v.page.withVM(ctx, func() error {
		if v.typ == realm.TypeUndefined {
			raw = "null"
			return nil
		}
		s, err := v.page.bridge.stringify(v.v)
		raw = s
		return err
	})
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func typeOf(v goja.Value) realm.Type {
	switch {
	case v == nil || goja.IsUndefined(v):
		return realm.TypeUndefined
	case goja.IsNull(v):
		return realm.TypeNull
	}
	if _, ok := goja.AssertFunction(v); ok {
		return realm.TypeFunction
	}
	if _, ok := v.(*goja.Object); ok {
		return realm.TypeObject
	}
	switch v.ExportType().Kind().String() {
	case "bool":
		return realm.TypeBoolean
	case "string":
		return realm.TypeString
	default:
		return realm.TypeNumber
	}
}

// throwError converts a script exception into a realm error.
func throwError(ex *goja.Exception) error {
	val := ex.Value()
	if obj, ok := val.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return &realm.ThrowError{Message: msg.String()}
		}
	}
	if val == nil {
		return &realm.ThrowError{Message: ex.Error()}
	}
	return &realm.ThrowError{Message: val.String()}
}
