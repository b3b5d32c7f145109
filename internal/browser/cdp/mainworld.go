// internal/browser/cdp/mainworld.go
package cdp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/formbridge/internal/browser/realm"
)

// MainWorld is the page-side realm of a tab: the main world, where the page's
// own scripts and the objects they attach to nodes live. Remote handles are
// allocated in an object group and released with it.
type MainWorld struct {
	session *Session
	group   string
}

var (
	_ realm.Realm   = (*MainWorld)(nil)
	_ realm.Grouper = (*MainWorld)(nil)
)

func newMainWorld(s *Session) *MainWorld {
	return &MainWorld{session: s, group: "formbridge-" + uuid.New().String()}
}

// NewGroup returns a view whose handles live in their own object group.
func (w *MainWorld) NewGroup() (realm.Realm, func(ctx context.Context) error) {
	g := newMainWorld(w.session)
	return g, g.Release
}

// Release drops every handle allocated through w.
func (w *MainWorld) Release(ctx context.Context) error {
	return w.session.RunActions(ctx, runtime.ReleaseObjectGroup(w.group))
}

func (w *MainWorld) Global(ctx context.Context) (realm.Value, error) {
	var obj *runtime.RemoteObject
	err := w.session.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		res, exc, err := runtime.Evaluate("window").WithObjectGroup(w.group).Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError(exc)
		}
		obj = res
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return &remoteValue{world: w, obj: obj}, nil
}

// callOn runs fn with this bound to the object and returns the result handle.
func (w *MainWorld) callOn(ctx context.Context, id runtime.RemoteObjectID, fn string, byValue bool) (*runtime.RemoteObject, error) {
	var out *runtime.RemoteObject
	err := w.session.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		p := runtime.CallFunctionOn(fn).WithObjectID(id).WithObjectGroup(w.group)
		if byValue {
			p = p.WithReturnByValue(true)
		}
		res, exc, err := p.Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError(exc)
		}
		out = res
		return nil
	}))
	return out, err
}

// remoteValue is a handle to a main-world value. Primitives are carried by
// value, objects by remote object id.
type remoteValue struct {
	world *MainWorld
	obj   *runtime.RemoteObject
}

func (v *remoteValue) Type() realm.Type {
	if v.obj == nil {
		return realm.TypeUndefined
	}
	switch v.obj.Type {
	case runtime.TypeUndefined:
		return realm.TypeUndefined
	case runtime.TypeFunction:
		return realm.TypeFunction
	case runtime.TypeBoolean:
		return realm.TypeBoolean
	case runtime.TypeString:
		return realm.TypeString
	case runtime.TypeNumber, runtime.TypeBigint:
		return realm.TypeNumber
	case runtime.TypeObject:
		if v.obj.Subtype == runtime.SubtypeNull {
			return realm.TypeNull
		}
		return realm.TypeObject
	default:
		// Symbols have no JSON form; they only ever fail assignments.
		return realm.TypeObject
	}
}

func (v *remoteValue) objectID() (runtime.RemoteObjectID, error) {
	if v.obj == nil || v.obj.ObjectID == "" {
		return "", fmt.Errorf("%w (%s)", realm.ErrNotObject, v.Type())
	}
	return v.obj.ObjectID, nil
}

func (v *remoteValue) Get(ctx context.Context, name string) (realm.Value, error) {
	id, err := v.objectID()
	if err != nil {
		return nil, err
	}
	key, err := json.Marshal(name)
	if err != nil {
		return nil, err
	}
	res, err := v.world.callOn(ctx, id, fmt.Sprintf("function () { return this[%s]; }", key), false)
	if err != nil {
		return nil, err
	}
	return &remoteValue{world: v.world, obj: res}, nil
}

func (v *remoteValue) Call(ctx context.Context, method string, args ...any) (realm.Value, error) {
	id, err := v.objectID()
	if err != nil {
		return nil, err
	}
	key, err := json.Marshal(method)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("arguments of %s: %w", method, err)
	}
	fn := fmt.Sprintf(`function () {
  var f = this[%[1]s];
  if (typeof f !== 'function') throw new TypeError(%[1]s + ' is not a function');
  return f.apply(this, %[2]s);
}`, key, encoded)
	res, err := v.world.callOn(ctx, id, fn, false)
	if err != nil {
		return nil, err
	}
	return &remoteValue{world: v.world, obj: res}, nil
}

func (v *remoteValue) Items(ctx context.Context) ([]realm.Value, error) {
	if _, err := v.objectID(); err != nil {
		return nil, err
	}
	length, err := v.Get(ctx, "length")
	if err != nil {
		return nil, err
	}
	if length.Type() != realm.TypeNumber {
		return nil, fmt.Errorf("value is not array-like")
	}
	var n int
	if err := length.Export(ctx, &n); err != nil {
		return nil, err
	}
	out := make([]realm.Value, 0, n)
	for i := 0; i < n; i++ {
		item, err := v.Get(ctx, strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (v *remoteValue) Export(ctx context.Context, out any) error {
	raw := []byte("null")
	switch {
	case v.obj == nil:
	case v.obj.ObjectID == "":
		if len(v.obj.Value) > 0 {
			raw = []byte(v.obj.Value)
		}
	default:
		res, err := v.world.callOn(ctx, v.obj.ObjectID, "function () { return this; }", true)
		if err != nil {
			return err
		}
		if len(res.Value) > 0 {
			raw = []byte(res.Value)
		}
	}
	return json.Unmarshal(raw, out)
}
