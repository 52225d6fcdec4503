package hal

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// Counters shared by the exported test types. Tests compare deltas, so they
// are never reset.
var (
	widgetsCreated   atomic.Int64
	widgetsFinalized atomic.Int64
	widgetPiCalls    atomic.Int64
	widgetConfigs    atomic.Int64
	childPiCalls     atomic.Int64
	childrenCreated  atomic.Int64
	constCalls       [4]atomic.Int64

	finalizedHosts sync.Map
)

// Widget is the base exported type used across the tests.
type Widget struct {
	ExportObject
	name string
}

func newWidget(*Context) *Widget {
	widgetsCreated.Add(1)
	return &Widget{name: "widget"}
}

func (w *Widget) PostCallAsConstructor(ctx *Context, args []Value) error {
	if len(args) > 0 && args[0].IsString() {
		w.name = args[0].String()
	}
	if w.name == "reject" {
		return NewError("RangeError", "rejected by constructor")
	}
	return nil
}

func (w *Widget) Finalize() {
	widgetsFinalized.Add(1)
	finalizedHosts.Store(w, true)
}

func initWidget(b *ClassBuilder[*Widget]) {
	b.AddValueProperty("name",
		func(self *Widget) (Value, error) {
			return self.Context().CreateString(self.name), nil
		},
		func(self *Widget, v Value) (bool, error) {
			s, err := v.ToString()
			if err != nil {
				return false, err
			}
			self.name = s
			return true, nil
		}, true)
	b.AddValueProperty("hidden", func(self *Widget) (Value, error) {
		return self.Context().CreateBoolean(true), nil
	}, nil, false)
	b.AddConstantProperty("pi", func(self *Widget) (Value, error) {
		widgetPiCalls.Add(1)
		return self.Context().CreateNumber(3.14159), nil
	})
	b.AddConstantProperty("config", func(self *Widget) (Value, error) {
		widgetConfigs.Add(1)
		ctx := self.Context()
		version := ctx.CreateNumber(1)
		defer version.Free()
		obj, err := ctx.CreateObject(nil, map[string]Value{"version": version})
		return obj.Value, err
	})
	b.AddFunctionProperty("greet", func(self *Widget, args []Value, this Object) (Value, error) {
		who := "nobody"
		if len(args) > 0 {
			who = args[0].String()
		}
		name := "?"
		if self != nil {
			name = self.name
		}
		return this.Context().CreateString(fmt.Sprintf("%s greets %s", name, who)), nil
	})
	b.AddFunctionProperty("fail", func(self *Widget, args []Value, this Object) (Value, error) {
		return Value{}, &Error{Name: "SyntaxError", Message: "Parser error", FileName: "app.js", LineNumber: 123}
	})
	b.AddFunctionProperty("failPlain", func(self *Widget, args []Value, this Object) (Value, error) {
		return Value{}, errors.New("plain failure")
	})
	b.AddFunctionProperty("boom", func(self *Widget, args []Value, this Object) (Value, error) {
		panic("boom")
	})
	b.AddFunctionProperty("callback", func(self *Widget, args []Value, this Object) (Value, error) {
		fn, err := args[0].ToObject()
		if err != nil {
			return Value{}, err
		}
		defer fn.Free()
		return fn.Call()
	})
}

// ChildWidget derives from Widget and overrides pi.
type ChildWidget struct {
	Widget
}

func newChildWidget(*Context) *ChildWidget {
	childrenCreated.Add(1)
	return &ChildWidget{Widget: Widget{name: "child"}}
}

func initChildWidget(b *ClassBuilder[*ChildWidget]) {
	b.SetParent(ClassOf[*Widget]())
	b.AddConstantProperty("pi", func(self *ChildWidget) (Value, error) {
		childPiCalls.Add(1)
		return self.Context().CreateString("hello pi"), nil
	})
}

// OtherWidget carries four constants and dynamic property traps.
type OtherWidget struct {
	ExportObject
	dynamic map[string]string
}

func newOtherWidget(*Context) *OtherWidget {
	return &OtherWidget{dynamic: make(map[string]string)}
}

func initOtherWidget(b *ClassBuilder[*OtherWidget]) {
	for i := range constCalls {
		b.AddConstantProperty(fmt.Sprintf("CONST%d", i+1), func(self *OtherWidget) (Value, error) {
			constCalls[i].Add(1)
			return self.Context().CreateNumber(float64(i + 1)), nil
		})
	}
	b.AddHasPropertyCallback(func(self *OtherWidget, name String) bool {
		return strings.HasPrefix(name.String(), "dyn_")
	})
	b.AddGetPropertyCallback(func(self *OtherWidget, name String) (Value, error) {
		if name.String() == "dyn_error" {
			return Value{}, NewError("TypeError", "dynamic failure")
		}
		if v, ok := self.dynamic[name.String()]; ok {
			return self.Context().CreateString(v), nil
		}
		if strings.HasPrefix(name.String(), "dyn_") {
			return self.Context().CreateString("dynamic:" + name.String()), nil
		}
		return Value{}, nil
	})
	b.AddSetPropertyCallback(func(self *OtherWidget, name String, value Value) (bool, error) {
		if !strings.HasPrefix(name.String(), "dyn_") {
			return false, nil
		}
		self.dynamic[name.String()] = value.String()
		return true, nil
	})
}

func init() {
	Export[*Widget]("Widget", newWidget, initWidget)
	Export[*ChildWidget]("ChildWidget", newChildWidget, initChildWidget)
	Export[*OtherWidget]("OtherWidget", newOtherWidget, initOtherWidget)
}

// newTestContext creates a context in a fresh group that is closed when the
// test ends.
func newTestContext(t *testing.T, opts ...Option) *Context {
	t.Helper()
	group := NewContextGroup(opts...)
	ctx, err := group.CreateContext()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, group.Close())
	})
	return ctx
}

// exposeClass publishes a constructible object of class on the global
// object under name.
func exposeClass(t *testing.T, ctx *Context, name string, class *Class) {
	t.Helper()
	tmpl, err := ctx.CreateObject(class, nil)
	require.NoError(t, err)
	defer tmpl.Free()
	global := ctx.GlobalObject()
	defer global.Free()
	require.NoError(t, global.SetProperty(name, tmpl.Value))
}

// eval runs script and returns its completion value, freed when the test
// ends.
func eval(t *testing.T, ctx *Context, script string) Value {
	t.Helper()
	v, err := ctx.EvaluateScript(script)
	require.NoError(t, err)
	t.Cleanup(func() { v.Free() })
	return v
}

func evalString(t *testing.T, ctx *Context, script string) string {
	t.Helper()
	s, err := eval(t, ctx, script).ToString()
	require.NoError(t, err)
	return s
}

func evalNumber(t *testing.T, ctx *Context, script string) float64 {
	t.Helper()
	n, err := eval(t, ctx, script).ToNumber()
	require.NoError(t, err)
	return n
}
