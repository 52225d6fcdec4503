package hal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectProperties(t *testing.T) {
	ctx := newTestContext(t)
	obj, err := ctx.CreateObject(nil, nil)
	require.NoError(t, err)
	defer obj.Free()

	name := ctx.CreateString("hal")
	defer name.Free()
	require.NoError(t, obj.SetProperty("name", name))
	require.True(t, obj.HasProperty("name"))
	require.True(t, obj.HasProperty("toString"))
	require.False(t, obj.HasProperty("missing"))

	v, err := obj.GetProperty("name")
	require.NoError(t, err)
	require.Equal(t, "hal", v.String())
	v.Free()

	missing, err := obj.GetProperty("missing")
	require.NoError(t, err)
	require.True(t, missing.IsUndefined())
	missing.Free()

	deleted, err := obj.DeleteProperty("name")
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, obj.HasProperty("name"))
}

func TestObjectPropertyAttributes(t *testing.T) {
	ctx := newTestContext(t)
	obj, err := ctx.CreateObject(nil, nil)
	require.NoError(t, err)
	defer obj.Free()
	global := ctx.GlobalObject()
	defer global.Free()
	require.NoError(t, global.SetProperty("obj", obj.Value))

	one := ctx.CreateNumber(1)
	defer one.Free()
	require.NoError(t, obj.SetProperty("fixed", one, PropertyReadOnly))
	require.NoError(t, obj.SetProperty("secret", one, PropertyDontEnum))
	require.NoError(t, obj.SetProperty("pinned", one, PropertyDontDelete))
	require.NoError(t, obj.SetProperty("plain", one))

	require.Equal(t, float64(1), evalNumber(t, ctx, "obj.fixed = 2; obj.fixed"))

	names, err := obj.GetPropertyNames()
	require.NoError(t, err)
	require.Equal(t, []string{"fixed", "pinned", "plain"}, names.Names())
	require.Equal(t, 3, names.Count())
	require.Equal(t, "fixed", names.NameAt(0).String())

	deleted, err := obj.DeleteProperty("pinned")
	require.NoError(t, err)
	require.False(t, deleted)

	props, err := obj.GetProperties()
	require.NoError(t, err)
	require.Len(t, props, 3)
	for _, p := range props {
		p.Free()
	}
}

func TestObjectIndexedProperties(t *testing.T) {
	ctx := newTestContext(t)
	arr := Object{eval(t, ctx, "['a', 'b']")}

	v, err := arr.GetPropertyAtIndex(1)
	require.NoError(t, err)
	require.Equal(t, "b", v.String())
	v.Free()

	c := ctx.CreateString("c")
	defer c.Free()
	require.NoError(t, arr.SetPropertyAtIndex(2, c))
	json, err := arr.ToJSON(0)
	require.NoError(t, err)
	require.Equal(t, `["a","b","c"]`, json)
}

func TestCreateObjectWithProps(t *testing.T) {
	ctx := newTestContext(t)
	a := ctx.CreateNumber(1)
	defer a.Free()
	b := ctx.CreateString("two")
	defer b.Free()

	obj, err := ctx.CreateObject(nil, map[string]Value{"b": b, "a": a})
	require.NoError(t, err)
	defer obj.Free()
	json, err := obj.ToJSON(0)
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":"two"}`, json)

	other := newTestContext(t)
	foreign := other.CreateNumber(3)
	defer foreign.Free()
	_, err = ctx.CreateObject(nil, map[string]Value{"c": foreign})
	require.ErrorIs(t, err, ErrContextMismatch)
}

func TestObjectCalls(t *testing.T) {
	ctx := newTestContext(t)

	t.Run("CallAsFunction", func(t *testing.T) {
		fn, err := eval(t, ctx, "(function (a, b) { return this.base + a + b })").ToObject()
		require.NoError(t, err)
		defer fn.Free()

		this := Object{eval(t, ctx, "({base: 10})")}
		one, two := ctx.CreateNumber(1), ctx.CreateNumber(2)
		defer one.Free()
		defer two.Free()

		v, err := fn.CallAsFunction([]Value{one, two}, this)
		require.NoError(t, err)
		defer v.Free()
		require.Equal(t, "13", v.String())
	})

	t.Run("GlobalThis", func(t *testing.T) {
		eval(t, ctx, "var marker = 'global'")
		fn, err := eval(t, ctx, "(function () { return this.marker })").ToObject()
		require.NoError(t, err)
		defer fn.Free()
		v, err := fn.Call()
		require.NoError(t, err)
		defer v.Free()
		require.Equal(t, "global", v.String())
	})

	t.Run("Throws", func(t *testing.T) {
		fn, err := eval(t, ctx, "(function () { throw new RangeError('bad') })").ToObject()
		require.NoError(t, err)
		defer fn.Free()
		_, err = fn.Call()
		var jsErr *Error
		require.ErrorAs(t, err, &jsErr)
		require.Equal(t, "RangeError", jsErr.Name)
		require.Equal(t, "bad", jsErr.Message)
	})

	t.Run("NotCallable", func(t *testing.T) {
		obj := Object{eval(t, ctx, "({})")}
		_, err := obj.Call()
		var jsErr *Error
		require.ErrorAs(t, err, &jsErr)
		require.Equal(t, "TypeError", jsErr.Name)
	})

	t.Run("CallAsConstructor", func(t *testing.T) {
		ctor, err := eval(t, ctx, "(class Pair { constructor(a, b) { this.sum = a + b } })").ToObject()
		require.NoError(t, err)
		defer ctor.Free()
		one, two := ctx.CreateNumber(1), ctx.CreateNumber(2)
		defer one.Free()
		defer two.Free()

		obj, err := ctor.CallAsConstructor(one, two)
		require.NoError(t, err)
		defer obj.Free()
		sum, err := obj.GetProperty("sum")
		require.NoError(t, err)
		defer sum.Free()
		require.Equal(t, "3", sum.String())

		ok, err := obj.IsInstanceOfConstructor(ctor)
		require.NoError(t, err)
		require.True(t, ok)

		arrow, err := eval(t, ctx, "(() => 1)").ToObject()
		require.NoError(t, err)
		defer arrow.Free()
		_, err = arrow.CallAsConstructor()
		require.Error(t, err)
	})
}

func TestObjectConversions(t *testing.T) {
	ctx := newTestContext(t)
	obj := Object{eval(t, ctx, "[1, 2, 3]")}

	arr := obj.ToArray()
	defer arr.Free()
	n, err := arr.Len()
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	v := obj.ToValue()
	defer v.Free()
	require.True(t, v.IsStrictlyEqual(obj.Value))

	errObj := Object{eval(t, ctx, "new Error('oops')")}.ToError()
	defer errObj.Free()
	require.Equal(t, "oops", errObj.Message())
}

func TestObjectOnClosedContext(t *testing.T) {
	ctx := newTestContext(t)
	obj, err := ctx.CreateObject(nil, nil)
	require.NoError(t, err)
	require.NoError(t, ctx.Close())

	_, err = obj.GetProperty("x")
	require.ErrorIs(t, err, ErrContextClosed)
	require.ErrorIs(t, obj.SetProperty("x", Value{}), ErrContextClosed)
	_, err = obj.Call()
	require.ErrorIs(t, err, ErrContextClosed)
	_, err = ctx.CreateObject(nil, nil)
	require.ErrorIs(t, err, ErrContextClosed)
	_, err = ctx.EvaluateScript("1")
	require.ErrorIs(t, err, ErrContextClosed)
	obj.Free()
}
