package hal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueTypes(t *testing.T) {
	ctx := newTestContext(t)

	testCases := []struct {
		name   string
		script string
		typ    ValueType
	}{
		{"Undefined", "undefined", TypeUndefined},
		{"Null", "null", TypeNull},
		{"Boolean", "true", TypeBoolean},
		{"Number", "42.5", TypeNumber},
		{"Integer", "42", TypeNumber},
		{"String", "'text'", TypeString},
		{"Object", "({})", TypeObject},
		{"Symbol", "Symbol('s')", TypeSymbol},
		{"BigInt", "10n", TypeBigInt},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := eval(t, ctx, tc.script)
			require.Equal(t, tc.typ, v.Type())
			require.Equal(t, tc.typ.String(), v.Type().String())
		})
	}

	require.True(t, eval(t, ctx, "[1, 2]").IsArray())
	require.True(t, eval(t, ctx, "new Date(0)").IsDate())
	require.True(t, eval(t, ctx, "(function () {})").IsFunction())
	require.True(t, eval(t, ctx, "(class {})").IsConstructor())
	require.False(t, eval(t, ctx, "(() => 1)").IsConstructor())
	require.True(t, eval(t, ctx, "new TypeError('x')").IsError())
	require.False(t, eval(t, ctx, "({message: 'x'})").IsError())
	require.Equal(t, "unknown", ValueType(99).String())
}

func TestValueCreation(t *testing.T) {
	ctx := newTestContext(t)

	undef := ctx.CreateUndefined()
	defer undef.Free()
	require.True(t, undef.IsUndefined())

	null := ctx.CreateNull()
	defer null.Free()
	require.True(t, null.IsNull())

	b := ctx.CreateBoolean(true)
	defer b.Free()
	require.True(t, b.IsBoolean())
	require.True(t, b.ToBool())

	n := ctx.CreateNumber(2.5)
	defer n.Free()
	f, err := n.ToNumber()
	require.NoError(t, err)
	require.Equal(t, 2.5, f)

	s := ctx.CreateString("hello")
	defer s.Free()
	require.Equal(t, "hello", s.String())
	require.Same(t, ctx, s.Context())
}

func TestValueConversions(t *testing.T) {
	ctx := newTestContext(t)

	t.Run("ToInt32", func(t *testing.T) {
		testCases := []struct {
			script string
			want   int32
		}{
			{"42", 42},
			{"-7.9", -7},
			{"2147483648", math.MinInt32},
			{"4294967297", 1},
			{"NaN", 0},
			{"Infinity", 0},
			{"'12'", 12},
		}
		for _, tc := range testCases {
			n, err := eval(t, ctx, tc.script).ToInt32()
			require.NoError(t, err)
			require.Equal(t, tc.want, n, tc.script)
		}
	})

	t.Run("ToUint32", func(t *testing.T) {
		n, err := eval(t, ctx, "-1").ToUint32()
		require.NoError(t, err)
		require.Equal(t, uint32(math.MaxUint32), n)
	})

	t.Run("ToBool", func(t *testing.T) {
		require.False(t, eval(t, ctx, "''").ToBool())
		require.False(t, eval(t, ctx, "0").ToBool())
		require.True(t, eval(t, ctx, "'0'").ToBool())
		require.True(t, eval(t, ctx, "({})").ToBool())
		require.False(t, Value{}.ToBool())
	})

	t.Run("ToString", func(t *testing.T) {
		require.Equal(t, "1,2", eval(t, ctx, "[1, 2]").String())
		require.Equal(t, "undefined", Value{}.String())

		_, err := eval(t, ctx, "({ toString() { throw new Error('no') } })").ToString()
		var jsErr *Error
		require.ErrorAs(t, err, &jsErr)
		require.Equal(t, "no", jsErr.Message)
	})

	t.Run("ToNumber", func(t *testing.T) {
		n, err := eval(t, ctx, "'abc'").ToNumber()
		require.NoError(t, err)
		require.True(t, math.IsNaN(n))
		n, err = Value{}.ToNumber()
		require.NoError(t, err)
		require.True(t, math.IsNaN(n))
	})

	t.Run("ToObject", func(t *testing.T) {
		obj, err := eval(t, ctx, "'abc'").ToObject()
		require.NoError(t, err)
		defer obj.Free()
		require.True(t, obj.IsObject())
		length, err := obj.GetProperty("length")
		require.NoError(t, err)
		defer length.Free()
		require.Equal(t, "3", length.String())

		_, err = eval(t, ctx, "null").ToObject()
		require.Error(t, err)

		_, err = Value{}.ToObject()
		require.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("ToJSON", func(t *testing.T) {
		v := eval(t, ctx, "({a: 1, b: [true, null]})")
		s, err := v.ToJSON(0)
		require.NoError(t, err)
		require.Equal(t, `{"a":1,"b":[true,null]}`, s)

		s, err = v.ToJSON(2)
		require.NoError(t, err)
		require.Equal(t, "{\n  \"a\": 1,\n  \"b\": [\n    true,\n    null\n  ]\n}", s)

		s, err = eval(t, ctx, "undefined").ToJSON(0)
		require.NoError(t, err)
		require.Empty(t, s)

		_, err = eval(t, ctx, "(() => { const o = {}; o.self = o; return o })()").ToJSON(0)
		require.Error(t, err)
	})
}

func TestValueEquality(t *testing.T) {
	ctx := newTestContext(t)

	one := eval(t, ctx, "1")
	str := eval(t, ctx, "'1'")
	eq, err := one.IsEqual(str)
	require.NoError(t, err)
	require.True(t, eq)
	require.False(t, one.IsStrictlyEqual(str))

	obj := eval(t, ctx, "({})")
	clone := obj.Clone()
	defer clone.Free()
	require.True(t, obj.IsStrictlyEqual(clone))

	other := newTestContext(t)
	foreign := other.CreateNumber(1)
	defer foreign.Free()
	_, err = one.IsEqual(foreign)
	require.ErrorIs(t, err, ErrContextMismatch)
	require.False(t, one.IsStrictlyEqual(foreign))
}

func TestValueInstanceOf(t *testing.T) {
	ctx := newTestContext(t)
	eval(t, ctx, "class Animal {}; class Dog extends Animal {}; var rex = new Dog()")

	rex := eval(t, ctx, "rex")
	animal, err := eval(t, ctx, "Animal").ToObject()
	require.NoError(t, err)
	defer animal.Free()
	ok, err := rex.IsInstanceOfConstructor(animal)
	require.NoError(t, err)
	require.True(t, ok)

	date, err := eval(t, ctx, "Date").ToObject()
	require.NoError(t, err)
	defer date.Free()
	ok, err = rex.IsInstanceOfConstructor(date)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValueFree(t *testing.T) {
	ctx := newTestContext(t)
	v := ctx.CreateString("free me")
	require.True(t, v.IsValid())
	v.Free()
	require.False(t, v.IsValid())
	v.Free()
	require.True(t, v.IsUndefined())

	var zero Value
	zero.Free()
	require.False(t, zero.IsValid())
}
