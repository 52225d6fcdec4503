package hal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// Custom types for testing marshal/unmarshal interfaces
type upperString string

func (u upperString) MarshalJS(ctx *Context) (Value, error) {
	return ctx.CreateString("<" + string(u) + ">"), nil
}

type parsedVersion struct {
	Major, Minor int
}

func (p *parsedVersion) UnmarshalJS(ctx *Context, val Value) error {
	if !val.IsString() {
		return errors.New("version must be a string")
	}
	s := val.String()
	if len(s) != 3 || s[1] != '.' {
		return errors.New("malformed version")
	}
	p.Major, p.Minor = int(s[0]-'0'), int(s[2]-'0')
	return nil
}

type address struct {
	City string `js:"city"`
	Zip  string `json:"zip,omitempty"`
}

type person struct {
	Name    string            `js:"name"`
	Age     int               `js:"age"`
	Tags    []string          `js:"tags"`
	Home    *address          `js:"home"`
	Extra   map[string]int    `js:"extra"`
	Ignored string            `js:"-"`
	Meta    map[string]string `json:"meta"`
	private int
}

func TestMarshalBasicTypes(t *testing.T) {
	ctx := newTestContext(t)

	testCases := []struct {
		name  string
		input interface{}
		json  string
	}{
		{"Bool", true, "true"},
		{"Int", 42, "42"},
		{"Int8", int8(-8), "-8"},
		{"Uint64", uint64(64), "64"},
		{"Float", 2.5, "2.5"},
		{"String", "text", `"text"`},
		{"NilPointer", (*address)(nil), "null"},
		{"Nil", nil, "null"},
		{"Slice", []int{1, 2, 3}, "[1,2,3]"},
		{"NilSlice", []int(nil), "null"},
		{"Array", [2]string{"a", "b"}, `["a","b"]`},
		{"Map", map[string]int{"b": 2, "a": 1}, `{"a":1,"b":2}`},
		{"Marshaler", upperString("x"), `"<x>"`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ctx.Marshal(tc.input)
			require.NoError(t, err)
			defer v.Free()
			json, err := v.ToJSON(0)
			require.NoError(t, err)
			require.Equal(t, tc.json, json)
		})
	}

	_, err := ctx.Marshal(make(chan int))
	require.Error(t, err)
}

func TestMarshalStruct(t *testing.T) {
	ctx := newTestContext(t)

	p := person{
		Name:    "Ada",
		Age:     36,
		Tags:    []string{"math"},
		Home:    &address{City: "London", Zip: "N1"},
		Extra:   map[string]int{"x": 1},
		Ignored: "hidden",
		Meta:    map[string]string{"k": "v"},
		private: 1,
	}
	v, err := ctx.Marshal(p)
	require.NoError(t, err)
	defer v.Free()
	json, err := v.ToJSON(0)
	require.NoError(t, err)
	require.Equal(t, `{"name":"Ada","age":36,"tags":["math"],"home":{"city":"London","zip":"N1"},"extra":{"x":1},"meta":{"k":"v"}}`, json)

	var back person
	require.NoError(t, ctx.Unmarshal(v, &back))
	p.Ignored, p.private = "", 0
	require.Equal(t, p, back)
}

func TestUnmarshal(t *testing.T) {
	ctx := newTestContext(t)

	t.Run("Numbers", func(t *testing.T) {
		var i int8
		require.NoError(t, ctx.Unmarshal(eval(t, ctx, "-12"), &i))
		require.Equal(t, int8(-12), i)

		require.Error(t, ctx.Unmarshal(eval(t, ctx, "300"), &i))
		require.Error(t, ctx.Unmarshal(eval(t, ctx, "1.5"), &i))

		var u uint
		require.Error(t, ctx.Unmarshal(eval(t, ctx, "-1"), &u))

		var f float32
		require.NoError(t, ctx.Unmarshal(eval(t, ctx, "0.5"), &f))
		require.Equal(t, float32(0.5), f)

		require.Error(t, ctx.Unmarshal(eval(t, ctx, "'1'"), &f))
	})

	t.Run("Interface", func(t *testing.T) {
		var out interface{}
		require.NoError(t, ctx.Unmarshal(eval(t, ctx, "({n: 1, f: 1.5, s: 's', b: true, z: null, list: [1, 'two']})"), &out))
		require.Equal(t, map[string]interface{}{
			"n":    int64(1),
			"f":    1.5,
			"s":    "s",
			"b":    true,
			"z":    nil,
			"list": []interface{}{int64(1), "two"},
		}, out)

		require.Error(t, ctx.Unmarshal(eval(t, ctx, "(() => 1)"), &out))
	})

	t.Run("Pointers", func(t *testing.T) {
		var home *address
		require.NoError(t, ctx.Unmarshal(eval(t, ctx, "({city: 'Paris'})"), &home))
		require.Equal(t, &address{City: "Paris"}, home)

		require.NoError(t, ctx.Unmarshal(eval(t, ctx, "null"), &home))
		require.Nil(t, home)
	})

	t.Run("Collections", func(t *testing.T) {
		var fixed [2]int
		require.NoError(t, ctx.Unmarshal(eval(t, ctx, "[1, 2, 3]"), &fixed))
		require.Equal(t, [2]int{1, 2}, fixed)

		var byIndex map[int]string
		require.NoError(t, ctx.Unmarshal(eval(t, ctx, "({1: 'one', x: 'skipped'})"), &byIndex))
		require.Equal(t, map[int]string{1: "one"}, byIndex)

		var list []string
		require.Error(t, ctx.Unmarshal(eval(t, ctx, "({})"), &list))
	})

	t.Run("Unmarshaler", func(t *testing.T) {
		var version parsedVersion
		require.NoError(t, ctx.Unmarshal(eval(t, ctx, "'2.7'"), &version))
		require.Equal(t, parsedVersion{Major: 2, Minor: 7}, version)
		require.Error(t, ctx.Unmarshal(eval(t, ctx, "42"), &version))
	})

	t.Run("InvalidTarget", func(t *testing.T) {
		var s string
		require.Error(t, ctx.Unmarshal(eval(t, ctx, "'x'"), s))
		require.Error(t, ctx.Unmarshal(eval(t, ctx, "'x'"), nil))

		other := newTestContext(t)
		foreign := other.CreateString("x")
		defer foreign.Free()
		require.ErrorIs(t, ctx.Unmarshal(foreign, &s), ErrContextMismatch)
	})
}

func TestMarshalHostInstances(t *testing.T) {
	ctx := newTestContext(t)
	exposeClass(t, ctx, "Widget", ClassOf[*Widget]())
	exposeClass(t, ctx, "ChildWidget", ClassOf[*ChildWidget]())

	v := eval(t, ctx, "var w = new Widget('host'); var c = new ChildWidget(); w")

	var host *Widget
	require.NoError(t, ctx.Unmarshal(v, &host))
	require.Equal(t, "host", host.name)

	back, err := ctx.Marshal(host)
	require.NoError(t, err)
	defer back.Free()
	require.True(t, back.IsStrictlyEqual(v))

	// a child instance can be read as its parent type
	var base *Widget
	require.NoError(t, ctx.Unmarshal(eval(t, ctx, "c"), &base))
	require.Equal(t, "child", base.name)

	var other *OtherWidget
	require.Error(t, ctx.Unmarshal(v, &other))
	require.Error(t, ctx.Unmarshal(eval(t, ctx, "({})"), &host))

	_, err = ctx.Marshal(&Widget{})
	require.Error(t, err)

	list, err := ctx.Marshal([]*Widget{host})
	require.NoError(t, err)
	defer list.Free()
	require.True(t, eval(t, ctx, "w").IsStrictlyEqual(mustIndex(t, list, 0)))
}

func mustIndex(t *testing.T, v Value, i uint32) Value {
	t.Helper()
	elem, err := Object{v}.GetPropertyAtIndex(i)
	require.NoError(t, err)
	t.Cleanup(func() { elem.Free() })
	return elem
}
