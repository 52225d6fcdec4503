package hal

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Marshaler is implemented by Go types that produce their own JavaScript
// representation.
type Marshaler interface {
	MarshalJS(ctx *Context) (Value, error)
}

// Unmarshaler is implemented by Go types that decode themselves from a
// JavaScript value.
type Unmarshaler interface {
	UnmarshalJS(ctx *Context, val Value) error
}

var exportedType = reflect.TypeFor[Exported]()

// Marshal converts a Go value into a JavaScript value owned by ctx.
//
// Booleans, numbers and strings map to their primitives. Slices and arrays
// become Arrays, maps and structs become plain objects, and nil pointers,
// slices and maps become null. Struct fields are named by their "js" tag,
// then their "json" tag, then the field name; "-" skips the field.
// A Marshaler encodes itself, and an exported host instance marshals to the
// object backing it in ctx.
func (ctx *Context) Marshal(v interface{}) (Value, error) {
	if err := ctx.check(); err != nil {
		return Value{}, err
	}
	return ctx.marshal(reflect.ValueOf(v))
}

// Unmarshal decodes jsVal into the Go value v points to. v must be a
// non-nil pointer and jsVal must belong to ctx.
//
// Decoding into an interface{} yields nil, bool, string, int64 for numbers
// with no fractional part, float64 otherwise, []interface{} for Arrays and
// map[string]interface{} for other objects. A pointer to an exported host
// type receives the host instance backing the object; an Unmarshaler
// decodes itself.
func (ctx *Context) Unmarshal(jsVal Value, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("unmarshal into %T: target must be a non-nil pointer", v)
	}
	if jsVal.ctx != ctx {
		return ErrContextMismatch
	}
	return ctx.unmarshal(jsVal, rv.Elem())
}

func fieldName(field reflect.StructField) (string, bool) {
	name := field.Name
	tag := field.Tag.Get("js")
	if tag == "" {
		tag = field.Tag.Get("json")
	}
	if tag == "-" {
		return "", false
	}
	if tag != "" {
		if idx := strings.Index(tag, ","); idx != -1 {
			tag = tag[:idx]
		}
		if tag != "" {
			name = tag
		}
	}
	return name, true
}

func (ctx *Context) marshal(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return ctx.CreateNull(), nil
	}
	if rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}

	if rv.CanInterface() {
		if marshaler, ok := rv.Interface().(Marshaler); ok {
			return marshaler.MarshalJS(ctx)
		}
		if rv.Type().Implements(exportedType) && !(rv.Kind() == reflect.Pointer && rv.IsNil()) {
			if obj, ok := ctx.FindObject(rv.Interface().(Exported)); ok {
				return obj.Value, nil
			}
			return Value{}, fmt.Errorf("host instance of %v has no object in this context", rv.Type())
		}
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ctx.CreateNull(), nil
		}
		return ctx.marshal(rv.Elem())

	case reflect.Bool:
		return ctx.CreateBoolean(rv.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ctx.CreateNumber(float64(rv.Int())), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return ctx.CreateNumber(float64(rv.Uint())), nil

	case reflect.Float32, reflect.Float64:
		return ctx.CreateNumber(rv.Float()), nil

	case reflect.String:
		return ctx.CreateString(rv.String()), nil

	case reflect.Slice:
		if rv.IsNil() {
			return ctx.CreateNull(), nil
		}
		return ctx.marshalList(rv)

	case reflect.Array:
		return ctx.marshalList(rv)

	case reflect.Map:
		if rv.IsNil() {
			return ctx.CreateNull(), nil
		}
		return ctx.marshalMap(rv)

	case reflect.Struct:
		return ctx.marshalStruct(rv)

	default:
		return Value{}, fmt.Errorf("unsupported type: %v", rv.Type())
	}
}

// marshalList marshals a Go slice or array to a JavaScript Array
func (ctx *Context) marshalList(rv reflect.Value) (Value, error) {
	items := make([]Value, 0, rv.Len())
	defer freeValues(items)
	for i := 0; i < rv.Len(); i++ {
		elem, err := ctx.marshal(rv.Index(i))
		if err != nil {
			return Value{}, fmt.Errorf("array element %d: %w", i, err)
		}
		items = append(items, elem)
	}
	arr, err := ctx.CreateArray(items...)
	if err != nil {
		return Value{}, err
	}
	return arr.Value, nil
}

// marshalMap keys the object by the formatted map keys.
func (ctx *Context) marshalMap(rv reflect.Value) (Value, error) {
	props := make(map[string]Value, rv.Len())
	defer func() {
		for _, p := range props {
			p.Free()
		}
	}()
	for _, key := range rv.MapKeys() {
		val, err := ctx.marshal(rv.MapIndex(key))
		if err != nil {
			return Value{}, err
		}
		props[fmt.Sprintf("%v", key.Interface())] = val
	}
	obj, err := ctx.CreateObject(nil, props)
	if err != nil {
		return Value{}, err
	}
	return obj.Value, nil
}

// marshalStruct marshals Go struct to JavaScript Object, keeping field order
func (ctx *Context) marshalStruct(rv reflect.Value) (Value, error) {
	obj, err := ctx.CreateObject(nil, nil)
	if err != nil {
		return Value{}, err
	}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, ok := fieldName(field)
		if !ok {
			continue
		}
		val, err := ctx.marshal(rv.Field(i))
		if err != nil {
			obj.Free()
			return Value{}, fmt.Errorf("struct field %s: %w", field.Name, err)
		}
		err = obj.SetProperty(name, val)
		val.Free()
		if err != nil {
			obj.Free()
			return Value{}, err
		}
	}
	return obj.Value, nil
}

func (ctx *Context) unmarshal(jsVal Value, rv reflect.Value) error {
	if rv.CanAddr() {
		if unmarshaler, ok := rv.Addr().Interface().(Unmarshaler); ok {
			return unmarshaler.UnmarshalJS(ctx, jsVal)
		}
	}

	if rv.Type().Implements(exportedType) && rv.Kind() != reflect.Interface {
		s, ok := ctx.engine.GetPrivate(jsVal.ref).(*slot)
		if !ok {
			return fmt.Errorf("cannot unmarshal JavaScript %s into %v", jsVal.String(), rv.Type())
		}
		host := reflect.ValueOf(s.instance)
		if !host.Type().AssignableTo(rv.Type()) {
			if found, ok := findEmbedded(host, rv.Type(), 0); ok {
				host = found
			} else {
				return fmt.Errorf("host instance of %s is not a %v", s.class.name, rv.Type())
			}
		}
		rv.Set(host)
		return nil
	}

	if rv.Kind() == reflect.Pointer {
		if jsVal.IsNull() || jsVal.IsUndefined() {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return ctx.unmarshal(jsVal, rv.Elem())
	}

	switch rv.Kind() {
	case reflect.Bool:
		if !jsVal.IsBoolean() {
			return fmt.Errorf("cannot unmarshal JavaScript %s into Go bool", jsVal.String())
		}
		rv.SetBool(jsVal.ToBool())

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := ctx.number(jsVal, rv.Type())
		if err != nil {
			return err
		}
		if n != math.Trunc(n) || rv.OverflowInt(int64(n)) {
			return fmt.Errorf("number %v out of range for Go %v", n, rv.Type())
		}
		rv.SetInt(int64(n))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := ctx.number(jsVal, rv.Type())
		if err != nil {
			return err
		}
		if n < 0 || n != math.Trunc(n) || rv.OverflowUint(uint64(n)) {
			return fmt.Errorf("number %v out of range for Go %v", n, rv.Type())
		}
		rv.SetUint(uint64(n))

	case reflect.Float32, reflect.Float64:
		n, err := ctx.number(jsVal, rv.Type())
		if err != nil {
			return err
		}
		rv.SetFloat(n)

	case reflect.String:
		if !jsVal.IsString() {
			return fmt.Errorf("cannot unmarshal JavaScript %s into Go string", jsVal.String())
		}
		s, err := jsVal.ToString()
		if err != nil {
			return err
		}
		rv.SetString(s)

	case reflect.Slice, reflect.Array:
		return ctx.unmarshalList(jsVal, rv)

	case reflect.Map:
		return ctx.unmarshalMap(jsVal, rv)

	case reflect.Struct:
		return ctx.unmarshalStruct(jsVal, rv)

	case reflect.Interface:
		val, err := ctx.unmarshalInterface(jsVal)
		if err != nil {
			return err
		}
		if val == nil {
			rv.Set(reflect.Zero(rv.Type()))
		} else {
			rv.Set(reflect.ValueOf(val))
		}

	default:
		return fmt.Errorf("unsupported type: %v", rv.Type())
	}
	return nil
}

func (ctx *Context) number(jsVal Value, typ reflect.Type) (float64, error) {
	if !jsVal.IsNumber() {
		return 0, fmt.Errorf("cannot unmarshal JavaScript %s into Go %v", jsVal.String(), typ)
	}
	return jsVal.ToNumber()
}

func (ctx *Context) elements(jsVal Value) ([]Value, error) {
	if !jsVal.IsArray() {
		return nil, fmt.Errorf("expected array, got JavaScript %s", jsVal.String())
	}
	return Array{Object{jsVal}}.Values()
}

// unmarshalList unmarshals JavaScript Array to Go slice or array
func (ctx *Context) unmarshalList(jsVal Value, rv reflect.Value) error {
	elems, err := ctx.elements(jsVal)
	if err != nil {
		return err
	}
	defer freeValues(elems)

	target := rv
	if rv.Kind() == reflect.Slice {
		target = reflect.MakeSlice(rv.Type(), len(elems), len(elems))
	}
	for i := 0; i < len(elems) && i < target.Len(); i++ {
		if err := ctx.unmarshal(elems[i], target.Index(i)); err != nil {
			return fmt.Errorf("array element %d: %w", i, err)
		}
	}
	if rv.Kind() == reflect.Slice {
		rv.Set(target)
	}
	return nil
}

func (ctx *Context) unmarshalMap(jsVal Value, rv reflect.Value) error {
	if !jsVal.IsObject() {
		return fmt.Errorf("expected object, got JavaScript %s", jsVal.String())
	}
	props, err := Object{jsVal}.GetProperties()
	if err != nil {
		return err
	}
	defer func() {
		for _, p := range props {
			p.Free()
		}
	}()

	if rv.IsNil() {
		rv.Set(reflect.MakeMap(rv.Type()))
	}
	keyType := rv.Type().Key()
	valueType := rv.Type().Elem()

	for prop, val := range props {
		keyVal := reflect.New(keyType).Elem()
		switch keyType.Kind() {
		case reflect.String:
			keyVal.SetString(prop)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			intVal, err := strconv.ParseInt(prop, 10, 64)
			if err != nil {
				continue
			}
			keyVal.SetInt(intVal)
		default:
			return fmt.Errorf("unsupported map key type: %v", keyType)
		}

		valueVal := reflect.New(valueType).Elem()
		if err := ctx.unmarshal(val, valueVal); err != nil {
			return fmt.Errorf("map value for key %s: %w", prop, err)
		}
		rv.SetMapIndex(keyVal, valueVal)
	}
	return nil
}

// unmarshalStruct fills the fields present on the object and leaves the rest.
func (ctx *Context) unmarshalStruct(jsVal Value, rv reflect.Value) error {
	if !jsVal.IsObject() {
		return fmt.Errorf("expected object, got JavaScript %s", jsVal.String())
	}
	obj := Object{jsVal}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, ok := fieldName(field)
		if !ok || !obj.HasProperty(name) {
			continue
		}
		prop, err := obj.GetProperty(name)
		if err != nil {
			return err
		}
		err = ctx.unmarshal(prop, rv.Field(i))
		prop.Free()
		if err != nil {
			return fmt.Errorf("struct field %s: %w", field.Name, err)
		}
	}
	return nil
}

func (ctx *Context) unmarshalInterface(jsVal Value) (interface{}, error) {
	switch {
	case jsVal.IsFunction() || jsVal.IsSymbol():
		return nil, fmt.Errorf("unsupported JavaScript type %s", jsVal.Type())
	case jsVal.IsNull() || jsVal.IsUndefined():
		return nil, nil
	case jsVal.IsBoolean():
		return jsVal.ToBool(), nil
	case jsVal.IsString():
		return jsVal.ToString()
	case jsVal.IsNumber():
		f, err := jsVal.ToNumber()
		if err != nil {
			return nil, err
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case jsVal.IsArray():
		elems, err := ctx.elements(jsVal)
		if err != nil {
			return nil, err
		}
		defer freeValues(elems)
		slice := make([]interface{}, len(elems))
		for i, elem := range elems {
			if slice[i], err = ctx.unmarshalInterface(elem); err != nil {
				return nil, err
			}
		}
		return slice, nil
	case jsVal.IsObject():
		props, err := Object{jsVal}.GetProperties()
		if err != nil {
			return nil, err
		}
		defer func() {
			for _, p := range props {
				p.Free()
			}
		}()
		result := make(map[string]interface{}, len(props))
		for prop, val := range props {
			if result[prop], err = ctx.unmarshalInterface(val); err != nil {
				return nil, err
			}
		}
		return result, nil
	}
	return nil, fmt.Errorf("unhandled JavaScript type %s", jsVal.Type())
}
