package hal

import (
	"errors"
	"math"
)

// Value is a reference to a JavaScript value owned by a Context.
//
// Every Value returned by this package holds one reference in the retain
// table and must be released with Free. Copying a Value does not add a
// reference; use Clone for a second owner.
type Value struct {
	ctx *Context
	ref Handle
}

// ErrContextMismatch is returned when values of different contexts are mixed.
var ErrContextMismatch = errors.New("hal: value belongs to another context")

func newValue(ctx *Context, h Handle) Value {
	retains.Protect(ctx, h)
	return Value{ctx: ctx, ref: h}
}

// Context returns the context of the value.
func (v Value) Context() *Context {
	return v.ctx
}

// Free releases the value's reference. It is safe to call more than once.
func (v *Value) Free() {
	if v.ref == nil {
		return
	}
	retains.Unprotect(v.ctx, v.ref)
	v.ref = nil
}

// Clone returns a new reference to the same value.
func (v Value) Clone() Value {
	return newValue(v.ctx, v.ref)
}

// Assign makes v refer to other's value. The new value is protected before
// the old one is released, so assigning a value to itself is safe.
func (v *Value) Assign(other Value) {
	retains.Protect(other.ctx, other.ref)
	old := *v
	v.ctx, v.ref = other.ctx, other.ref
	old.Free()
}

// IsValid reports whether v still holds a reference.
func (v Value) IsValid() bool {
	return v.ctx != nil && v.ref != nil
}

func (v Value) handle(ctx *Context) (Handle, error) {
	if v.ctx != ctx {
		return nil, ErrContextMismatch
	}
	return v.ref, nil
}

// Type returns the JavaScript type of the value.
func (v Value) Type() ValueType {
	if !v.IsValid() {
		return TypeUndefined
	}
	return v.ctx.engine.TypeOf(v.ref)
}

func (v Value) IsUndefined() bool { return v.Type() == TypeUndefined }
func (v Value) IsNull() bool      { return v.Type() == TypeNull }
func (v Value) IsBoolean() bool   { return v.Type() == TypeBoolean }
func (v Value) IsNumber() bool    { return v.Type() == TypeNumber }
func (v Value) IsString() bool    { return v.Type() == TypeString }
func (v Value) IsObject() bool    { return v.Type() == TypeObject }
func (v Value) IsSymbol() bool    { return v.Type() == TypeSymbol }

// IsArray reports whether the value is an Array.
func (v Value) IsArray() bool {
	return v.IsValid() && v.ctx.engine.IsArray(v.ref)
}

// IsDate reports whether the value is a Date.
func (v Value) IsDate() bool {
	return v.IsValid() && v.ctx.engine.IsDate(v.ref)
}

// IsFunction reports whether the value can be called.
func (v Value) IsFunction() bool {
	return v.IsValid() && v.ctx.engine.IsFunction(v.ref)
}

// IsConstructor reports whether the value can be used with new.
func (v Value) IsConstructor() bool {
	return v.IsValid() && v.ctx.engine.IsConstructor(v.ref)
}

// IsError reports whether the value is an instance of Error.
func (v Value) IsError() bool {
	if !v.IsObject() {
		return false
	}
	e := v.ctx.engine
	ctor, err := e.GetProperty(e.GlobalObject(), "Error")
	if err != nil {
		return false
	}
	ok, err := e.IsInstanceOf(v.ref, ctor)
	return err == nil && ok
}

// IsInstanceOfConstructor reports whether constructor.prototype is on the
// value's prototype chain.
func (v Value) IsInstanceOfConstructor(constructor Object) (bool, error) {
	h, err := constructor.handle(v.ctx)
	if err != nil {
		return false, err
	}
	ok, err := v.ctx.engine.IsInstanceOf(v.ref, h)
	return ok, v.ctx.errorFrom(err)
}

// ToString converts the value to a string as String(value) would.
func (v Value) ToString() (string, error) {
	if !v.IsValid() {
		return "undefined", nil
	}
	v.ctx.enter()
	defer v.ctx.leave()
	s, err := v.ctx.engine.ToString(v.ref)
	return s, v.ctx.errorFrom(err)
}

// String returns the string form of the value, or "" when the conversion
// throws.
func (v Value) String() string {
	s, err := v.ToString()
	if err != nil {
		return ""
	}
	return s
}

// ToNumber converts the value to a number as Number(value) would.
func (v Value) ToNumber() (float64, error) {
	if !v.IsValid() {
		return math.NaN(), nil
	}
	v.ctx.enter()
	defer v.ctx.leave()
	n, err := v.ctx.engine.ToNumber(v.ref)
	return n, v.ctx.errorFrom(err)
}

// ToInt32 converts the value to a number and then to a signed 32-bit
// integer with JavaScript's wrapping rules.
func (v Value) ToInt32() (int32, error) {
	n, err := v.ToNumber()
	if err != nil {
		return 0, err
	}
	return toInt32(n), nil
}

// ToUint32 converts the value to a number and then to an unsigned 32-bit
// integer with JavaScript's wrapping rules.
func (v Value) ToUint32() (uint32, error) {
	n, err := v.ToNumber()
	if err != nil {
		return 0, err
	}
	return toUint32(n), nil
}

// ToBool converts the value to a boolean as Boolean(value) would.
func (v Value) ToBool() bool {
	return v.IsValid() && v.ctx.engine.ToBoolean(v.ref)
}

// ToObject converts the value to an object. Undefined and null throw.
func (v Value) ToObject() (Object, error) {
	if !v.IsValid() {
		return Object{}, ErrInvalidValue
	}
	h, err := v.ctx.engine.ToObject(v.ref)
	if err != nil {
		return Object{}, v.ctx.errorFrom(err)
	}
	return Object{newValue(v.ctx, h)}, nil
}

// ToJSON serializes the value with JSON.stringify. indent is the number of
// spaces per level; zero produces compact output.
func (v Value) ToJSON(indent int) (string, error) {
	if !v.IsValid() {
		return "", nil
	}
	v.ctx.enter()
	defer v.ctx.leave()
	s, err := v.ctx.engine.ToJSON(v.ref, indent)
	return s, v.ctx.errorFrom(err)
}

// IsEqual compares with ==, which may run script.
func (v Value) IsEqual(other Value) (bool, error) {
	h, err := other.handle(v.ctx)
	if err != nil {
		return false, err
	}
	v.ctx.enter()
	defer v.ctx.leave()
	ok, err := v.ctx.engine.LooseEquals(v.ref, h)
	return ok, v.ctx.errorFrom(err)
}

// IsStrictlyEqual compares with ===.
func (v Value) IsStrictlyEqual(other Value) bool {
	h, err := other.handle(v.ctx)
	if err != nil {
		return false
	}
	return v.ctx.engine.StrictEquals(v.ref, h)
}

func toInt32(n float64) int32 {
	return int32(toUint32(n))
}

func toUint32(n float64) uint32 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return uint32(int64(math.Mod(math.Trunc(n), 1<<32)))
}
