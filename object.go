package hal

import "sort"

// Object is a Value known to be an object.
type Object struct {
	Value
}

// PropertyNameArray holds the enumerable own property names of an object.
type PropertyNameArray struct {
	names []string
}

// Count returns the number of names.
func (a PropertyNameArray) Count() int {
	return len(a.names)
}

// NameAt returns the name at index i.
func (a PropertyNameArray) NameAt(i int) String {
	return NewString(a.names[i])
}

// Names returns a copy of the names in enumeration order.
func (a PropertyNameArray) Names() []string {
	return append([]string(nil), a.names...)
}

func handlesFor(ctx *Context, values []Value) ([]Handle, error) {
	hs := make([]Handle, len(values))
	for i, v := range values {
		h, err := v.handle(ctx)
		if err != nil {
			return nil, err
		}
		hs[i] = h
	}
	return hs, nil
}

// HasProperty reports whether the object or its prototype chain has name.
func (o Object) HasProperty(name string) bool {
	if !o.IsValid() {
		return false
	}
	o.ctx.enter()
	defer o.ctx.leave()
	ok, err := o.ctx.engine.HasProperty(o.ref, name)
	return err == nil && ok
}

// GetProperty returns the value of name. The caller must Free the result.
func (o Object) GetProperty(name string) (Value, error) {
	if err := o.ctx.check(); err != nil {
		return Value{}, err
	}
	o.ctx.enter()
	defer o.ctx.leave()
	h, err := o.ctx.engine.GetProperty(o.ref, name)
	if err != nil {
		return Value{}, o.ctx.errorFrom(err)
	}
	return newValue(o.ctx, h), nil
}

// SetProperty sets name to v. Attributes other than PropertyNone define the
// property instead of assigning it.
func (o Object) SetProperty(name string, v Value, attributes ...PropertyAttribute) error {
	if err := o.ctx.check(); err != nil {
		return err
	}
	h, err := v.handle(o.ctx)
	if err != nil {
		return err
	}
	var attrs PropertyAttribute
	for _, a := range attributes {
		attrs |= a
	}
	o.ctx.enter()
	defer o.ctx.leave()
	return o.ctx.errorFrom(o.ctx.engine.SetProperty(o.ref, name, h, attrs))
}

// DeleteProperty removes name and reports whether it is gone.
func (o Object) DeleteProperty(name string) (bool, error) {
	if err := o.ctx.check(); err != nil {
		return false, err
	}
	o.ctx.enter()
	defer o.ctx.leave()
	ok, err := o.ctx.engine.DeleteProperty(o.ref, name)
	return ok, o.ctx.errorFrom(err)
}

// GetPropertyAtIndex returns the element at index. The caller must Free the
// result.
func (o Object) GetPropertyAtIndex(index uint32) (Value, error) {
	if err := o.ctx.check(); err != nil {
		return Value{}, err
	}
	o.ctx.enter()
	defer o.ctx.leave()
	h, err := o.ctx.engine.GetPropertyAtIndex(o.ref, index)
	if err != nil {
		return Value{}, o.ctx.errorFrom(err)
	}
	return newValue(o.ctx, h), nil
}

// SetPropertyAtIndex sets the element at index.
func (o Object) SetPropertyAtIndex(index uint32, v Value) error {
	if err := o.ctx.check(); err != nil {
		return err
	}
	h, err := v.handle(o.ctx)
	if err != nil {
		return err
	}
	o.ctx.enter()
	defer o.ctx.leave()
	return o.ctx.errorFrom(o.ctx.engine.SetPropertyAtIndex(o.ref, index, h))
}

// GetPropertyNames returns the enumerable own property names.
func (o Object) GetPropertyNames() (PropertyNameArray, error) {
	if err := o.ctx.check(); err != nil {
		return PropertyNameArray{}, err
	}
	o.ctx.enter()
	defer o.ctx.leave()
	names, err := o.ctx.engine.PropertyNames(o.ref)
	if err != nil {
		return PropertyNameArray{}, o.ctx.errorFrom(err)
	}
	return PropertyNameArray{names: names}, nil
}

// GetProperties returns every enumerable own property. The caller must Free
// each value.
func (o Object) GetProperties() (map[string]Value, error) {
	names, err := o.GetPropertyNames()
	if err != nil {
		return nil, err
	}
	props := make(map[string]Value, names.Count())
	for _, name := range names.names {
		v, err := o.GetProperty(name)
		if err != nil {
			for _, p := range props {
				p.Free()
			}
			return nil, err
		}
		props[name] = v
	}
	return props, nil
}

// sortedKeys returns the keys of props in a stable order.
func sortedKeys(props map[string]Value) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CallAsFunction calls the object with the given this. An invalid this calls
// with the global object.
func (o Object) CallAsFunction(args []Value, this Object) (Value, error) {
	if err := o.ctx.check(); err != nil {
		return Value{}, err
	}
	hs, err := handlesFor(o.ctx, args)
	if err != nil {
		return Value{}, err
	}
	var thisHandle Handle
	if this.IsValid() {
		if thisHandle, err = this.handle(o.ctx); err != nil {
			return Value{}, err
		}
	} else {
		thisHandle = o.ctx.engine.GlobalObject()
	}

	o.ctx.enter()
	defer o.ctx.leave()
	h, err := o.ctx.engine.CallAsFunction(o.ref, thisHandle, hs)
	if err != nil {
		return Value{}, o.ctx.errorFrom(err)
	}
	return newValue(o.ctx, h), nil
}

// Call calls the object as a function with the global object as this.
func (o Object) Call(args ...Value) (Value, error) {
	return o.CallAsFunction(args, Object{})
}

// CallAsConstructor calls the object with new.
func (o Object) CallAsConstructor(args ...Value) (Object, error) {
	if err := o.ctx.check(); err != nil {
		return Object{}, err
	}
	hs, err := handlesFor(o.ctx, args)
	if err != nil {
		return Object{}, err
	}
	o.ctx.enter()
	defer o.ctx.leave()
	h, err := o.ctx.engine.CallAsConstructor(o.ref, hs)
	if err != nil {
		return Object{}, o.ctx.errorFrom(err)
	}
	return Object{newValue(o.ctx, h)}, nil
}

// ToArray returns an Array sharing the object's handle.
func (o Object) ToArray() Array {
	return Array{Object{o.Clone()}}
}

// ToError returns an ErrorObject sharing the object's handle.
func (o Object) ToError() ErrorObject {
	return ErrorObject{Object{o.Clone()}}
}

// ToValue returns a Value sharing the object's handle.
func (o Object) ToValue() Value {
	return o.Clone()
}

// GetPrivate returns the host instance behind obj as T. It reports false
// when obj carries no host instance or the instance is not a T.
func GetPrivate[T any](obj Object) (T, bool) {
	var zero T
	if !obj.IsValid() {
		return zero, false
	}
	s, ok := obj.ctx.engine.GetPrivate(obj.ref).(*slot)
	if !ok {
		return zero, false
	}
	return castPrivate[T](s.instance)
}
