package hal

import "reflect"

// slot is the private data stored on an exported object: the host instance
// and the class that created it.
type slot struct {
	instance any
	class    *Class
}

// castPrivate returns instance as T. Besides a direct type assertion it
// follows embedded fields, so the host of a derived class can be read back as
// any of its ancestors.
func castPrivate[T any](instance any) (T, bool) {
	if t, ok := instance.(T); ok {
		return t, true
	}
	var zero T
	if instance == nil {
		return zero, false
	}
	want := reflect.TypeFor[T]()
	if v, ok := findEmbedded(reflect.ValueOf(instance), want, 0); ok {
		return v.Interface().(T), true
	}
	return zero, false
}

const maxEmbedDepth = 8

func findEmbedded(v reflect.Value, want reflect.Type, depth int) (reflect.Value, bool) {
	if depth > maxEmbedDepth {
		return reflect.Value{}, false
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous || !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			continue
		}
		if fv.Type().AssignableTo(want) {
			return fv, true
		}
		if fv.CanAddr() && fv.Addr().Type().AssignableTo(want) {
			return fv.Addr(), true
		}
		if found, ok := findEmbedded(fv, want, depth+1); ok {
			return found, true
		}
	}
	return reflect.Value{}, false
}
