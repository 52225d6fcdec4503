package hal

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// =============================================================================
// REFLECTION-BASED CLASS INITIALIZER
// =============================================================================

// ReflectOptions configures reflection-based class initialization
type ReflectOptions struct {
	// MethodPrefix filters methods by prefix (empty = all methods)
	MethodPrefix string

	// IgnoredMethods lists method names to skip
	IgnoredMethods []string

	// IgnoredFields lists field names to skip
	IgnoredFields []string

	// ReadOnlyFields lists field names exposed without a setter
	ReadOnlyFields []string
}

// ReflectOption configures ReflectOptions using functional options pattern
type ReflectOption func(*ReflectOptions)

// WithMethodPrefix filters methods by name prefix
func WithMethodPrefix(prefix string) ReflectOption {
	return func(opts *ReflectOptions) {
		opts.MethodPrefix = prefix
	}
}

// WithIgnoredMethods specifies method names to skip
func WithIgnoredMethods(methods ...string) ReflectOption {
	return func(opts *ReflectOptions) {
		opts.IgnoredMethods = append(opts.IgnoredMethods, methods...)
	}
}

// WithIgnoredFields specifies field names to skip
func WithIgnoredFields(fields ...string) ReflectOption {
	return func(opts *ReflectOptions) {
		opts.IgnoredFields = append(opts.IgnoredFields, fields...)
	}
}

// WithReadOnlyFields specifies fields exposed without a setter
func WithReadOnlyFields(fields ...string) ReflectOption {
	return func(opts *ReflectOptions) {
		opts.ReadOnlyFields = append(opts.ReadOnlyFields, fields...)
	}
}

// Reflect returns a class initializer that exposes the exported fields of
// the struct behind T as value properties and its exported methods as
// function properties. Field values and method arguments go through
// Marshal and Unmarshal.
//
// Example usage:
//
//	hal.Export[*Point]("Point", NewPoint, hal.Reflect[*Point]())
//
//	// Or with additional customization:
//	hal.Export[*Point]("Point", NewPoint, func(b *hal.ClassBuilder[*Point]) {
//	    hal.Reflect[*Point](hal.WithIgnoredFields("Secret"))(b)
//	    b.AddConstantProperty("ORIGIN", originGetter)
//	})
func Reflect[T Exported](options ...ReflectOption) func(*ClassBuilder[T]) {
	opts := &ReflectOptions{}
	for _, option := range options {
		option(opts)
	}

	return func(b *ClassBuilder[T]) {
		typ := reflect.TypeFor[T]()
		if typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
			panic(fmt.Sprintf("hal: %v must be a pointer to a struct", typ))
		}
		addReflectionProperties(b, typ.Elem(), opts)
		addReflectionMethods(b, typ, opts)
	}
}

// addReflectionProperties scans struct fields and adds them as properties
func addReflectionProperties[T Exported](b *ClassBuilder[T], typ reflect.Type, opts *ReflectOptions) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		if !field.IsExported() || field.Anonymous {
			continue
		}
		if slices.Contains(opts.IgnoredFields, field.Name) {
			continue
		}
		propName, ok := fieldName(field)
		if !ok {
			continue // Field marked with "-" tag
		}

		var setter SetterFunc[T]
		if !slices.Contains(opts.ReadOnlyFields, field.Name) {
			setter = createFieldSetter[T](field, i)
		}
		b.AddValueProperty(propName, createFieldGetter[T](field, i), setter, true)
	}
}

// addReflectionMethods scans the method set of T and adds function properties
func addReflectionMethods[T Exported](b *ClassBuilder[T], typ reflect.Type, opts *ReflectOptions) {
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)

		if opts.MethodPrefix != "" && !strings.HasPrefix(method.Name, opts.MethodPrefix) {
			continue
		}
		if slices.Contains(opts.IgnoredMethods, method.Name) || isSpecialMethod(method.Name) {
			continue
		}
		b.AddFunctionProperty(method.Name, createMethodWrapper[T](method))
	}
}

// structOf returns the struct behind a host instance
func structOf[T Exported](self T) (reflect.Value, error) {
	v := reflect.ValueOf(self)
	if !v.IsValid() || v.IsNil() {
		return reflect.Value{}, errors.New("instance data is nil")
	}
	return v.Elem(), nil
}

// createFieldGetter creates a getter for a struct field
func createFieldGetter[T Exported](field reflect.StructField, fieldIndex int) GetterFunc[T] {
	return func(self T) (Value, error) {
		obj, err := structOf(self)
		if err != nil {
			return Value{}, err
		}
		jsValue, err := self.exportObject().ctx.marshal(obj.Field(fieldIndex))
		if err != nil {
			return Value{}, fmt.Errorf("failed to marshal field %s: %w", field.Name, err)
		}
		return jsValue, nil
	}
}

// createFieldSetter creates a setter for a struct field
func createFieldSetter[T Exported](field reflect.StructField, fieldIndex int) SetterFunc[T] {
	return func(self T, value Value) (bool, error) {
		obj, err := structOf(self)
		if err != nil {
			return false, err
		}
		tempVar := reflect.New(field.Type)
		if err := value.ctx.unmarshal(value, tempVar.Elem()); err != nil {
			return false, fmt.Errorf("failed to unmarshal value for field %s: %w", field.Name, err)
		}
		obj.Field(fieldIndex).Set(tempVar.Elem())
		return true, nil
	}
}

var errorType = reflect.TypeFor[error]()

// createMethodWrapper creates a function property calling method on the host
// instance. A trailing error result is returned as the call's error.
func createMethodWrapper[T Exported](method reflect.Method) FunctionFunc[T] {
	return func(self T, args []Value, this Object) (Value, error) {
		if _, err := structOf(self); err != nil {
			return Value{}, err
		}
		ctx := this.ctx

		methodArgs, err := convertJSArgsToMethodArgs(ctx, method, args)
		if err != nil {
			return Value{}, fmt.Errorf("failed to prepare method arguments: %w", err)
		}
		results := reflect.ValueOf(self).Method(method.Index).Call(methodArgs)

		if n := len(results); n > 0 && method.Type.Out(n-1) == errorType {
			if err, _ := results[n-1].Interface().(error); err != nil {
				return Value{}, err
			}
			results = results[:n-1]
		}
		return convertMethodResults(ctx, results)
	}
}

// convertJSArgsToMethodArgs converts JavaScript arguments to Go values for a method call.
// Arguments past the fixed parameters of a variadic method are converted one
// by one to its element type.
func convertJSArgsToMethodArgs(ctx *Context, method reflect.Method, args []Value) ([]reflect.Value, error) {
	methodType := method.Type
	numArgs := methodType.NumIn() - 1 // skip the receiver
	variadic := methodType.IsVariadic()
	if variadic {
		numArgs--
	}

	if !variadic && len(args) > numArgs {
		return nil, fmt.Errorf("too many arguments: expected %d, got %d", numArgs, len(args))
	}

	reflectArgs := make([]reflect.Value, numArgs, max(numArgs, len(args)))
	for i := 0; i < numArgs; i++ {
		argType := methodType.In(i + 1)
		if i >= len(args) {
			reflectArgs[i] = reflect.Zero(argType)
			continue
		}
		argValue := reflect.New(argType).Elem()
		if err := ctx.unmarshal(args[i], argValue); err != nil {
			return nil, fmt.Errorf("failed to convert argument %d: %w", i, err)
		}
		reflectArgs[i] = argValue
	}
	if variadic {
		elemType := methodType.In(numArgs + 1).Elem()
		for i := numArgs; i < len(args); i++ {
			argValue := reflect.New(elemType).Elem()
			if err := ctx.unmarshal(args[i], argValue); err != nil {
				return nil, fmt.Errorf("failed to convert argument %d: %w", i, err)
			}
			reflectArgs = append(reflectArgs, argValue)
		}
	}
	return reflectArgs, nil
}

// convertMethodResults converts method return values to a JavaScript value
func convertMethodResults(ctx *Context, results []reflect.Value) (Value, error) {
	switch len(results) {
	case 0:
		return ctx.CreateUndefined(), nil
	case 1:
		return ctx.marshal(results[0])
	default:
		// Multiple return values become an array
		returnArray := make([]interface{}, len(results))
		for i, result := range results {
			returnArray[i] = result.Interface()
		}
		return ctx.Marshal(returnArray)
	}
}

// isSpecialMethod reports whether a method belongs to the export machinery or
// a standard interface rather than the class's own surface
func isSpecialMethod(name string) bool {
	switch name {
	case "String", "Error", "GoString", "Format",
		"Initialize", "PostInitialize", "PostCallAsConstructor",
		"Context", "Object", "Finalize",
		"MarshalJS", "UnmarshalJS":
		return true
	}
	return false
}
