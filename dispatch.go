package hal

import (
	"fmt"

	"go.uber.org/zap"
)

// =============================================================================
// TRAMPOLINE SUPPORT
// =============================================================================

// unknownFailure reports a panic recovered from host code.
type unknownFailure struct {
	message   string
	recovered any
}

func (u *unknownFailure) Error() string {
	return u.message
}

// dispatch runs fn as the native frame named frame. A failure, returned or
// panicked, is stored in exception as an engine error and the frame is left
// on the native stack. On success the frame is removed together with any
// frames left above it by failed nested calls. It reports whether fn
// succeeded.
func (ctx *Context) dispatch(frame, failure string, exception *Handle, fn func() error) (ok bool) {
	mark := ctx.stack.Push(frame)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				ctx.logger.Error("recovered panic in exported callback",
					zap.String("frame", frame),
					zap.Any("panic", r))
				err = &unknownFailure{message: failure, recovered: r}
			}
		}()
		return fn()
	}()
	if err != nil {
		if exception != nil {
			*exception = ctx.errorHandle(err)
		}
		return false
	}
	ctx.stack.Truncate(mark)
	return true
}

// wrap gives each argument handle a facade for the duration of a callback.
func (ctx *Context) wrap(args []Handle) []Value {
	values := make([]Value, len(args))
	for i, h := range args {
		values[i] = newValue(ctx, h)
	}
	return values
}

func freeValues(values []Value) {
	for i := range values {
		values[i].Free()
	}
}

// release hands v back to the engine. The returned handle stays reachable
// through the caller, so the facade reference can be dropped.
func (ctx *Context) release(v Value) (Handle, error) {
	if !v.IsValid() {
		return ctx.engine.Undefined(), nil
	}
	h, err := v.handle(ctx)
	v.Free()
	return h, err
}

func privateOf[T Exported](ctx *Context, object Handle) (T, bool) {
	var zero T
	if object == nil {
		return zero, false
	}
	s, ok := ctx.engine.GetPrivate(object).(*slot)
	if !ok {
		return zero, false
	}
	return castPrivate[T](s.instance)
}

func (b *ClassBuilder[T]) self(ctx *Context, object Handle) (T, error) {
	self, ok := privateOf[T](ctx, object)
	if !ok {
		return self, logicalErrorf(b.class.name, "object has no host instance")
	}
	return self, nil
}

// =============================================================================
// NAMED PROPERTIES
// =============================================================================

func (b *ClassBuilder[T]) getNamedValue(ctx *Context, object Handle, name string, exception *Handle) Handle {
	constant := b.constants[name]
	if constant {
		if h, ok := b.class.cache.Get(ctx, name); ok {
			return h
		}
	}

	var result Handle
	ok := ctx.dispatch(b.class.frame(name), "error while getting "+name, exception, func() error {
		getter, ok := b.getters[name]
		if !ok {
			return logicalErrorf(b.class.name, "no getter registered for %s", name)
		}
		self, err := b.self(ctx, object)
		if err != nil {
			return err
		}
		v, err := getter(self)
		if err != nil {
			v.Free()
			return err
		}
		result, err = ctx.release(v)
		return err
	})
	if ok && constant {
		b.class.cache.Add(ctx, name, result)
	}
	return result
}

func (b *ClassBuilder[T]) setNamedValue(ctx *Context, object Handle, name string, value Handle, exception *Handle) bool {
	var result bool
	ctx.dispatch(b.class.frame(name), "error while setting "+name, exception, func() error {
		setter, ok := b.setters[name]
		if !ok {
			return logicalErrorf(b.class.name, "no setter registered for %s", name)
		}
		self, err := b.self(ctx, object)
		if err != nil {
			return err
		}
		v := newValue(ctx, value)
		defer v.Free()
		result, err = setter(self, v)
		return err
	})
	return result
}

// callNamedFunction returns the trampoline for the function property name.
// A receiver without a host instance falls back to the instance behind the
// global object, and then to the zero T.
func (b *ClassBuilder[T]) callNamedFunction(name string) callAsFunctionCallback {
	return func(ctx *Context, this Handle, args []Handle, exception *Handle) Handle {
		var result Handle
		ctx.dispatch(b.class.frame(name), "error while calling "+name, exception, func() error {
			fn, ok := b.calls[name]
			if !ok {
				return logicalErrorf(b.class.name, "no function registered for %s", name)
			}
			self, ok := privateOf[T](ctx, this)
			if !ok {
				self, _ = privateOf[T](ctx, ctx.engine.GlobalObject())
			}

			thisObj := Object{newValue(ctx, this)}
			defer thisObj.Free()
			values := ctx.wrap(args)
			defer freeValues(values)

			v, err := fn(self, values, thisObj)
			if err != nil {
				v.Free()
				return err
			}
			result, err = ctx.release(v)
			return err
		})
		return result
	}
}

// =============================================================================
// PROPERTY TRAPS
// =============================================================================

func (b *ClassBuilder[T]) hasPropertyTrap(ctx *Context, object Handle, name string) bool {
	self, err := b.self(ctx, object)
	if err != nil {
		ctx.logger.Error("has-property dispatch failed",
			zap.String("class", b.class.name),
			zap.String("property", name),
			zap.Error(err))
		return false
	}

	var result bool
	ctx.dispatch(b.class.frame(name), "error while checking "+name, nil, func() error {
		result = b.hasProperty(self, NewString(name))
		return nil
	})
	return result
}

func (b *ClassBuilder[T]) getPropertyTrap(ctx *Context, object Handle, name string, exception *Handle) Handle {
	var result Handle
	ctx.dispatch(b.class.frame(name), "error while getting "+name, exception, func() error {
		self, err := b.self(ctx, object)
		if err != nil {
			return err
		}
		v, err := b.getProperty(self, NewString(name))
		if err != nil {
			v.Free()
			return err
		}
		if !v.IsValid() {
			return nil
		}
		result, err = ctx.release(v)
		return err
	})
	return result
}

func (b *ClassBuilder[T]) setPropertyTrap(ctx *Context, object Handle, name string, value Handle, exception *Handle) bool {
	var result bool
	ctx.dispatch(b.class.frame(name), "error while setting "+name, exception, func() error {
		self, err := b.self(ctx, object)
		if err != nil {
			return err
		}
		v := newValue(ctx, value)
		defer v.Free()
		result, err = b.setProperty(self, NewString(name), v)
		return err
	})
	return result
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// initialize attaches a new host instance to object and runs its hooks.
func (b *ClassBuilder[T]) initialize(ctx *Context, object Handle) {
	defer func() {
		if r := recover(); r != nil {
			ctx.logger.Error("recovered panic while initializing exported object",
				zap.String("class", b.class.name),
				zap.Any("panic", r))
		}
	}()

	host := b.newFn(ctx)
	if !ctx.engine.SetPrivate(object, &slot{instance: host, class: b.class}) {
		panic(logicalErrorf(b.class.name, "cannot attach host instance"))
	}
	host.exportObject().bind(ctx, ctx.engine.WeakRef(object))

	obj := Object{newValue(ctx, object)}
	defer obj.Free()
	host.Initialize(obj)
	host.PostInitialize(obj)
}

func (b *ClassBuilder[T]) finalize(ctx *Context, private any) {
	s, ok := private.(*slot)
	if !ok {
		return
	}
	host, ok := s.instance.(Exported)
	if !ok {
		return
	}
	host.exportObject().unbind()
	if f, ok := host.(ClassFinalizer); ok {
		defer func() {
			if r := recover(); r != nil {
				ctx.logger.Error("recovered panic while finalizing exported object",
					zap.String("class", s.class.name),
					zap.Any("panic", r))
			}
		}()
		f.Finalize()
	}
}

// callAsConstructor creates a new object of the class behind constructor
// and hands the arguments to its host instance.
func (b *ClassBuilder[T]) callAsConstructor(ctx *Context, constructor Handle, args []Handle, exception *Handle) Handle {
	var result Handle
	name := b.class.name
	ctx.dispatch(b.class.frame("constructor"), fmt.Sprintf("error while calling %s constructor", name), exception, func() error {
		def := ctx.engine.ClassOf(constructor)
		if def == nil {
			def = b.class.def
		}
		obj := ctx.engine.MakeObject(def, false)
		self, err := b.self(ctx, obj)
		if err != nil {
			return err
		}
		values := ctx.wrap(args)
		defer freeValues(values)
		if err := self.PostCallAsConstructor(ctx, values); err != nil {
			return err
		}
		result = obj
		return nil
	})
	return result
}
