package hal

// Exported is implemented by host types exposed to JavaScript. Embed
// ExportObject to get default hooks and override the ones you need.
type Exported interface {
	// Initialize runs right after the host instance is attached to obj.
	Initialize(obj Object)
	// PostInitialize runs after Initialize.
	PostInitialize(obj Object)
	// PostCallAsConstructor runs on the new instance when script calls the
	// class with new. An error aborts the construction.
	PostCallAsConstructor(ctx *Context, args []Value) error

	exportObject() *ExportObject
}

// ClassFinalizer is implemented by host types that need to release
// resources when their object is finalized.
type ClassFinalizer interface {
	Finalize()
}

// ExportObject links a host instance to the object it backs.
type ExportObject struct {
	ctx  *Context
	self func() Handle
}

func (x *ExportObject) exportObject() *ExportObject {
	return x
}

func (x *ExportObject) bind(ctx *Context, self func() Handle) {
	x.ctx = ctx
	x.self = self
}

func (x *ExportObject) unbind() {
	x.self = nil
}

// Initialize does nothing.
func (x *ExportObject) Initialize(Object) {}

// PostInitialize does nothing.
func (x *ExportObject) PostInitialize(Object) {}

// PostCallAsConstructor does nothing.
func (x *ExportObject) PostCallAsConstructor(*Context, []Value) error {
	return nil
}

// Context returns the context the instance lives in.
func (x *ExportObject) Context() *Context {
	return x.ctx
}

// Object returns the object backed by the instance. It reports false once
// the object has been finalized.
func (x *ExportObject) Object() (Object, bool) {
	if x.self == nil || x.ctx == nil || x.ctx.closed.Load() {
		return Object{}, false
	}
	h := x.self()
	if h == nil {
		return Object{}, false
	}
	return Object{newValue(x.ctx, h)}, true
}
