package hal

import (
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

var (
	// ErrContextClosed is returned by operations on a closed context.
	ErrContextClosed = errors.New("hal: context is closed")
	// ErrInvalidValue is returned by operations on a zero or freed value.
	ErrInvalidValue = errors.New("hal: invalid value")
)

// Context is an execution context with its own global object. A Context is
// not safe for concurrent use; exported callbacks run on the goroutine that
// called into it.
type Context struct {
	id     string
	group  *ContextGroup
	engine engine
	logger *zap.Logger
	stack  *nativeStack
	depth  int
	closed atomic.Bool

	globalClass *Class
	globalRoot  Handle
}

func newContext(group *ContextGroup, o options) *Context {
	id := uuid.NewString()
	ctx := &Context{
		id:          id,
		group:       group,
		logger:      o.logger.With(zap.String("context", id)),
		stack:       newNativeStack(o.nativeStackDepth),
		globalClass: o.globalClass,
	}
	ctx.engine = o.engine(ctx)

	if ctx.globalClass != nil {
		ctx.globalRoot = ctx.engine.AdoptGlobal(ctx.globalClass.def)
		retains.Protect(ctx, ctx.globalRoot)
	}
	ctx.stack.Clear()
	ctx.logger.Debug("created context")
	return ctx
}

// ID returns the unique ID of the context.
func (ctx *Context) ID() string {
	return ctx.id
}

// Group returns the group the context was created in.
func (ctx *Context) Group() *ContextGroup {
	return ctx.group
}

// Logger returns the context's logger.
func (ctx *Context) Logger() *zap.Logger {
	return ctx.logger
}

// check fails for a nil or closed context.
func (ctx *Context) check() error {
	if ctx == nil {
		return ErrInvalidValue
	}
	if ctx.closed.Load() {
		return ErrContextClosed
	}
	return nil
}

// enter marks a call from Go into the engine. The native stack only
// describes the current top-level call, so it is reset when one starts.
func (ctx *Context) enter() {
	ctx.depth++
	if ctx.depth == 1 {
		ctx.stack.Clear()
	}
}

func (ctx *Context) leave() {
	ctx.depth--
}

// NativeStack returns the native frames of the current or last failed
// call, most recent first.
func (ctx *Context) NativeStack() []string {
	return ctx.stack.Frames()
}

// =============================================================================
// VALUES
// =============================================================================

// CreateUndefined returns undefined.
func (ctx *Context) CreateUndefined() Value {
	return newValue(ctx, ctx.engine.Undefined())
}

// CreateNull returns null.
func (ctx *Context) CreateNull() Value {
	return newValue(ctx, ctx.engine.Null())
}

// CreateBoolean returns a boolean value.
func (ctx *Context) CreateBoolean(b bool) Value {
	return newValue(ctx, ctx.engine.Boolean(b))
}

// CreateNumber returns a number value.
func (ctx *Context) CreateNumber(n float64) Value {
	return newValue(ctx, ctx.engine.Number(n))
}

// CreateString returns a string value.
func (ctx *Context) CreateString(s string) Value {
	return newValue(ctx, ctx.engine.String(s))
}

// CreateObject returns an object of class, or a plain object when class is
// nil, with props assigned in name order. An object of a class can be
// called with new.
func (ctx *Context) CreateObject(class *Class, props map[string]Value) (Object, error) {
	if err := ctx.check(); err != nil {
		return Object{}, err
	}
	var def *classDefinition
	if class != nil {
		def = class.def
	}
	ctx.enter()
	h := ctx.engine.MakeObject(def, def != nil)
	ctx.leave()
	obj := Object{newValue(ctx, h)}

	for _, name := range sortedKeys(props) {
		if err := obj.SetProperty(name, props[name]); err != nil {
			obj.Free()
			return Object{}, err
		}
	}
	return obj, nil
}

// CreateArray returns an array holding values.
func (ctx *Context) CreateArray(values ...Value) (Array, error) {
	if err := ctx.check(); err != nil {
		return Array{}, err
	}
	hs, err := handlesFor(ctx, values)
	if err != nil {
		return Array{}, err
	}
	h, err := ctx.engine.MakeArray(hs)
	if err != nil {
		return Array{}, ctx.errorFrom(err)
	}
	return Array{Object{newValue(ctx, h)}}, nil
}

// CreateError returns a new Error called with args.
func (ctx *Context) CreateError(args ...Value) (ErrorObject, error) {
	if err := ctx.check(); err != nil {
		return ErrorObject{}, err
	}
	hs, err := handlesFor(ctx, args)
	if err != nil {
		return ErrorObject{}, err
	}
	h, err := ctx.engine.MakeError(hs)
	if err != nil {
		return ErrorObject{}, ctx.errorFrom(err)
	}
	return ErrorObject{Object{newValue(ctx, h)}}, nil
}

// CreateDate returns a new Date called with args.
func (ctx *Context) CreateDate(args ...Value) (Object, error) {
	if err := ctx.check(); err != nil {
		return Object{}, err
	}
	hs, err := handlesFor(ctx, args)
	if err != nil {
		return Object{}, err
	}
	h, err := ctx.engine.MakeDate(hs)
	if err != nil {
		return Object{}, ctx.errorFrom(err)
	}
	return Object{newValue(ctx, h)}, nil
}

// CreateValueFromJSON parses s with JSON.parse.
func (ctx *Context) CreateValueFromJSON(s string) (Value, error) {
	if err := ctx.check(); err != nil {
		return Value{}, err
	}
	h, err := ctx.engine.ParseJSON(s)
	if err != nil {
		return Value{}, ctx.errorFrom(err)
	}
	return newValue(ctx, h), nil
}

// GlobalObject returns the global object.
func (ctx *Context) GlobalObject() Object {
	return Object{newValue(ctx, ctx.engine.GlobalObject())}
}

// FindObject returns the object whose host instance is host.
func (ctx *Context) FindObject(host Exported) (Object, bool) {
	if ctx.check() != nil || host == nil {
		return Object{}, false
	}
	if obj, ok := host.exportObject().Object(); ok {
		if obj.ctx == ctx {
			return obj, true
		}
		obj.Free()
	}
	h := ctx.engine.FindPrivate(func(data any) bool {
		s, ok := data.(*slot)
		return ok && s.instance == any(host)
	})
	if h == nil {
		return Object{}, false
	}
	return Object{newValue(ctx, h)}, true
}

// =============================================================================
// EVALUATION
// =============================================================================

type evalOptions struct {
	sourceURL    string
	startingLine int
}

// EvalOption configures EvaluateScript and CheckScriptSyntax.
type EvalOption func(*evalOptions)

// EvalSourceURL sets the source name reported in errors and stacks.
func EvalSourceURL(url string) EvalOption {
	return func(o *evalOptions) {
		o.sourceURL = url
	}
}

// EvalStartingLine sets the line number of the first line of the script.
func EvalStartingLine(line int) EvalOption {
	return func(o *evalOptions) {
		o.startingLine = line
	}
}

func newEvalOptions(opts []EvalOption) evalOptions {
	o := evalOptions{startingLine: 1}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// EvaluateScript runs script and returns its completion value. A thrown
// value is returned as an *Error.
func (ctx *Context) EvaluateScript(script string, opts ...EvalOption) (Value, error) {
	if err := ctx.check(); err != nil {
		return Value{}, err
	}
	o := newEvalOptions(opts)

	ctx.enter()
	defer ctx.leave()
	h, err := ctx.engine.Evaluate(script, o.sourceURL, o.startingLine)
	if err != nil {
		return Value{}, ctx.errorFrom(err)
	}
	return newValue(ctx, h), nil
}

// CheckScriptSyntax reports a syntax error in script without running it.
func (ctx *Context) CheckScriptSyntax(script string, opts ...EvalOption) error {
	if err := ctx.check(); err != nil {
		return err
	}
	o := newEvalOptions(opts)
	return ctx.errorFrom(ctx.engine.CheckSyntax(script, o.sourceURL, o.startingLine))
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// GarbageCollect runs the garbage collector and finalizes collected objects.
func (ctx *Context) GarbageCollect() {
	if ctx.check() != nil {
		return
	}
	ctx.engine.GarbageCollect()
}

// Close finalizes every object of the context and releases its values.
// Values of the context must not be used afterwards.
func (ctx *Context) Close() error {
	if ctx == nil || ctx.closed.Load() {
		return nil
	}

	var result *multierror.Error
	dropped := 0
	for _, class := range exportedClasses() {
		dropped += class.cache.dropContext(ctx)
	}
	if ctx.globalRoot != nil {
		retains.Unprotect(ctx, ctx.globalRoot)
		ctx.globalRoot = nil
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result = multierror.Append(result, &unknownFailure{message: "error while closing context", recovered: r})
			}
		}()
		ctx.engine.Close()
	}()
	ctx.closed.Store(true)
	leaked := retains.dropContext(ctx)

	if ctx.group != nil {
		ctx.group.remove(ctx)
	}
	ctx.logger.Debug("closed context",
		zap.Int("cachedConstants", dropped),
		zap.Int("retainedHandles", leaked))

	if err := result.ErrorOrNil(); err != nil {
		ctx.logger.Warn("context closed with errors", zap.Error(err))
		return err
	}
	return nil
}
