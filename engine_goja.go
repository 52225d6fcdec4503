package hal

import (
	"errors"
	"math/big"
	"runtime"
	"strconv"
	"strings"
	"weak"

	"github.com/dop251/goja"
)

// objectEntry is the engine-side record of an object created from a class.
type objectEntry struct {
	def       *classDefinition
	target    *goja.Object
	private   any
	functions map[string]*goja.Object
}

type primitiveKey struct {
	kind ValueType
	repr string
}

type namedProperty struct {
	name       string
	enumerable bool
}

type accessorPair struct {
	getter, setter goja.Value
}

// gojaEngine implements engine on top of a goja.Runtime. Class objects are
// proxies whose traps dispatch into the class definition chain.
type gojaEngine struct {
	ctx        *Context
	rt         *goja.Runtime
	protected  map[any]goja.Value
	objects    map[weak.Pointer[goja.Object]]*objectEntry
	layouts    map[*classDefinition][]namedProperty
	accessors  map[string]accessorPair
	finalizers *loop
	closed     bool

	reflectHas    goja.Callable
	reflectDelete goja.Callable
	jsonParse     goja.Callable
	jsonStringify goja.Callable
}

func newGojaEngine(ctx *Context) engine {
	rt := goja.New()
	e := &gojaEngine{
		ctx:        ctx,
		rt:         rt,
		protected:  make(map[any]goja.Value),
		objects:    make(map[weak.Pointer[goja.Object]]*objectEntry),
		layouts:    make(map[*classDefinition][]namedProperty),
		accessors:  make(map[string]accessorPair),
		finalizers: newLoop(),
	}

	reflect := rt.Get("Reflect").ToObject(rt)
	e.reflectHas, _ = goja.AssertFunction(reflect.Get("has"))
	e.reflectDelete, _ = goja.AssertFunction(reflect.Get("deleteProperty"))
	json := rt.Get("JSON").ToObject(rt)
	e.jsonParse, _ = goja.AssertFunction(json.Get("parse"))
	e.jsonStringify, _ = goja.AssertFunction(json.Get("stringify"))
	return e
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (e *gojaEngine) value(h Handle) goja.Value {
	if v, ok := h.(goja.Value); ok && v != nil {
		return v
	}
	return goja.Undefined()
}

func (e *gojaEngine) values(hs []Handle) []goja.Value {
	vs := make([]goja.Value, len(hs))
	for i, h := range hs {
		vs[i] = e.value(h)
	}
	return vs
}

func handlesOf(vs []goja.Value) []Handle {
	hs := make([]Handle, len(vs))
	for i, v := range vs {
		hs[i] = v
	}
	return hs
}

func (e *gojaEngine) object(h Handle) (*goja.Object, error) {
	if o, ok := h.(*goja.Object); ok && o != nil {
		return o, nil
	}
	return nil, &exception{
		value:   e.rt.NewTypeError("value is not an object"),
		message: "TypeError: value is not an object",
	}
}

// try runs f and converts anything thrown by script into an *exception.
func (e *gojaEngine) try(f func()) error {
	if ex := e.rt.Try(f); ex != nil {
		return e.exception(ex)
	}
	return nil
}

func (e *gojaEngine) exception(err error) error {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return err
	}
	x := &exception{value: ex.Value(), message: ex.Error(), stack: ex.String()}
	for _, frame := range ex.Stack() {
		if pos := frame.Position(); pos.Filename != "" || pos.Line > 0 {
			x.fileName, x.lineNumber = pos.Filename, pos.Line
			break
		}
	}
	return x
}

// throw rethrows an exception set by a class callback into script.
func (e *gojaEngine) throw(exc Handle) {
	if exc != nil {
		panic(e.value(exc))
	}
}

// Scripts have no starting line option, so the source is shifted instead.
func shiftLines(script string, line int) string {
	if line > 1 {
		return strings.Repeat("\n", line-1) + script
	}
	return script
}

// =============================================================================
// VALUES
// =============================================================================

func (e *gojaEngine) GlobalObject() Handle   { return e.rt.GlobalObject() }
func (e *gojaEngine) Undefined() Handle      { return goja.Undefined() }
func (e *gojaEngine) Null() Handle           { return goja.Null() }
func (e *gojaEngine) Boolean(b bool) Handle  { return e.rt.ToValue(b) }
func (e *gojaEngine) Number(n float64) Handle { return e.rt.ToValue(n) }
func (e *gojaEngine) String(s string) Handle { return e.rt.ToValue(s) }

func (e *gojaEngine) MakeArray(items []Handle) (Handle, error) {
	vs := make([]interface{}, len(items))
	for i, h := range items {
		vs[i] = e.value(h)
	}
	return e.rt.NewArray(vs...), nil
}

func (e *gojaEngine) construct(name string, args []Handle) (Handle, error) {
	obj, err := e.rt.New(e.rt.Get(name), e.values(args)...)
	if err != nil {
		return nil, e.exception(err)
	}
	return obj, nil
}

func (e *gojaEngine) MakeError(args []Handle) (Handle, error) {
	return e.construct("Error", args)
}

func (e *gojaEngine) MakeDate(args []Handle) (Handle, error) {
	return e.construct("Date", args)
}

func (e *gojaEngine) MakeFunction(name string, params []string, body string) (Handle, error) {
	args := make([]Handle, 0, len(params)+1)
	for _, p := range params {
		args = append(args, e.rt.ToValue(p))
	}
	args = append(args, e.rt.ToValue(body))
	fn, err := e.construct("Function", args)
	if err != nil {
		return nil, err
	}
	if name != "" {
		_ = fn.(*goja.Object).DefineDataProperty("name", e.rt.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	}
	return fn, nil
}

func (e *gojaEngine) MakeNativeFunction(name string, call callAsFunctionCallback) Handle {
	fn := e.rt.ToValue(func(fc goja.FunctionCall) goja.Value {
		var exc Handle
		result := call(e.ctx, fc.This, handlesOf(fc.Arguments), &exc)
		e.throw(exc)
		return e.value(result)
	}).(*goja.Object)
	_ = fn.DefineDataProperty("name", e.rt.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return fn
}

func (e *gojaEngine) ParseJSON(s string) (Handle, error) {
	v, err := e.jsonParse(goja.Undefined(), e.rt.ToValue(s))
	if err != nil {
		return nil, e.exception(err)
	}
	return v, nil
}

func (e *gojaEngine) TypeOf(h Handle) ValueType {
	v := e.value(h)
	switch v.(type) {
	case *goja.Object:
		return TypeObject
	case *goja.Symbol:
		return TypeSymbol
	}
	if goja.IsUndefined(v) {
		return TypeUndefined
	}
	if goja.IsNull(v) {
		return TypeNull
	}
	switch v.Export().(type) {
	case bool:
		return TypeBoolean
	case int64, float64:
		return TypeNumber
	case string:
		return TypeString
	case *big.Int:
		return TypeBigInt
	}
	return TypeUndefined
}

func (e *gojaEngine) IsArray(h Handle) bool {
	o, ok := h.(*goja.Object)
	return ok && o.ClassName() == "Array"
}

func (e *gojaEngine) IsDate(h Handle) bool {
	o, ok := h.(*goja.Object)
	return ok && o.ClassName() == "Date"
}

func (e *gojaEngine) IsFunction(h Handle) bool {
	_, ok := goja.AssertFunction(e.value(h))
	return ok
}

func (e *gojaEngine) IsConstructor(h Handle) bool {
	_, ok := goja.AssertConstructor(e.value(h))
	return ok
}

func (e *gojaEngine) IsInstanceOf(h, constructor Handle) (bool, error) {
	c, err := e.object(constructor)
	if err != nil {
		return false, err
	}
	var result bool
	err = e.try(func() { result = e.rt.InstanceOf(e.value(h), c) })
	return result, err
}

func (e *gojaEngine) ToString(h Handle) (string, error) {
	var s string
	err := e.try(func() { s = e.value(h).String() })
	return s, err
}

func (e *gojaEngine) ToNumber(h Handle) (float64, error) {
	var n float64
	err := e.try(func() { n = e.value(h).ToFloat() })
	return n, err
}

func (e *gojaEngine) ToBoolean(h Handle) bool {
	return e.value(h).ToBoolean()
}

func (e *gojaEngine) ToObject(h Handle) (Handle, error) {
	var o *goja.Object
	err := e.try(func() { o = e.value(h).ToObject(e.rt) })
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (e *gojaEngine) ToJSON(h Handle, indent int) (string, error) {
	args := []goja.Value{e.value(h)}
	if indent > 0 {
		args = append(args, goja.Undefined(), e.rt.ToValue(indent))
	}
	v, err := e.jsonStringify(goja.Undefined(), args...)
	if err != nil {
		return "", e.exception(err)
	}
	if goja.IsUndefined(v) {
		return "", nil
	}
	return v.String(), nil
}

func (e *gojaEngine) LooseEquals(a, b Handle) (bool, error) {
	var result bool
	err := e.try(func() { result = e.value(a).Equals(e.value(b)) })
	return result, err
}

func (e *gojaEngine) StrictEquals(a, b Handle) bool {
	return e.value(a).StrictEquals(e.value(b))
}

// =============================================================================
// PROPERTIES
// =============================================================================

func (e *gojaEngine) HasProperty(object Handle, name string) (bool, error) {
	o, err := e.object(object)
	if err != nil {
		return false, err
	}
	v, err := e.reflectHas(goja.Undefined(), o, e.rt.ToValue(name))
	if err != nil {
		return false, e.exception(err)
	}
	return v.ToBoolean(), nil
}

func (e *gojaEngine) GetProperty(object Handle, name string) (Handle, error) {
	o, err := e.object(object)
	if err != nil {
		return nil, err
	}
	var v goja.Value
	if err := e.try(func() { v = o.Get(name) }); err != nil {
		return nil, err
	}
	return e.value(v), nil
}

func (e *gojaEngine) SetProperty(object Handle, name string, value Handle, attributes PropertyAttribute) error {
	o, err := e.object(object)
	if err != nil {
		return err
	}
	if attributes == PropertyNone {
		return e.exception(o.Set(name, e.value(value)))
	}
	return e.exception(o.DefineDataProperty(name, e.value(value),
		goja.ToFlag(attributes&PropertyReadOnly == 0),
		goja.ToFlag(attributes&PropertyDontDelete == 0),
		goja.ToFlag(attributes&PropertyDontEnum == 0)))
}

func (e *gojaEngine) DeleteProperty(object Handle, name string) (bool, error) {
	o, err := e.object(object)
	if err != nil {
		return false, err
	}
	v, err := e.reflectDelete(goja.Undefined(), o, e.rt.ToValue(name))
	if err != nil {
		return false, e.exception(err)
	}
	return v.ToBoolean(), nil
}

func (e *gojaEngine) GetPropertyAtIndex(object Handle, index uint32) (Handle, error) {
	return e.GetProperty(object, strconv.FormatUint(uint64(index), 10))
}

func (e *gojaEngine) SetPropertyAtIndex(object Handle, index uint32, value Handle) error {
	return e.SetProperty(object, strconv.FormatUint(uint64(index), 10), value, PropertyNone)
}

func (e *gojaEngine) PropertyNames(object Handle) ([]string, error) {
	o, err := e.object(object)
	if err != nil {
		return nil, err
	}
	var names []string
	err = e.try(func() { names = o.Keys() })
	return names, err
}

// =============================================================================
// CALLS AND EVALUATION
// =============================================================================

func (e *gojaEngine) CallAsFunction(function, this Handle, args []Handle) (Handle, error) {
	fn, ok := goja.AssertFunction(e.value(function))
	if !ok {
		return nil, &exception{
			value:   e.rt.NewTypeError("value is not a function"),
			message: "TypeError: value is not a function",
		}
	}
	v, err := fn(e.value(this), e.values(args)...)
	if err != nil {
		return nil, e.exception(err)
	}
	return v, nil
}

func (e *gojaEngine) CallAsConstructor(constructor Handle, args []Handle) (Handle, error) {
	if _, ok := goja.AssertConstructor(e.value(constructor)); !ok {
		return nil, &exception{
			value:   e.rt.NewTypeError("value is not a constructor"),
			message: "TypeError: value is not a constructor",
		}
	}
	obj, err := e.rt.New(e.value(constructor), e.values(args)...)
	if err != nil {
		return nil, e.exception(err)
	}
	return obj, nil
}

func (e *gojaEngine) Evaluate(script string, sourceURL string, line int) (Handle, error) {
	e.finalizers.Run()
	v, err := e.rt.RunScript(sourceURL, shiftLines(script, line))
	if err != nil {
		return nil, e.exception(err)
	}
	return v, nil
}

func (e *gojaEngine) CheckSyntax(script, sourceURL string, line int) error {
	if _, err := goja.Compile(sourceURL, shiftLines(script, line), false); err != nil {
		x := &exception{message: err.Error(), fileName: sourceURL, lineNumber: line}
		if v, cerr := e.construct("SyntaxError", []Handle{e.rt.ToValue(err.Error())}); cerr == nil {
			x.value = v
		}
		return x
	}
	return nil
}

// =============================================================================
// PROTECTION AND PRIVATE DATA
// =============================================================================

func (e *gojaEngine) Identity(h Handle) any {
	v := e.value(h)
	switch x := v.(type) {
	case *goja.Object:
		return x
	case *goja.Symbol:
		return x
	}
	return primitiveKey{kind: e.TypeOf(v), repr: v.String()}
}

func (e *gojaEngine) Protect(h Handle) {
	e.protected[e.Identity(h)] = e.value(h)
}

func (e *gojaEngine) Unprotect(h Handle) {
	delete(e.protected, e.Identity(h))
}

func (e *gojaEngine) entry(object Handle) *objectEntry {
	o, ok := object.(*goja.Object)
	if !ok || o == nil {
		return nil
	}
	return e.objects[weak.Make(o)]
}

func (e *gojaEngine) SetPrivate(object Handle, data any) bool {
	ent := e.entry(object)
	if ent == nil {
		return false
	}
	ent.private = data
	return true
}

func (e *gojaEngine) GetPrivate(object Handle) any {
	if ent := e.entry(object); ent != nil {
		return ent.private
	}
	return nil
}

func (e *gojaEngine) FindPrivate(match func(data any) bool) Handle {
	for key, ent := range e.objects {
		if ent.private == nil || !match(ent.private) {
			continue
		}
		if o := key.Value(); o != nil {
			return o
		}
	}
	return nil
}

func (e *gojaEngine) ClassOf(object Handle) *classDefinition {
	if ent := e.entry(object); ent != nil {
		return ent.def
	}
	return nil
}

func (e *gojaEngine) WeakRef(object Handle) func() Handle {
	o, ok := object.(*goja.Object)
	if !ok || o == nil {
		return func() Handle { return nil }
	}
	w := weak.Make(o)
	return func() Handle {
		if p := w.Value(); p != nil {
			return p
		}
		return nil
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// collected runs on the runtime's cleanup goroutine.
func (e *gojaEngine) collected(key weak.Pointer[goja.Object]) {
	e.finalizers.ScheduleJob(func() { e.finalize(key) })
}

func (e *gojaEngine) finalize(key weak.Pointer[goja.Object]) {
	ent, ok := e.objects[key]
	if !ok {
		return
	}
	delete(e.objects, key)
	e.finalizeEntry(ent)
}

func (e *gojaEngine) finalizeEntry(ent *objectEntry) {
	if ent.private == nil {
		return
	}
	private := ent.private
	ent.private = nil
	if fin := ent.def.finalizer(); fin != nil {
		fin(e.ctx, private)
	}
}

func (e *gojaEngine) GarbageCollect() {
	runtime.GC()
	e.finalizers.Run()
}

func (e *gojaEngine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.finalizers.Stop()
	for key, ent := range e.objects {
		delete(e.objects, key)
		e.finalizeEntry(ent)
	}
	clear(e.protected)
}
