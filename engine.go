package hal

// Handle is an opaque reference to an engine-owned value. It is never owned
// by this package; ownership is tracked through the retain table.
type Handle interface{}

// ValueType is the JavaScript type of a value.
type ValueType int

const (
	TypeUndefined ValueType = iota
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString
	TypeObject
	TypeSymbol
	TypeBigInt
)

func (t ValueType) String() string {
	switch t {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	case TypeSymbol:
		return "symbol"
	case TypeBigInt:
		return "bigint"
	}
	return "unknown"
}

// PropertyAttribute describes how a property behaves when set, enumerated or
// deleted.
type PropertyAttribute uint8

const (
	PropertyNone     PropertyAttribute = 0
	PropertyReadOnly PropertyAttribute = 1 << (iota - 1)
	PropertyDontEnum
	PropertyDontDelete
)

// Class callbacks. A callback that fails stores the thrown value in
// exception and returns the zero result; the engine rethrows it into script.
type (
	getPropertyCallback       func(ctx *Context, object Handle, name string, exception *Handle) Handle
	setPropertyCallback       func(ctx *Context, object Handle, name string, value Handle, exception *Handle) bool
	hasPropertyCallback       func(ctx *Context, object Handle, name string) bool
	callAsFunctionCallback    func(ctx *Context, this Handle, args []Handle, exception *Handle) Handle
	callAsConstructorCallback func(ctx *Context, constructor Handle, args []Handle, exception *Handle) Handle
	initializeCallback        func(ctx *Context, object Handle)
	finalizeCallback          func(ctx *Context, private any)
)

type staticValue struct {
	name       string
	get        getPropertyCallback
	set        setPropertyCallback
	attributes PropertyAttribute
}

type staticFunction struct {
	name       string
	call       callAsFunctionCallback
	attributes PropertyAttribute
}

// classDefinition is the engine-level class descriptor. It is immutable once
// handed to the engine.
type classDefinition struct {
	className         string
	parent            *classDefinition
	staticValues      []staticValue
	staticFunctions   []staticFunction
	initialize        initializeCallback
	finalize          finalizeCallback
	hasProperty       hasPropertyCallback
	getProperty       getPropertyCallback
	setProperty       setPropertyCallback
	callAsConstructor callAsConstructorCallback
}

func (d *classDefinition) value(name string) *staticValue {
	for i := range d.staticValues {
		if d.staticValues[i].name == name {
			return &d.staticValues[i]
		}
	}
	return nil
}

func (d *classDefinition) function(name string) *staticFunction {
	for i := range d.staticFunctions {
		if d.staticFunctions[i].name == name {
			return &d.staticFunctions[i]
		}
	}
	return nil
}

// Only the most derived class in the chain initializes and finalizes; its
// host instance embeds every ancestor.
func (d *classDefinition) initializer() initializeCallback {
	for c := d; c != nil; c = c.parent {
		if c.initialize != nil {
			return c.initialize
		}
	}
	return nil
}

func (d *classDefinition) finalizer() finalizeCallback {
	for c := d; c != nil; c = c.parent {
		if c.finalize != nil {
			return c.finalize
		}
	}
	return nil
}

func (d *classDefinition) constructor() callAsConstructorCallback {
	for c := d; c != nil; c = c.parent {
		if c.callAsConstructor != nil {
			return c.callAsConstructor
		}
	}
	return nil
}

// engine is the primitive collaborator the binding layer is built on. One
// engine backs exactly one Context and is only used from that context's
// goroutine, except for the finalizer queue which is safe from any goroutine.
type engine interface {
	GlobalObject() Handle
	Undefined() Handle
	Null() Handle
	Boolean(b bool) Handle
	Number(n float64) Handle
	String(s string) Handle

	// MakeObject creates an object of def, running its initialize callback.
	// A nil def creates a plain object. constructor controls whether the
	// object can be used with new.
	MakeObject(def *classDefinition, constructor bool) Handle
	// AdoptGlobal makes the global object dispatch through def and returns
	// the object that carries its private data.
	AdoptGlobal(def *classDefinition) Handle
	MakeArray(items []Handle) (Handle, error)
	MakeError(args []Handle) (Handle, error)
	MakeDate(args []Handle) (Handle, error)
	MakeFunction(name string, params []string, body string) (Handle, error)
	MakeNativeFunction(name string, call callAsFunctionCallback) Handle
	ParseJSON(s string) (Handle, error)

	TypeOf(h Handle) ValueType
	IsArray(h Handle) bool
	IsDate(h Handle) bool
	IsFunction(h Handle) bool
	IsConstructor(h Handle) bool
	IsInstanceOf(h, constructor Handle) (bool, error)
	ToString(h Handle) (string, error)
	ToNumber(h Handle) (float64, error)
	ToBoolean(h Handle) bool
	ToObject(h Handle) (Handle, error)
	ToJSON(h Handle, indent int) (string, error)
	LooseEquals(a, b Handle) (bool, error)
	StrictEquals(a, b Handle) bool

	HasProperty(object Handle, name string) (bool, error)
	GetProperty(object Handle, name string) (Handle, error)
	SetProperty(object Handle, name string, value Handle, attributes PropertyAttribute) error
	DeleteProperty(object Handle, name string) (bool, error)
	GetPropertyAtIndex(object Handle, index uint32) (Handle, error)
	SetPropertyAtIndex(object Handle, index uint32, value Handle) error
	PropertyNames(object Handle) ([]string, error)

	CallAsFunction(function, this Handle, args []Handle) (Handle, error)
	CallAsConstructor(constructor Handle, args []Handle) (Handle, error)
	Evaluate(script, sourceURL string, line int) (Handle, error)
	CheckSyntax(script, sourceURL string, line int) error

	Protect(h Handle)
	Unprotect(h Handle)
	// Identity returns a comparable key that is equal for handles that refer
	// to the same engine value.
	Identity(h Handle) any

	SetPrivate(object Handle, data any) bool
	GetPrivate(object Handle) any
	// FindPrivate returns a live object whose private data satisfies match.
	FindPrivate(match func(data any) bool) Handle
	ClassOf(object Handle) *classDefinition
	// WeakRef returns a function yielding object while it is alive and nil
	// once it has been collected.
	WeakRef(object Handle) func() Handle

	// GarbageCollect runs pending finalizers for collected objects.
	GarbageCollect()
	// Close finalizes every object still carrying private data.
	Close()
}

// exception carries a value thrown by script back to Go.
type exception struct {
	value      Handle
	message    string
	fileName   string
	lineNumber int
	stack      string
}

func (e *exception) Error() string {
	return e.message
}

type engineFactory func(ctx *Context) engine
