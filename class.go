package hal

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// =============================================================================
// CLASS CALLBACK TYPES
// =============================================================================

// GetterFunc computes the value of a named property.
type GetterFunc[T Exported] func(self T) (Value, error)

// SetterFunc stores a named property. Returning false leaves the property
// unchanged.
type SetterFunc[T Exported] func(self T, value Value) (bool, error)

// FunctionFunc implements a named function property. self is the zero T when
// the function is called without a receiver that carries a host instance.
type FunctionFunc[T Exported] func(self T, args []Value, this Object) (Value, error)

// HasPropertyFunc reports whether the trap handles name.
type HasPropertyFunc[T Exported] func(self T, name String) bool

// GetPropertyFunc intercepts reads of names that no named property matches.
// Returning the zero Value forwards the read to the object's own storage.
type GetPropertyFunc[T Exported] func(self T, name String) (Value, error)

// SetPropertyFunc intercepts writes of names that no named property matches.
// Returning false forwards the write to the object's own storage.
type SetPropertyFunc[T Exported] func(self T, name String, value Value) (bool, error)

// =============================================================================
// CLASS
// =============================================================================

// Class is a materialized exported class. It is shared by every context in
// the process.
type Class struct {
	name  string
	def   *classDefinition
	cache *constantCache
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// ResizeCache sets the capacity of the constant cache. The cache is emptied;
// zero or less means unbounded.
func (c *Class) ResizeCache(size int) {
	c.cache.Resize(size)
	Logger().Debug("resized constant cache", zap.String("class", c.name), zap.Int("size", size))
}

// CachedKeys returns the names of cached constants, most recently used first.
func (c *Class) CachedKeys() []string {
	return c.cache.Keys()
}

// EvictCache drops the least recently used constant.
func (c *Class) EvictCache() bool {
	return c.cache.EvictOldest()
}

// EvictAllCache drops every cached constant.
func (c *Class) EvictAllCache() {
	c.cache.Purge()
}

// CacheLen returns the number of cached constants.
func (c *Class) CacheLen() int {
	return c.cache.Len()
}

// CacheSize returns the capacity of the constant cache, zero when unbounded.
func (c *Class) CacheSize() int {
	return c.cache.Size()
}

func (c *Class) frame(name string) string {
	return c.name + "." + name
}

// =============================================================================
// CLASS BUILDER
// =============================================================================

// ClassBuilder accumulates the properties of an exported host type. It is
// handed to the initializer passed to Export and must not be used after the
// initializer returns.
type ClassBuilder[T Exported] struct {
	class *Class
	newFn func(*Context) T

	values    []staticValue
	functions []staticFunction
	getters   map[string]GetterFunc[T]
	setters   map[string]SetterFunc[T]
	calls     map[string]FunctionFunc[T]
	constants map[string]bool

	hasProperty HasPropertyFunc[T]
	getProperty GetPropertyFunc[T]
	setProperty SetPropertyFunc[T]

	parent    *Class
	cacheSize int
	built     bool
}

func newClassBuilder[T Exported](name string, newFn func(*Context) T) *ClassBuilder[T] {
	return &ClassBuilder[T]{
		class:     &Class{name: name},
		newFn:     newFn,
		getters:   make(map[string]GetterFunc[T]),
		setters:   make(map[string]SetterFunc[T]),
		calls:     make(map[string]FunctionFunc[T]),
		constants: make(map[string]bool),
		cacheSize: defaultCacheSize(),
	}
}

func (b *ClassBuilder[T]) mustBeOpen() {
	if b.built {
		panic(fmt.Sprintf("hal: class %s is already materialized", b.class.name))
	}
}

func (b *ClassBuilder[T]) addGetter(name string, getter GetterFunc[T]) {
	b.mustBeOpen()
	if getter == nil {
		panic(fmt.Sprintf("hal: nil getter for %s", b.class.frame(name)))
	}
	if _, ok := b.getters[name]; ok {
		panic(fmt.Sprintf("hal: duplicate getter for %s", b.class.frame(name)))
	}
	if _, ok := b.calls[name]; ok {
		panic(fmt.Sprintf("hal: %s is already a function property", b.class.frame(name)))
	}
	b.getters[name] = getter
}

// AddValueProperty registers a property read through getter and written
// through setter. A nil setter makes the property read-only.
func (b *ClassBuilder[T]) AddValueProperty(name string, getter GetterFunc[T], setter SetterFunc[T], enumerable bool) *ClassBuilder[T] {
	b.addGetter(name, getter)
	attributes := PropertyNone
	if !enumerable {
		attributes |= PropertyDontEnum
	}
	sv := staticValue{name: name, get: b.getNamedValue, attributes: attributes}
	if setter != nil {
		b.setters[name] = setter
		sv.set = b.setNamedValue
	}
	b.values = append(b.values, sv)
	return b
}

// AddConstantProperty registers a read-only property whose getter result is
// cached by the class.
func (b *ClassBuilder[T]) AddConstantProperty(name string, getter GetterFunc[T]) *ClassBuilder[T] {
	b.addGetter(name, getter)
	b.constants[name] = true
	b.values = append(b.values, staticValue{name: name, get: b.getNamedValue, attributes: PropertyNone})
	return b
}

// AddFunctionProperty registers a function property.
func (b *ClassBuilder[T]) AddFunctionProperty(name string, fn FunctionFunc[T]) *ClassBuilder[T] {
	b.mustBeOpen()
	if fn == nil {
		panic(fmt.Sprintf("hal: nil function for %s", b.class.frame(name)))
	}
	if _, ok := b.calls[name]; ok {
		panic(fmt.Sprintf("hal: duplicate function property %s", b.class.frame(name)))
	}
	if _, ok := b.getters[name]; ok {
		panic(fmt.Sprintf("hal: %s is already a value property", b.class.frame(name)))
	}
	b.calls[name] = fn
	b.functions = append(b.functions, staticFunction{name: name, call: b.callNamedFunction(name), attributes: PropertyNone})
	return b
}

// AddHasPropertyCallback registers the has-property trap.
func (b *ClassBuilder[T]) AddHasPropertyCallback(fn HasPropertyFunc[T]) *ClassBuilder[T] {
	b.mustBeOpen()
	if b.hasProperty != nil {
		panic(fmt.Sprintf("hal: duplicate has-property callback for %s", b.class.name))
	}
	b.hasProperty = fn
	return b
}

// AddGetPropertyCallback registers the get-property trap.
func (b *ClassBuilder[T]) AddGetPropertyCallback(fn GetPropertyFunc[T]) *ClassBuilder[T] {
	b.mustBeOpen()
	if b.getProperty != nil {
		panic(fmt.Sprintf("hal: duplicate get-property callback for %s", b.class.name))
	}
	b.getProperty = fn
	return b
}

// AddSetPropertyCallback registers the set-property trap.
func (b *ClassBuilder[T]) AddSetPropertyCallback(fn SetPropertyFunc[T]) *ClassBuilder[T] {
	b.mustBeOpen()
	if b.setProperty != nil {
		panic(fmt.Sprintf("hal: duplicate set-property callback for %s", b.class.name))
	}
	b.setProperty = fn
	return b
}

// SetParent makes unresolved names fall back to parent's properties. The host
// type must embed the parent's host type.
func (b *ClassBuilder[T]) SetParent(parent *Class) *ClassBuilder[T] {
	b.mustBeOpen()
	b.parent = parent
	return b
}

// CacheSize bounds the constant cache of the class. Zero means unbounded.
func (b *ClassBuilder[T]) CacheSize(size int) *ClassBuilder[T] {
	b.mustBeOpen()
	b.cacheSize = size
	return b
}

// build materializes the accumulated state. The builder is closed afterwards.
func (b *ClassBuilder[T]) build() *Class {
	b.built = true
	def := &classDefinition{
		className:         b.class.name,
		staticValues:      b.values,
		staticFunctions:   b.functions,
		initialize:        b.initialize,
		finalize:          b.finalize,
		callAsConstructor: b.callAsConstructor,
	}
	if b.parent != nil {
		def.parent = b.parent.def
	}
	if b.hasProperty != nil {
		def.hasProperty = b.hasPropertyTrap
	}
	if b.getProperty != nil {
		def.getProperty = b.getPropertyTrap
	}
	if b.setProperty != nil {
		def.setProperty = b.setPropertyTrap
	}
	b.class.def = def
	b.class.cache = newConstantCache(b.cacheSize)

	Logger().Debug("materialized class",
		zap.String("class", b.class.name),
		zap.Int("values", len(b.values)),
		zap.Int("functions", len(b.functions)),
		zap.Int("cacheSize", b.cacheSize))
	return b.class
}

// =============================================================================
// EXPORT REGISTRY
// =============================================================================

type exportEntry struct {
	once  sync.Once
	build func() *Class
	class atomic.Pointer[Class]
}

var (
	exportsMu sync.Mutex
	exports   = make(map[reflect.Type]*exportEntry)

	cacheSizeDefault atomic.Int64
)

// SetDefaultCacheSize sets the constant cache capacity of classes
// materialized afterwards. Zero means unbounded.
func SetDefaultCacheSize(size int) {
	cacheSizeDefault.Store(int64(size))
}

func defaultCacheSize() int {
	return int(cacheSizeDefault.Load())
}

// Export registers T as an exported class named name. newFn creates the host
// instance for every new object; initialize registers its properties and
// runs once, the first time ClassOf[T] is called. Exporting a type twice
// panics.
func Export[T Exported](name string, newFn func(*Context) T, initialize func(*ClassBuilder[T])) {
	if newFn == nil {
		panic(fmt.Sprintf("hal: nil constructor for exported class %s", name))
	}
	typ := reflect.TypeFor[T]()

	exportsMu.Lock()
	defer exportsMu.Unlock()
	if _, ok := exports[typ]; ok {
		panic(fmt.Sprintf("hal: %s is already exported", typ))
	}
	exports[typ] = &exportEntry{
		build: func() *Class {
			b := newClassBuilder(name, newFn)
			if initialize != nil {
				initialize(b)
			}
			return b.build()
		},
	}
}

// ClassOf returns the class exported for T, materializing it on first use.
// It panics when T was never exported.
func ClassOf[T Exported]() *Class {
	typ := reflect.TypeFor[T]()

	exportsMu.Lock()
	entry, ok := exports[typ]
	exportsMu.Unlock()
	if !ok {
		panic(fmt.Sprintf("hal: %s is not exported", typ))
	}

	entry.once.Do(func() {
		entry.class.Store(entry.build())
	})
	return entry.class.Load()
}

// exportedClasses returns the classes materialized so far.
func exportedClasses() []*Class {
	exportsMu.Lock()
	defer exportsMu.Unlock()
	classes := make([]*Class, 0, len(exports))
	for _, entry := range exports {
		if c := entry.class.Load(); c != nil {
			classes = append(classes, c)
		}
	}
	return classes
}
