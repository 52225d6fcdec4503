package hal

import (
	"runtime"
	"weak"

	"github.com/dop251/goja"
)

// MakeObject creates a proxy for def. Named values and functions are also
// published on the proxy target as accessors so that enumeration and
// JSON.stringify see them in registration order.
func (e *gojaEngine) MakeObject(def *classDefinition, constructor bool) Handle {
	if def == nil {
		return e.rt.NewObject()
	}

	var target *goja.Object
	if constructor {
		target = e.rt.ToValue(func(goja.ConstructorCall) *goja.Object { return nil }).(*goja.Object)
	} else {
		target = e.rt.NewObject()
	}
	ent := &objectEntry{def: def, target: target, functions: make(map[string]*goja.Object)}

	for _, p := range e.layout(def) {
		acc := e.accessor(p.name)
		_ = target.DefineAccessorProperty(p.name, acc.getter, acc.setter, goja.FLAG_TRUE, goja.ToFlag(p.enumerable))
	}

	var self *goja.Object
	self = e.rt.ToValue(e.rt.NewProxy(target, &goja.ProxyTrapConfig{
		Has: func(t *goja.Object, name string) bool {
			return e.has(ent, self, name)
		},
		Get: func(t *goja.Object, name string, receiver goja.Value) goja.Value {
			return e.get(ent, self, name)
		},
		Set: func(t *goja.Object, name string, value goja.Value, receiver goja.Value) bool {
			return e.set(ent, self, name, value)
		},
		DeleteProperty: func(t *goja.Object, name string) bool {
			return e.delete(ent, name)
		},
		Apply: func(t *goja.Object, this goja.Value, args []goja.Value) goja.Value {
			panic(e.rt.NewTypeError("%s is not a function", def.className))
		},
		Construct: func(t *goja.Object, args []goja.Value, newTarget *goja.Object) *goja.Object {
			return e.callAsConstructor(ent, self, args)
		},
	})).(*goja.Object)

	key := weak.Make(self)
	e.objects[key] = ent
	runtime.AddCleanup(self, e.collected, key)

	if initialize := def.initializer(); initialize != nil {
		initialize(e.ctx, self)
	}
	return self
}

// layout lists the named properties of def and its ancestors, child first,
// each name once.
func (e *gojaEngine) layout(def *classDefinition) []namedProperty {
	if l, ok := e.layouts[def]; ok {
		return l
	}
	var l []namedProperty
	seen := make(map[string]bool)
	for c := def; c != nil; c = c.parent {
		for _, v := range c.staticValues {
			if !seen[v.name] {
				seen[v.name] = true
				l = append(l, namedProperty{name: v.name, enumerable: v.attributes&PropertyDontEnum == 0})
			}
		}
		for _, f := range c.staticFunctions {
			if !seen[f.name] {
				seen[f.name] = true
				l = append(l, namedProperty{name: f.name, enumerable: f.attributes&PropertyDontEnum == 0})
			}
		}
	}
	e.layouts[def] = l
	return l
}

// accessor returns the shared getter and setter published for name. They
// resolve the receiver back to its entry, so one pair serves every object.
func (e *gojaEngine) accessor(name string) accessorPair {
	if acc, ok := e.accessors[name]; ok {
		return acc
	}
	acc := accessorPair{
		getter: e.rt.ToValue(func(call goja.FunctionCall) goja.Value {
			self, _ := call.This.(*goja.Object)
			ent := e.entry(self)
			if ent == nil {
				return goja.Undefined()
			}
			return e.get(ent, self, name)
		}),
		setter: e.rt.ToValue(func(call goja.FunctionCall) goja.Value {
			self, _ := call.This.(*goja.Object)
			if ent := e.entry(self); ent != nil {
				e.set(ent, self, name, call.Argument(0))
			}
			return goja.Undefined()
		}),
	}
	e.accessors[name] = acc
	return acc
}

func (e *gojaEngine) functionObject(ent *objectEntry, f *staticFunction) goja.Value {
	if fn, ok := ent.functions[f.name]; ok {
		return fn
	}
	fn := e.MakeNativeFunction(f.name, f.call).(*goja.Object)
	ent.functions[f.name] = fn
	return fn
}

// =============================================================================
// TRAPS
// =============================================================================

func (e *gojaEngine) has(ent *objectEntry, self *goja.Object, name string) bool {
	for def := ent.def; def != nil; def = def.parent {
		if def.value(name) != nil || def.function(name) != nil {
			return true
		}
	}
	for def := ent.def; def != nil; def = def.parent {
		if def.hasProperty != nil {
			if def.hasProperty(e.ctx, self, name) {
				return true
			}
			continue
		}
		if def.getProperty != nil {
			var exc Handle
			v := def.getProperty(e.ctx, self, name, &exc)
			e.throw(exc)
			if v != nil {
				return true
			}
		}
	}
	v, err := e.reflectHas(goja.Undefined(), ent.target, e.rt.ToValue(name))
	if err != nil {
		panic(err)
	}
	return v.ToBoolean()
}

func (e *gojaEngine) get(ent *objectEntry, self *goja.Object, name string) goja.Value {
	for def := ent.def; def != nil; def = def.parent {
		if v := def.value(name); v != nil && v.get != nil {
			var exc Handle
			result := v.get(e.ctx, self, name, &exc)
			e.throw(exc)
			if result != nil {
				return e.value(result)
			}
		}
		if f := def.function(name); f != nil {
			return e.functionObject(ent, f)
		}
	}
	for def := ent.def; def != nil; def = def.parent {
		if def.getProperty == nil {
			continue
		}
		if def.hasProperty != nil && !def.hasProperty(e.ctx, self, name) {
			continue
		}
		var exc Handle
		result := def.getProperty(e.ctx, self, name, &exc)
		e.throw(exc)
		if result != nil {
			return e.value(result)
		}
	}
	if v := ent.target.Get(name); v != nil {
		return v
	}
	return goja.Undefined()
}

func (e *gojaEngine) set(ent *objectEntry, self *goja.Object, name string, value goja.Value) bool {
	for def := ent.def; def != nil; def = def.parent {
		if f := def.function(name); f != nil {
			return false
		}
		v := def.value(name)
		if v == nil {
			continue
		}
		if v.set == nil || v.attributes&PropertyReadOnly != 0 {
			return false
		}
		var exc Handle
		ok := v.set(e.ctx, self, name, value, &exc)
		e.throw(exc)
		return ok
	}
	for def := ent.def; def != nil; def = def.parent {
		if def.setProperty == nil {
			continue
		}
		var exc Handle
		ok := def.setProperty(e.ctx, self, name, value, &exc)
		e.throw(exc)
		if ok {
			return true
		}
	}
	return ent.target.Set(name, value) == nil
}

func (e *gojaEngine) delete(ent *objectEntry, name string) bool {
	for def := ent.def; def != nil; def = def.parent {
		if v := def.value(name); v != nil {
			return v.attributes&PropertyDontDelete == 0
		}
		if f := def.function(name); f != nil {
			return f.attributes&PropertyDontDelete == 0
		}
	}
	return ent.target.Delete(name) == nil
}

func (e *gojaEngine) callAsConstructor(ent *objectEntry, self *goja.Object, args []goja.Value) *goja.Object {
	construct := ent.def.constructor()
	if construct == nil {
		panic(e.rt.NewTypeError("%s is not a constructor", ent.def.className))
	}
	var exc Handle
	result := construct(e.ctx, self, handlesOf(args), &exc)
	e.throw(exc)
	obj, ok := result.(*goja.Object)
	if !ok {
		panic(e.rt.NewTypeError("%s did not construct an object", ent.def.className))
	}
	return obj
}

// AdoptGlobal binds def to the global object. The global cannot be replaced
// by a proxy, so a root object carries the private data and the global
// shares its entry through published accessors.
func (e *gojaEngine) AdoptGlobal(def *classDefinition) Handle {
	root := e.MakeObject(def, false).(*goja.Object)
	ent := e.entry(root)
	global := e.rt.GlobalObject()
	e.objects[weak.Make(global)] = ent

	for _, p := range e.layout(def) {
		if p.name == "constructor" {
			continue
		}
		acc := e.accessor(p.name)
		_ = global.DefineAccessorProperty(p.name, acc.getter, acc.setter, goja.FLAG_TRUE, goja.ToFlag(p.enumerable))
	}
	return root
}
