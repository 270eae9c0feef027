// Package hostjs exposes the scene graph to scripts as the "scene:host"
// native module.
//
// # JavaScript API
//
//	const host = require('scene:host');
//
//	host.root();                          // the scene root
//	host.find('menu');                    // first object named "menu", or null
//	host.query('kind == "text" && active') // expr-lang predicate, see scene.QueryEnv
//	host.dump();                          // text rendering of the scene
//	host.click('menu');                   // invoke an object's onClick
//
// Objects are returned as snapshots:
//
//	{ id, tag, name, active, get(prop), children() }
package hostjs

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/scene"
)

// ClickProperty is the callback property a click dispatches to.
const ClickProperty = "onClick"

// Invoke calls the script callback stored under prop on h, reporting false if
// there is none. It must run on the script loop.
func Invoke(vm *goja.Runtime, g *scene.Graph, h host.Handle, prop string, args ...goja.Value) (bool, error) {
	fn, ok := g.Callback(h, prop)
	if !ok {
		return false, nil
	}
	v, ok := fn.(goja.Value)
	if !ok {
		return false, fmt.Errorf("%s.%s: not a script function", h, prop)
	}
	call, ok := goja.AssertFunction(v)
	if !ok {
		return false, fmt.Errorf("%s.%s: not callable", h, prop)
	}
	if _, err := call(goja.Undefined(), args...); err != nil {
		return true, fmt.Errorf("%s.%s: %w", h, prop, err)
	}
	return true, nil
}

// Require returns the "scene:host" module loader.
func Require(g *scene.Graph) func(runtime *goja.Runtime, module *goja.Object) {
	return func(runtime *goja.Runtime, module *goja.Object) {
		exports := runtime.NewObject()
		_ = module.Set("exports", exports)

		_ = exports.Set("root", func(goja.FunctionCall) goja.Value {
			return wrap(runtime, g, g.Root())
		})

		_ = exports.Set("find", func(call goja.FunctionCall) goja.Value {
			h, ok := g.Find(call.Argument(0).String())
			if !ok {
				return goja.Null()
			}
			return wrap(runtime, g, h)
		})

		_ = exports.Set("get", func(call goja.FunctionCall) goja.Value {
			return wrap(runtime, g, host.Handle(call.Argument(0).ToInteger()))
		})

		_ = exports.Set("query", func(call goja.FunctionCall) goja.Value {
			q, err := scene.CompileQuery(call.Argument(0).String())
			if err != nil {
				panic(runtime.NewTypeError(err.Error()))
			}
			handles, err := g.Select(q)
			if err != nil {
				panic(runtime.NewGoError(err))
			}
			out := make([]any, 0, len(handles))
			for _, h := range handles {
				out = append(out, wrap(runtime, g, h))
			}
			return runtime.NewArray(out...)
		})

		_ = exports.Set("dump", func(call goja.FunctionCall) goja.Value {
			opts := scene.RenderOptions{}
			if o, ok := call.Argument(0).(*goja.Object); ok {
				if v := o.Get("hideInactive"); v != nil {
					opts.HideInactive = v.ToBoolean()
				}
				if v := o.Get("width"); v != nil && !goja.IsUndefined(v) {
					opts.Width = int(v.ToInteger())
				}
			}
			return runtime.ToValue(g.Render(opts))
		})

		_ = exports.Set("click", func(call goja.FunctionCall) goja.Value {
			h, ok := target(g, call.Argument(0))
			if !ok {
				return runtime.ToValue(false)
			}
			called, err := Invoke(runtime, g, h, ClickProperty)
			if err != nil {
				panic(runtime.NewGoError(err))
			}
			return runtime.ToValue(called)
		})
	}
}

// target resolves a name, a handle or a wrapped object.
func target(g *scene.Graph, v goja.Value) (host.Handle, bool) {
	switch x := v.Export().(type) {
	case string:
		return g.Find(x)
	case int64:
		return host.Handle(x), true
	case float64:
		return host.Handle(x), true
	}
	if obj, ok := v.(*goja.Object); ok {
		if id := obj.Get("id"); id != nil && !goja.IsUndefined(id) {
			return host.Handle(id.ToInteger()), true
		}
	}
	return 0, false
}

func wrap(vm *goja.Runtime, g *scene.Graph, h host.Handle) goja.Value {
	o, ok := g.Lookup(h)
	if !ok {
		return goja.Null()
	}
	obj := vm.NewObject()
	_ = obj.Set("id", uint64(o.ID))
	_ = obj.Set("tag", o.Kind)
	_ = obj.Set("name", o.Name)
	_ = obj.Set("active", o.Active)
	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		v, ok := g.Property(h, call.Argument(0).String())
		if !ok {
			return goja.Undefined()
		}
		return toValue(vm, v)
	})
	// visible is live: the object and every ancestor are active.
	_ = obj.Set("visible", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(g.ActiveInHierarchy(h))
	})
	_ = obj.Set("children", func(goja.FunctionCall) goja.Value {
		cur, ok := g.Lookup(h)
		if !ok {
			return vm.NewArray()
		}
		out := make([]any, 0, len(cur.Children))
		for _, c := range cur.Children {
			out = append(out, wrap(vm, g, c))
		}
		return vm.NewArray(out...)
	})
	return obj
}

func toValue(vm *goja.Runtime, v any) goja.Value {
	switch x := v.(type) {
	case scene.Vec2:
		return vm.ToValue(map[string]any{"x": x.X, "y": x.Y})
	case scene.Vec3:
		return vm.ToValue(map[string]any{"x": x.X, "y": x.Y, "z": x.Z})
	case scene.Color:
		return vm.ToValue(map[string]any{"r": x.R, "g": x.G, "b": x.B, "a": x.A})
	case scene.Callback:
		if fn, ok := x.Fn.(goja.Value); ok {
			return fn
		}
		return goja.Undefined()
	}
	return vm.ToValue(v)
}
