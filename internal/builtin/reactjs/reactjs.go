// Package reactjs exposes the reconciler to scripts as the "scene:react"
// native module.
//
// # JavaScript API
//
//	const { createRoot, createElement: h, Fragment, registerComponent, flushSync } = require('scene:react');
//
//	function Counter(props, hooks) {
//	    const [n, setN] = hooks.useState(0);
//	    return h('button', { name: 'inc', onClick: () => setN(n + 1) }, props.label + n);
//	}
//	registerComponent('Counter', Counter);
//
//	const root = createRoot('hud');     // named container, found or created
//	root.render(h('Counter', { label: 'clicks: ' }));
//	root.flush();                        // run queued re-renders now
//	root.unmount();
//
// createRoot() without a container creates a fresh root object under the
// scene root. A container may also be given as a host object (anything with
// a numeric id, see "scene:host") or a raw handle.
//
// State updates only enqueue work; the queue is drained on the next loop
// turn, on every host frame, or synchronously with flushSync(fn?).
package reactjs

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/react"
	"github.com/joeycumines/goja-scene/internal/vdom"
)

// maxSyncPasses bounds flushSync when updates keep enqueueing more updates.
const maxSyncPasses = 64

// Host is the object system roots render into.
type Host interface {
	host.Adapter
	// Root is the top of the scene; new containers are attached to it.
	Root() host.Handle
	// Find returns the first object with the given name.
	Find(name string) (host.Handle, bool)
}

// Manager owns every root created by scripts of one engine, and the
// registered component table they resolve string types against. It must
// only be used from the script loop.
type Manager struct {
	host     Host
	logger   *slog.Logger
	observer react.Observer
	// requestFrame asks the owner to call Flush soon.
	requestFrame func()

	components map[string]goja.Value
	roots      []*react.Root
}

// NewManager returns a manager rendering into h. observer and requestFrame
// may be nil.
func NewManager(h Host, logger *slog.Logger, observer react.Observer, requestFrame func()) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		host:         h,
		logger:       logger,
		observer:     observer,
		requestFrame: requestFrame,
		components:   make(map[string]goja.Value),
	}
}

// Roots returns the live roots in creation order.
func (m *Manager) Roots() []*react.Root {
	return append([]*react.Root(nil), m.roots...)
}

// Register adds a named component, replacing any previous definition.
func (m *Manager) Register(name string, def goja.Value) {
	m.components[name] = def
}

func (m *Manager) resolve(tag string) (goja.Value, bool) {
	def, ok := m.components[tag]
	return def, ok
}

// NewRoot creates a root rendering into container.
func (m *Manager) NewRoot(vm *goja.Runtime, container host.Handle) *react.Root {
	root := react.NewRoot(vm, m.host, container, react.Options{
		Logger:       m.logger,
		Observer:     m.observer,
		Resolver:     m.resolve,
		OnNeedsFrame: m.requestFrame,
	})
	m.roots = append(m.roots, root)
	m.logger.Debug("root created", slog.String("root", root.ID()), slog.String("container", container.String()))
	return root
}

// track makes root live again after an unmount.
func (m *Manager) track(root *react.Root) {
	if !slices.Contains(m.roots, root) {
		m.roots = append(m.roots, root)
	}
}

// forget drops an unmounted root.
func (m *Manager) forget(root *react.Root) {
	m.roots = slices.DeleteFunc(m.roots, func(r *react.Root) bool { return r == root })
}

// Pending returns the number of instances queued across every root.
func (m *Manager) Pending() int {
	var n int
	for _, r := range m.roots {
		n += r.Reconciler().Scheduler().Pending()
	}
	return n
}

// Flush drains each root's queue once, returning how many components
// re-rendered.
func (m *Manager) Flush() int {
	var n int
	for _, r := range m.roots {
		n += r.Flush()
	}
	return n
}

// FlushSync flushes until no work is queued, within a bounded number of
// passes.
func (m *Manager) FlushSync() int {
	var total int
	for range maxSyncPasses {
		if m.Pending() == 0 {
			return total
		}
		total += m.Flush()
	}
	m.logger.Warn("flushSync gave up: updates keep scheduling updates", slog.Int("passes", maxSyncPasses))
	return total
}

// UnmountAll unmounts and forgets every root.
func (m *Manager) UnmountAll() {
	for _, r := range m.roots {
		r.Unmount()
	}
	m.roots = nil
}

// Container resolves a script container argument to a handle, creating a
// named root object when no object has that name.
func (m *Manager) Container(v goja.Value) (host.Handle, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return m.newContainer("")
	}
	switch x := v.Export().(type) {
	case string:
		if h, ok := m.host.Find(x); ok {
			return h, nil
		}
		return m.newContainer(x)
	case int64:
		return host.Handle(x), nil
	case float64:
		return host.Handle(x), nil
	}
	if obj, ok := v.(*goja.Object); ok {
		if id := obj.Get("id"); id != nil && !goja.IsUndefined(id) {
			return host.Handle(id.ToInteger()), nil
		}
	}
	return 0, fmt.Errorf("invalid container %s: want a name, a host object or a handle", v.String())
}

func (m *Manager) newContainer(name string) (host.Handle, error) {
	h, err := m.host.Create(host.RootKind)
	if err != nil {
		return 0, fmt.Errorf("create container: %w", err)
	}
	if name != "" {
		if err := m.host.SetProperty(h, host.NameProperty, name); err != nil {
			return 0, fmt.Errorf("name container: %w", err)
		}
	}
	if err := m.host.Reparent(h, m.host.Root()); err != nil {
		return 0, fmt.Errorf("attach container: %w", err)
	}
	return h, nil
}

// Require returns the "scene:react" module loader.
func Require(manager *Manager) func(runtime *goja.Runtime, module *goja.Object) {
	return func(runtime *goja.Runtime, module *goja.Object) {
		exports := runtime.NewObject()
		_ = module.Set("exports", exports)

		_ = exports.Set("Fragment", vdom.FragmentType)

		_ = exports.Set("createElement", func(call goja.FunctionCall) goja.Value {
			return createElement(runtime, call)
		})

		_ = exports.Set("createRoot", func(call goja.FunctionCall) goja.Value {
			container, err := manager.Container(call.Argument(0))
			if err != nil {
				panic(runtime.NewTypeError(err.Error()))
			}
			return manager.rootObject(runtime, manager.NewRoot(runtime, container))
		})

		_ = exports.Set("registerComponent", func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			def := call.Argument(1)
			if name == "" || !isComponent(def) {
				panic(runtime.NewTypeError("registerComponent(name, def): def must be a function or an object with render"))
			}
			manager.Register(name, def)
			return goja.Undefined()
		})

		_ = exports.Set("flushSync", func(call goja.FunctionCall) goja.Value {
			var result goja.Value = goja.Undefined()
			if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
				v, err := fn(goja.Undefined())
				if err != nil {
					panic(err)
				}
				result = v
			}
			manager.FlushSync()
			return result
		})

		_ = exports.Set("unmountAll", func(goja.FunctionCall) goja.Value {
			manager.UnmountAll()
			return goja.Undefined()
		})
	}
}

func isComponent(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	if _, ok := goja.AssertFunction(obj); ok {
		return true
	}
	_, ok = goja.AssertFunction(obj.Get("render"))
	return ok
}

// createElement(type, props, ...children) returns {type, key?, props}, with
// children folded into props the way components expect to see them.
func createElement(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
	el := vm.NewObject()
	_ = el.Set("type", call.Argument(0))

	props := vm.NewObject()
	if src, ok := call.Argument(1).(*goja.Object); ok {
		for _, k := range src.Keys() {
			if k == "key" {
				_ = el.Set("key", src.Get(k))
				continue
			}
			_ = props.Set(k, src.Get(k))
		}
	}
	switch children := call.Arguments[min(2, len(call.Arguments)):]; len(children) {
	case 0:
	case 1:
		_ = props.Set("children", children[0])
	default:
		_ = props.Set("children", vm.NewArray(toAny(children)...))
	}
	_ = el.Set("props", props)
	return el
}

func toAny(values []goja.Value) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func (m *Manager) rootObject(vm *goja.Runtime, root *react.Root) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("id", root.ID())
	_ = obj.Set("container", uint64(root.Container()))
	_ = obj.Set("render", func(call goja.FunctionCall) goja.Value {
		m.track(root)
		root.Render(call.Argument(0))
		return goja.Undefined()
	})
	_ = obj.Set("unmount", func(goja.FunctionCall) goja.Value {
		root.Unmount()
		m.forget(root)
		return goja.Undefined()
	})
	_ = obj.Set("flush", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(root.Flush())
	})
	_ = obj.Set("dump", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(root.Dump())
	})
	_ = obj.Set("mounted", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(root.Reconciler().Mounted())
	})
	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return vm.ToValue("Root(" + root.ID() + ", " + strconv.FormatUint(uint64(root.Container()), 10) + ")")
	})
	return obj
}
