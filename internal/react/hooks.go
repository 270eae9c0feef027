package react

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-scene/internal/vdom"
)

type hookKind uint8

const (
	hookState hookKind = iota + 1
	hookEffect
)

func (k hookKind) String() string {
	switch k {
	case hookState:
		return "useState"
	case hookEffect:
		return "useEffect"
	default:
		return "unknown"
	}
}

type hookSlot struct {
	kind hookKind

	// useState
	value  goja.Value
	setter goja.Value

	// useEffect, as of the last commit
	deps    []goja.Value
	hasDeps bool
	ran     bool
	cleanup goja.Callable
}

type pendingEffect struct {
	slot    *hookSlot
	effect  goja.Callable
	deps    []goja.Value
	hasDeps bool
}

// hookTable is the ordered slot list of one function component instance.
// The slot layout is fixed by the first successful render; later renders
// must call the same hooks in the same order.
type hookTable struct {
	slots   []*hookSlot
	sealed  bool
	pending []pendingEffect
}

// renderContext is the hooks object handed to a single render call. It
// is invalidated when render returns.
type renderContext struct {
	c       *components
	inst    *Instance
	table   *hookTable
	index   int
	closed  bool
	err     error
	effects []pendingEffect
	object  *goja.Object
}

func newRenderContext(c *components, inst *Instance) *renderContext {
	ctx := &renderContext{c: c, inst: inst, table: inst.hooks}
	obj := c.vm.NewObject()
	_ = obj.Set("useState", ctx.useState)
	_ = obj.Set("useEffect", ctx.useEffect)
	ctx.object = obj
	return ctx
}

func (ctx *renderContext) close() { ctx.closed = true }

// commit validates the hook count and stages effects for the commit phase.
func (ctx *renderContext) commit() error {
	if ctx.err != nil {
		return ctx.err
	}
	if ctx.table.sealed && ctx.index != len(ctx.table.slots) {
		return fmt.Errorf("%w: %s called %d hooks, previously %d", ErrHookOrder, ctx.inst.name, ctx.index, len(ctx.table.slots))
	}
	ctx.table.sealed = true
	ctx.table.pending = ctx.effects
	return nil
}

// discard drops the effects of a failed render. A failed first render also
// forgets the slots it allocated.
func (ctx *renderContext) discard() {
	ctx.effects = nil
	if !ctx.table.sealed {
		ctx.table.slots = nil
	}
}

func (ctx *renderContext) fail(err error) {
	if ctx.err == nil {
		ctx.err = err
	}
	panic(ctx.c.vm.NewTypeError(err.Error()))
}

func (ctx *renderContext) slot(kind hookKind) (*hookSlot, bool) {
	if ctx.closed {
		panic(ctx.c.vm.NewTypeError(fmt.Sprintf("%s: %s", ErrHookOutsideRender, kind)))
	}
	i := ctx.index
	ctx.index++
	if i < len(ctx.table.slots) {
		s := ctx.table.slots[i]
		if s.kind != kind {
			ctx.fail(fmt.Errorf("%w: %s hook #%d was %s, now %s", ErrHookOrder, ctx.inst.name, i, s.kind, kind))
		}
		return s, false
	}
	if ctx.table.sealed {
		ctx.fail(fmt.Errorf("%w: %s called more hooks than on its first render", ErrHookOrder, ctx.inst.name))
	}
	s := &hookSlot{kind: kind}
	ctx.table.slots = append(ctx.table.slots, s)
	return s, true
}

func (ctx *renderContext) useState(call goja.FunctionCall) goja.Value {
	vm := ctx.c.vm
	s, fresh := ctx.slot(hookState)
	if fresh {
		initial := call.Argument(0)
		if fn, ok := goja.AssertFunction(initial); ok {
			v, err := fn(goja.Undefined())
			if err != nil {
				rethrow(vm, err)
			}
			initial = v
		}
		s.value = initial
		s.setter = vm.ToValue(ctx.c.setter(ctx.inst, s))
	}
	return vm.NewArray(s.value, s.setter)
}

func (ctx *renderContext) useEffect(call goja.FunctionCall) goja.Value {
	effect, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(ctx.c.vm.NewTypeError("useEffect: effect is not a function"))
	}
	deps, hasDeps := ctx.c.deps(call.Argument(1))
	s, fresh := ctx.slot(hookEffect)
	if fresh || !hasDeps || !s.ran || !s.hasDeps || !vdom.SameValues(s.deps, deps) {
		ctx.effects = append(ctx.effects, pendingEffect{slot: s, effect: effect, deps: deps, hasDeps: hasDeps})
	}
	return goja.Undefined()
}

// deps snapshots a dependency list. Absent (null or undefined) lists report
// hasDeps=false; a non-array value is treated as a single dependency.
func (c *components) deps(v goja.Value) ([]goja.Value, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	arr, ok := v.(*goja.Object)
	if !ok || arr.ClassName() != "Array" {
		return []goja.Value{v}, true
	}
	n := int(arr.Get("length").ToInteger())
	out := make([]goja.Value, n)
	for i := range out {
		out[i] = arr.Get(strconv.Itoa(i))
	}
	return out, true
}

func (c *components) setter(inst *Instance, s *hookSlot) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if inst.phase == PhaseUnmounted {
			c.logger.Debug("state update on unmounted component ignored", inst.attrs()...)
			return goja.Undefined()
		}
		next := call.Argument(0)
		if fn, ok := goja.AssertFunction(next); ok {
			v, err := fn(goja.Undefined(), s.value)
			if err != nil {
				rethrow(c.vm, err)
			}
			next = v
		}
		s.value = next
		c.scheduler.Enqueue(inst)
		return goja.Undefined()
	}
}

// runEffects runs the effects staged by the last render, in slot order.
// Each effect's previous cleanup runs immediately before it.
func (c *components) runEffects(inst *Instance) {
	pending := inst.hooks.pending
	inst.hooks.pending = nil
	for _, p := range pending {
		s := p.slot
		if s.cleanup != nil {
			cleanup := s.cleanup
			s.cleanup = nil
			if _, err := cleanup(goja.Undefined()); err != nil {
				inst.logError(c.logger, "effect cleanup failed", err)
			}
		}
		s.deps, s.hasDeps, s.ran = p.deps, p.hasDeps, true
		v, err := p.effect(goja.Undefined())
		if err != nil {
			inst.logError(c.logger, "effect failed", err)
			continue
		}
		if fn, ok := goja.AssertFunction(v); ok {
			s.cleanup = fn
		}
	}
}

// releaseHooks runs every outstanding effect cleanup, in slot order.
func (c *components) releaseHooks(inst *Instance) {
	for _, s := range inst.hooks.slots {
		if s.cleanup == nil {
			continue
		}
		cleanup := s.cleanup
		s.cleanup = nil
		if _, err := cleanup(goja.Undefined()); err != nil {
			inst.logError(c.logger, "effect cleanup failed", err)
		}
	}
	inst.hooks.slots = nil
	inst.hooks.pending = nil
}
