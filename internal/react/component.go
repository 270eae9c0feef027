package react

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/vdom"
)

// Phase is the lifecycle position of a component instance.
type Phase uint8

const (
	PhaseCreated Phase = iota
	PhaseMounting
	PhaseMounted
	PhaseUpdating
	PhaseUpdated
	PhaseUnmounting
	PhaseUnmounted
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "Created"
	case PhaseMounting:
		return "Mounting"
	case PhaseMounted:
		return "Mounted"
	case PhaseUpdating:
		return "Updating"
	case PhaseUpdated:
		return "Updated"
	case PhaseUnmounting:
		return "Unmounting"
	case PhaseUnmounted:
		return "Unmounted"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// resting reports whether p is a phase in which an instance may be
// scheduled for re-render.
func (p Phase) resting() bool { return p == PhaseMounted || p == PhaseUpdated }

type definitionKind uint8

const (
	defFunction definitionKind = iota // render(props, hooks)
	defClass                          // class with a render method
	defObject                         // {render, constructor?, componentDidMount?, ...}
)

type definition struct {
	kind   definitionKind
	ref    *goja.Object
	render goja.Callable
	ctor   goja.Callable
}

// Instance is the runtime state of one mounted component.
type Instance struct {
	id    string
	name  string
	def   *definition
	phase Phase
	depth int

	props  goja.Value
	state  goja.Value
	object *goja.Object
	// queued accumulates setState partials until the next commit; state
	// stays the committed value until then.
	queued goja.Value

	handle   host.Handle
	rendered *vdom.Node
	hooks    *hookTable

	// mounted is set once the first render completed, and cleared on
	// teardown.
	mounted bool
	// pending is set while the instance sits in the scheduler queue, and
	// cleared by any render.
	pending bool
	// forced bypasses shouldComponentUpdate for the next update.
	forced bool
	// callbacks are setState completion callbacks, run after the next commit.
	callbacks []goja.Callable
}

func (i *Instance) ID() string { return i.id }

func (i *Instance) Name() string { return i.name }

func (i *Instance) Phase() Phase { return i.phase }

// Depth is 1 for a component rendered directly by a root, and one more
// than its owner otherwise.
func (i *Instance) Depth() int { return i.depth }

func (i *Instance) Props() goja.Value { return i.props }

// State is the state object of a stateful component, nil otherwise.
func (i *Instance) State() goja.Value { return i.state }

// Handle is the component wrapper object.
func (i *Instance) Handle() host.Handle { return i.handle }

func (i *Instance) Rendered() *vdom.Node { return i.rendered }

func (i *Instance) stateful() bool { return i.def.kind != defFunction }

func (i *Instance) attrs() []any {
	return []any{slog.String("component", i.name), slog.String("instance", i.id)}
}

func (i *Instance) logError(l *slog.Logger, msg string, err error) {
	l.Error(msg, append(i.attrs(), slog.Any("error", err))...)
}

// updateResult is what an accepted update produced.
type updateResult struct {
	tree      *vdom.Node
	rendered  bool
	prevProps goja.Value
	prevState goja.Value
}

// components is the component runtime: it owns instances, drives their
// lifecycle and invokes script code. It never touches the host.
type components struct {
	vm        *goja.Runtime
	builder   *vdom.Builder
	logger    *slog.Logger
	observer  Observer
	scheduler *Scheduler

	instances map[string]*Instance
	defs      map[*goja.Object]*definition
}

func newComponents(vm *goja.Runtime, builder *vdom.Builder, logger *slog.Logger, observer Observer, scheduler *Scheduler) *components {
	return &components{
		vm:        vm,
		builder:   builder,
		logger:    logger,
		observer:  observer,
		scheduler: scheduler,
		instances: make(map[string]*Instance),
		defs:      make(map[*goja.Object]*definition),
	}
}

func (c *components) lookup(id string) *Instance {
	if id == "" {
		return nil
	}
	return c.instances[id]
}

func (c *components) resolve(ref goja.Value) (*definition, error) {
	obj, ok := ref.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidComponent, ref)
	}
	if d := c.defs[obj]; d != nil {
		return d, nil
	}
	d := &definition{ref: obj}
	if fn, ok := goja.AssertFunction(obj); ok {
		d.kind, d.render = defFunction, fn
		if proto, ok := obj.Get("prototype").(*goja.Object); ok {
			if _, ok := goja.AssertFunction(proto.Get("render")); ok {
				d.kind, d.render = defClass, nil
			}
		}
	} else {
		render, ok := goja.AssertFunction(obj.Get("render"))
		if !ok {
			return nil, fmt.Errorf("%w: definition object has no render function", ErrInvalidComponent)
		}
		d.kind, d.render = defObject, render
		if slices.Contains(obj.Keys(), "constructor") {
			d.ctor, _ = goja.AssertFunction(obj.Get("constructor"))
		}
	}
	c.defs[obj] = d
	return d, nil
}

// create instantiates the component described by n. It returns nil if the
// reference is invalid or construction threw; the node then renders nothing.
func (c *components) create(n *vdom.Node, handle host.Handle, owner *Instance) *Instance {
	def, err := c.resolve(n.Type)
	if err != nil {
		c.logger.Warn("cannot mount component", slog.String("component", n.Tag), slog.Any("error", err))
		return nil
	}
	inst := &Instance{
		id:     uuid.NewString(),
		name:   n.Tag,
		def:    def,
		phase:  PhaseCreated,
		depth:  1,
		props:  c.propsOf(n),
		handle: handle,
		hooks:  &hookTable{},
	}
	if owner != nil {
		inst.depth = owner.depth + 1
	}
	if inst.stateful() {
		if err := c.construct(inst); err != nil {
			inst.logError(c.logger, "component constructor failed", err)
			return nil
		}
	}
	c.instances[inst.id] = inst
	return inst
}

func (c *components) propsOf(n *vdom.Node) goja.Value {
	if n.RawProps != nil {
		return n.RawProps
	}
	return c.vm.NewObject()
}

func (c *components) construct(inst *Instance) error {
	var obj *goja.Object
	switch {
	case inst.def.kind == defClass:
		o, err := c.vm.New(inst.def.ref, inst.props)
		if err != nil {
			return err
		}
		obj = o
	case inst.def.ctor != nil:
		v, err := inst.def.ctor(goja.Undefined(), inst.props)
		if err != nil {
			return err
		}
		if o, ok := v.(*goja.Object); ok {
			obj = o
		}
	}
	if obj == nil {
		obj = c.vm.NewObject()
	}
	inst.object = obj

	if err := obj.Set("props", inst.props); err != nil {
		return err
	}
	state := obj.Get("state")
	if state == nil || goja.IsUndefined(state) || goja.IsNull(state) {
		state = c.vm.NewObject()
		if err := obj.Set("state", state); err != nil {
			return err
		}
	}
	inst.state = state
	if _, ok := goja.AssertFunction(obj.Get("setState")); !ok {
		if err := obj.Set("setState", c.setState(inst)); err != nil {
			return err
		}
	}
	if _, ok := goja.AssertFunction(obj.Get("forceUpdate")); !ok {
		if err := obj.Set("forceUpdate", c.forceUpdate(inst)); err != nil {
			return err
		}
	}
	return nil
}

// method finds a lifecycle method on the instance object, falling back to
// the definition object.
func (c *components) method(inst *Instance, name string) goja.Callable {
	if inst.object != nil {
		if fn, ok := goja.AssertFunction(inst.object.Get(name)); ok {
			return fn
		}
	}
	if inst.def.kind == defObject {
		if fn, ok := goja.AssertFunction(inst.def.ref.Get(name)); ok {
			return fn
		}
	}
	return nil
}

// call invokes an optional lifecycle method, logging any failure.
func (c *components) call(inst *Instance, name string, args ...goja.Value) (goja.Value, bool) {
	fn := c.method(inst, name)
	if fn == nil {
		return nil, false
	}
	v, err := fn(inst.object, args...)
	if err != nil {
		inst.logError(c.logger, name+" failed", err)
		return nil, false
	}
	return v, true
}

func (c *components) setState(inst *Instance) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if inst.phase == PhaseUnmounted {
			c.logger.Debug("setState on unmounted component ignored", inst.attrs()...)
			return goja.Undefined()
		}
		partial := call.Argument(0)
		if fn, ok := goja.AssertFunction(partial); ok {
			v, err := fn(inst.object, c.pendingState(inst), inst.props)
			if err != nil {
				rethrow(c.vm, err)
			}
			partial = v
		}
		inst.queued = c.merge(c.pendingState(inst), partial)
		if cb, ok := goja.AssertFunction(call.Argument(1)); ok {
			inst.callbacks = append(inst.callbacks, cb)
		}
		c.scheduler.Enqueue(inst)
		return goja.Undefined()
	}
}

func (c *components) forceUpdate(inst *Instance) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if inst.phase != PhaseUnmounted {
			inst.forced = true
			c.scheduler.Enqueue(inst)
		}
		return goja.Undefined()
	}
}

// merge returns a new object holding base's own properties overlaid with
// partial's. Null and undefined partials return base unchanged.
func (c *components) merge(base, partial goja.Value) goja.Value {
	p, ok := partial.(*goja.Object)
	if !ok {
		return base
	}
	out := c.vm.NewObject()
	if b, ok := base.(*goja.Object); ok {
		for _, k := range b.Keys() {
			_ = out.Set(k, b.Get(k))
		}
	}
	for _, k := range p.Keys() {
		_ = out.Set(k, p.Get(k))
	}
	return out
}

// pendingState is the state the next commit starts from.
func (c *components) pendingState(inst *Instance) goja.Value {
	if inst.queued != nil {
		return inst.queued
	}
	return inst.state
}

// takeState returns the pending state and clears the queue.
func (c *components) takeState(inst *Instance) goja.Value {
	state := c.pendingState(inst)
	inst.queued = nil
	return state
}

// deriveState applies getDerivedStateFromProps, if the definition has one.
func (c *components) deriveState(inst *Instance, props, state goja.Value) goja.Value {
	fn, ok := goja.AssertFunction(inst.def.ref.Get("getDerivedStateFromProps"))
	if !ok {
		return state
	}
	v, err := fn(inst.def.ref, props, state)
	if err != nil {
		inst.logError(c.logger, "getDerivedStateFromProps failed", err)
		return state
	}
	return c.merge(state, v)
}

func (c *components) commitState(inst *Instance, props, state goja.Value) {
	inst.props, inst.state = props, state
	if inst.object != nil {
		_ = inst.object.Set("props", props)
		_ = inst.object.Set("state", state)
	}
}

// render invokes the component's render and builds the result.
func (c *components) render(inst *Instance) (*vdom.Node, error) {
	start := time.Now()
	inst.pending = false

	var (
		out goja.Value
		err error
	)
	if inst.stateful() {
		fn := c.method(inst, "render")
		if fn == nil {
			err = fmt.Errorf("%w: %s has no render method", ErrInvalidComponent, inst.name)
		} else {
			out, err = fn(inst.object)
		}
	} else {
		ctx := newRenderContext(c, inst)
		out, err = inst.def.render(goja.Undefined(), inst.props, ctx.object)
		ctx.close()
		if err == nil {
			err = ctx.commit()
		}
		if err != nil {
			ctx.discard()
		}
	}

	c.observer.Rendered(inst.name, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return c.builder.Build(out), nil
}

// mount renders a freshly created instance. The caller mounts the returned
// tree and then calls didMount.
func (c *components) mount(inst *Instance) *vdom.Node {
	inst.phase = PhaseMounting
	if inst.stateful() {
		c.commitState(inst, inst.props, c.deriveState(inst, inst.props, c.takeState(inst)))
	}
	tree, err := c.render(inst)
	if err != nil {
		inst.logError(c.logger, "component render failed", err)
		tree = nil
	}
	inst.phase = PhaseMounted
	inst.mounted = true
	return tree
}

func (c *components) didMount(inst *Instance) {
	if inst.stateful() {
		c.call(inst, "componentDidMount")
	}
	c.runEffects(inst)
	c.runCallbacks(inst)
}

// update re-renders inst with nextProps (nil keeps the current props). The
// result reports rendered=false if the update was skipped or render failed,
// in which case the previous rendered tree stays in place.
func (c *components) update(inst *Instance, nextProps goja.Value) updateResult {
	if !inst.mounted {
		return updateResult{}
	}
	if nextProps == nil {
		nextProps = inst.props
	}
	prev := inst.phase
	res := updateResult{prevProps: inst.props, prevState: inst.state}
	inst.phase = PhaseUpdating

	if inst.stateful() {
		nextState := c.deriveState(inst, nextProps, c.takeState(inst))
		should := true
		if !inst.forced {
			if v, ok := c.call(inst, "shouldComponentUpdate", nextProps, nextState); ok {
				should = v.ToBoolean()
			}
		}
		inst.forced = false
		c.commitState(inst, nextProps, nextState)
		if !should {
			inst.pending = false
			inst.phase = prev
			c.runCallbacks(inst)
			return updateResult{}
		}
	} else {
		inst.props = nextProps
	}

	tree, err := c.render(inst)
	if err != nil {
		inst.logError(c.logger, "component render failed, keeping previous output", err)
		inst.phase = prev
		return updateResult{}
	}
	res.tree, res.rendered = tree, true
	return res
}

func (c *components) didUpdate(inst *Instance, res updateResult) {
	inst.phase = PhaseUpdated
	if inst.stateful() {
		c.call(inst, "componentDidUpdate", res.prevProps, res.prevState)
	}
	c.runEffects(inst)
	c.runCallbacks(inst)
}

func (c *components) runCallbacks(inst *Instance) {
	cbs := inst.callbacks
	inst.callbacks = nil
	for _, cb := range cbs {
		if _, err := cb(inst.object); err != nil {
			inst.logError(c.logger, "setState callback failed", err)
		}
	}
}

// unmount tears the instance down. The caller has already unmounted the
// rendered tree.
func (c *components) unmount(inst *Instance) {
	inst.phase = PhaseUnmounting
	if inst.stateful() {
		c.call(inst, "componentWillUnmount")
	}
	c.releaseHooks(inst)
	inst.phase = PhaseUnmounted
	inst.mounted = false
	inst.pending = false
	inst.rendered = nil
	inst.callbacks = nil
	inst.queued = nil
	inst.forced = false
	delete(c.instances, inst.id)
}

// rethrow re-raises err inside a native function so that script code sees
// the original exception.
func rethrow(vm *goja.Runtime, err error) {
	if ex, ok := err.(*goja.Exception); ok {
		panic(ex)
	}
	panic(vm.NewGoError(err))
}
