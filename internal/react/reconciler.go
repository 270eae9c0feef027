package react

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/vdom"
)

// Options configures a [Reconciler] or [Root].
type Options struct {
	Logger   *slog.Logger
	Observer Observer
	// Resolver maps string type tags to registered components.
	Resolver vdom.Resolver
	// OnNeedsFrame is forwarded to the scheduler.
	OnNeedsFrame func()
}

// Reconciler diffs virtual trees against their previous versions and
// applies the minimal host mutations. Children are matched by position;
// keys only decide whether the node at a position is replaced.
type Reconciler struct {
	vm         *goja.Runtime
	logger     *slog.Logger
	binding    *Binding
	builder    *vdom.Builder
	components *components
	scheduler  *Scheduler

	nextID vdom.NodeID
	nodes  map[vdom.NodeID]*vdom.Node
}

// NewReconciler returns a reconciler that mutates adapter.
func NewReconciler(vm *goja.Runtime, adapter host.Adapter, opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	r := &Reconciler{
		vm:        vm,
		logger:    logger,
		binding:   NewBinding(adapter, logger, observer),
		builder:   vdom.NewBuilder(vm, opts.Resolver, logger),
		scheduler: newScheduler(),
		nodes:     make(map[vdom.NodeID]*vdom.Node),
	}
	r.scheduler.OnNeedsFrame = opts.OnNeedsFrame
	r.scheduler.rerender = r.rerender
	r.components = newComponents(vm, r.builder, logger, observer, r.scheduler)
	return r
}

func (r *Reconciler) Builder() *vdom.Builder { return r.builder }

func (r *Reconciler) Scheduler() *Scheduler { return r.scheduler }

// Instance returns a live component instance by id.
func (r *Reconciler) Instance(id string) *Instance { return r.components.lookup(id) }

// Node returns the currently mounted node with the given id.
func (r *Reconciler) Node(id vdom.NodeID) *vdom.Node { return r.nodes[id] }

// Mounted returns the number of mounted nodes.
func (r *Reconciler) Mounted() int { return len(r.nodes) }

// Reconcile brings the host under parent from oldNode's shape to newNode's.
// Either side may be nil. After it returns, newNode carries the mount
// identity (ids, handles, instances) and oldNode carries none.
func (r *Reconciler) Reconcile(newNode, oldNode *vdom.Node, parent host.Handle) {
	r.reconcile(newNode, oldNode, parent, nil)
}

func (r *Reconciler) reconcile(n, o *vdom.Node, parent host.Handle, owner *Instance) {
	switch {
	case n == nil && o == nil:
	case o == nil || !o.Mounted():
		if n != nil {
			r.mount(n, parent, owner)
		}
	case n == nil:
		r.unmount(o)
	case shouldReplace(n, o):
		r.unmount(o)
		r.mount(n, parent, owner)
	default:
		r.update(n, o, parent, owner)
	}
}

func shouldReplace(n, o *vdom.Node) bool {
	if n.Kind != o.Kind || n.Key != o.Key {
		return true
	}
	switch n.Kind {
	case vdom.KindHost:
		return n.Tag != o.Tag
	case vdom.KindComponent:
		return !vdom.SameValue(n.Type, o.Type)
	}
	return false
}

func (r *Reconciler) track(n *vdom.Node) {
	r.nextID++
	n.ID = r.nextID
	r.nodes[n.ID] = n
}

func (r *Reconciler) untrack(n *vdom.Node) {
	delete(r.nodes, n.ID)
	n.ID, n.Handle, n.Instance = 0, 0, ""
}

func (r *Reconciler) mount(n *vdom.Node, parent host.Handle, owner *Instance) {
	switch n.Kind {
	case vdom.KindText:
		h := r.binding.Create(host.TextKind)
		if !h.Valid() {
			return
		}
		r.track(n)
		n.Handle = h
		r.binding.SetText(h, n.Text)
		r.binding.Reparent(h, parent)
		r.binding.SetActive(h, true)

	case vdom.KindFragment:
		r.track(n)
		for _, c := range n.Children {
			r.mount(c, parent, owner)
		}

	case vdom.KindHost:
		h := r.binding.Create(n.Tag)
		if !h.Valid() {
			return
		}
		r.track(n)
		n.Handle = h
		r.binding.Reparent(h, parent)
		if !n.HasProp(host.ActiveProperty) {
			r.binding.SetActive(h, true)
		}
		for _, p := range n.Props {
			r.binding.SetProperty(h, p.Name, p.Value)
		}
		for _, c := range n.Children {
			r.mount(c, h, owner)
		}

	case vdom.KindComponent:
		r.mountComponent(n, parent, owner)
	}
}

func (r *Reconciler) mountComponent(n *vdom.Node, parent host.Handle, owner *Instance) {
	h := r.binding.Create(host.ComponentKind)
	if !h.Valid() {
		return
	}
	r.track(n)
	n.Handle = h
	r.binding.set(h, host.NameProperty, n.Tag)
	r.binding.Reparent(h, parent)
	if active, ok := n.Prop(host.ActiveProperty); ok {
		r.binding.SetProperty(h, host.ActiveProperty, active)
	} else {
		r.binding.SetActive(h, true)
	}

	inst := r.components.create(n, h, owner)
	if inst == nil {
		return
	}
	n.Instance = inst.id
	tree := r.components.mount(inst)
	if tree != nil {
		r.mount(tree, h, inst)
	}
	inst.rendered = tree
	r.components.didMount(inst)
}

func (r *Reconciler) update(n, o *vdom.Node, parent host.Handle, owner *Instance) {
	n.ID, n.Handle, n.Instance = o.ID, o.Handle, o.Instance
	if n != o {
		o.ID, o.Handle, o.Instance = 0, 0, ""
	}
	r.nodes[n.ID] = n

	switch n.Kind {
	case vdom.KindText:
		if n.Text != o.Text {
			r.binding.SetText(n.Handle, n.Text)
		}

	case vdom.KindFragment:
		r.reconcileChildren(n.Children, o.Children, parent, owner)

	case vdom.KindHost:
		r.diffProps(n.Handle, n.Props, o.Props)
		r.reconcileChildren(n.Children, o.Children, n.Handle, owner)
		r.syncOrder(n.Handle, n.Children)

	case vdom.KindComponent:
		r.diffActive(n, o)
		inst := r.components.lookup(n.Instance)
		if inst == nil {
			return
		}
		if vdom.SameValue(n.RawProps, o.RawProps) && !inst.pending {
			return
		}
		r.rerenderWith(inst, r.components.propsOf(n))
	}
}

// diffProps clears props that disappeared, then sets props that are new or
// whose value changed.
func (r *Reconciler) diffProps(h host.Handle, next, prev []vdom.Prop) {
	if len(prev) != 0 {
		declared := make(map[string]struct{}, len(next))
		for _, p := range next {
			declared[p.Name] = struct{}{}
		}
		for _, p := range prev {
			if _, ok := declared[p.Name]; !ok {
				r.binding.ClearProperty(h, p.Name)
			}
		}
	}
	for _, p := range next {
		if old, ok := findProp(prev, p.Name); ok && vdom.SameValue(old, p.Value) {
			continue
		}
		r.binding.SetProperty(h, p.Name, p.Value)
	}
}

// diffActive applies the only prop a component wrapper honors.
func (r *Reconciler) diffActive(n, o *vdom.Node) {
	next, hasNext := n.Prop(host.ActiveProperty)
	prev, hasPrev := o.Prop(host.ActiveProperty)
	switch {
	case hasNext && (!hasPrev || !vdom.SameValue(next, prev)):
		r.binding.SetProperty(n.Handle, host.ActiveProperty, next)
	case !hasNext && hasPrev:
		r.binding.ClearProperty(n.Handle, host.ActiveProperty)
	}
}

func findProp(props []vdom.Prop, name string) (goja.Value, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// reconcileChildren matches children by index.
func (r *Reconciler) reconcileChildren(next, prev []*vdom.Node, parent host.Handle, owner *Instance) {
	for i := 0; i < max(len(next), len(prev)); i++ {
		var n, o *vdom.Node
		if i < len(next) {
			n = next[i]
		}
		if i < len(prev) {
			o = prev[i]
		}
		r.reconcile(n, o, parent, owner)
	}
}

// syncOrder asks the host to restore the render order of the host objects
// produced by nodes, which replacements may have disturbed.
func (r *Reconciler) syncOrder(parent host.Handle, nodes []*vdom.Node) {
	if _, ok := r.binding.adapter.(host.Orderer); !ok {
		return
	}
	r.binding.Order(parent, appendHandles(nil, nodes))
}

func appendHandles(dst []host.Handle, nodes []*vdom.Node) []host.Handle {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Kind == vdom.KindFragment {
			dst = appendHandles(dst, n.Children)
			continue
		}
		if n.Handle.Valid() {
			dst = append(dst, n.Handle)
		}
	}
	return dst
}

// rerender re-renders a scheduled instance with its current props.
func (r *Reconciler) rerender(inst *Instance) {
	r.rerenderWith(inst, nil)
}

func (r *Reconciler) rerenderWith(inst *Instance, props goja.Value) {
	res := r.components.update(inst, props)
	if !res.rendered {
		return
	}
	r.reconcile(res.tree, inst.rendered, inst.handle, inst)
	inst.rendered = res.tree
	r.syncOrder(inst.handle, []*vdom.Node{res.tree})
	r.components.didUpdate(inst, res)
}

func (r *Reconciler) unmount(n *vdom.Node) {
	switch n.Kind {
	case vdom.KindFragment:
		for _, c := range n.Children {
			r.unmount(c)
		}
	case vdom.KindText:
		r.binding.Destroy(n.Handle)
	case vdom.KindHost:
		for _, c := range n.Children {
			r.unmount(c)
		}
		r.binding.Destroy(n.Handle)
	case vdom.KindComponent:
		if inst := r.components.lookup(n.Instance); inst != nil {
			if inst.rendered != nil {
				r.unmount(inst.rendered)
			}
			r.components.unmount(inst)
		}
		r.binding.Destroy(n.Handle)
	}
	r.untrack(n)
}

// Dump renders the mounted tree under n, descending into the rendered
// output of components.
func (r *Reconciler) Dump(n *vdom.Node) string {
	var b strings.Builder
	r.dump(&b, n, 0)
	return b.String()
}

func (r *Reconciler) dump(b *strings.Builder, n *vdom.Node, depth int) {
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	switch n.Kind {
	case vdom.KindText:
		fmt.Fprintf(b, "%s%q %s\n", indent, n.Text, n.Handle)
	case vdom.KindFragment:
		fmt.Fprintf(b, "%s<>\n", indent)
		for _, c := range n.Children {
			r.dump(b, c, depth+1)
		}
	case vdom.KindHost:
		fmt.Fprintf(b, "%s<%s> %s\n", indent, n.Tag, n.Handle)
		for _, c := range n.Children {
			r.dump(b, c, depth+1)
		}
	case vdom.KindComponent:
		inst := r.components.lookup(n.Instance)
		if inst == nil {
			fmt.Fprintf(b, "%s<%s/> %s (not rendered)\n", indent, n.Tag, n.Handle)
			return
		}
		fmt.Fprintf(b, "%s<%s/> %s %s\n", indent, n.Tag, n.Handle, inst.phase)
		r.dump(b, inst.rendered, depth+1)
	}
}
