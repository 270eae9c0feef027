// Package scene is an in-memory retained-mode scene graph: the host object
// system the reconciler renders into.
//
// A [Graph] owns objects identified by [host.Handle]. Each object has a kind,
// a name, an active flag, a parent, ordered children and a property map.
// Property writes go through a closed per-kind registry of typed setters
// ([Kind]); names the registry does not know are stored best-effort.
//
// Graph is safe for concurrent use: the script loop mutates it while a
// viewer renders it.
package scene

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/joeycumines/goja-scene/internal/host"
)

// ErrUnknownHandle reports a handle that does not name a live object.
var ErrUnknownHandle = errors.New("scene: unknown handle")

// ErrUnknownKind reports a Create call for a kind that was never registered.
var ErrUnknownKind = errors.New("scene: unknown kind")

type object struct {
	id       host.Handle
	kind     string
	name     string
	active   bool
	parent   host.Handle
	children []host.Handle
	props    map[string]any
}

// Object is a point-in-time copy of one scene object.
type Object struct {
	ID       host.Handle
	Kind     string
	Name     string
	Active   bool
	Parent   host.Handle
	Children []host.Handle
	Props    map[string]any
}

// Graph is the scene. The zero value is not usable; see [New].
type Graph struct {
	mu      sync.RWMutex
	objects map[host.Handle]*object
	kinds   map[string]*Kind
	root    host.Handle
	next    host.Handle
	// strict rejects kinds that were not registered.
	strict bool
	version uint64
}

// Option configures a Graph.
type Option func(*Graph)

// WithKinds registers additional kinds (or replaces built-in ones).
func WithKinds(kinds ...Kind) Option {
	return func(g *Graph) {
		for i := range kinds {
			k := kinds[i]
			g.kinds[k.Name] = &k
		}
	}
}

// WithStrictKinds makes Create fail for unregistered kinds instead of
// creating an untyped object.
func WithStrictKinds() Option {
	return func(g *Graph) { g.strict = true }
}

// New returns a graph holding a single active root object named "root".
func New(opts ...Option) *Graph {
	g := &Graph{
		objects: make(map[host.Handle]*object),
		kinds:   make(map[string]*Kind),
	}
	for _, k := range DefaultKinds() {
		g.kinds[k.Name] = &k
	}
	for _, opt := range opts {
		opt(g)
	}
	g.root = g.alloc(host.RootKind)
	r := g.objects[g.root]
	r.name = "root"
	r.active = true
	return g
}

func (g *Graph) alloc(kind string) host.Handle {
	g.next++
	g.objects[g.next] = &object{id: g.next, kind: kind, props: make(map[string]any)}
	g.version++
	return g.next
}

func (g *Graph) get(h host.Handle) (*object, error) {
	o, ok := g.objects[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return o, nil
}

// Root returns the scene root.
func (g *Graph) Root() host.Handle { return g.root }

// Version increases on every mutation.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// Len returns the number of live objects, including the root.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

// Create makes a new, inactive, detached object of the given kind.
func (g *Graph) Create(kind string) (host.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.kinds[kind]; !ok && g.strict {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return g.alloc(kind), nil
}

// Destroy removes an object and, recursively, anything still attached to it.
// The root cannot be destroyed.
func (g *Graph) Destroy(h host.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, err := g.get(h)
	if err != nil {
		return err
	}
	if h == g.root {
		return fmt.Errorf("scene: cannot destroy the root")
	}
	g.detach(o)
	g.destroy(o)
	g.version++
	return nil
}

func (g *Graph) destroy(o *object) {
	for _, c := range o.children {
		if child, ok := g.objects[c]; ok {
			g.destroy(child)
		}
	}
	delete(g.objects, o.id)
}

func (g *Graph) detach(o *object) {
	if p, ok := g.objects[o.parent]; ok {
		p.children = slices.DeleteFunc(p.children, func(c host.Handle) bool { return c == o.id })
	}
	o.parent = 0
}

// SetProperty applies a typed property. name and active are routed to the
// object's own fields.
func (g *Graph) SetProperty(h host.Handle, name string, value any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, err := g.get(h)
	if err != nil {
		return err
	}
	switch name {
	case host.NameProperty:
		s, err := coerce(TypeString, value)
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", h, name, err)
		}
		o.name = s.(string)
	case host.ActiveProperty:
		b, err := coerce(TypeBool, value)
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", h, name, err)
		}
		o.active = b.(bool)
	default:
		if value == nil {
			delete(o.props, name)
			break
		}
		v, err := coerce(g.kinds[o.kind].lookupType(name), value)
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", h, name, err)
		}
		o.props[name] = v
	}
	g.version++
	return nil
}

// ClearProperty resets a property to its null value.
func (g *Graph) ClearProperty(h host.Handle, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, err := g.get(h)
	if err != nil {
		return err
	}
	switch name {
	case host.NameProperty:
		o.name = ""
	case host.ActiveProperty:
		o.active = true
	default:
		delete(o.props, name)
	}
	g.version++
	return nil
}

// Reparent moves child to the end of parent's children.
func (g *Graph) Reparent(child, parent host.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, err := g.get(child)
	if err != nil {
		return err
	}
	p, err := g.get(parent)
	if err != nil {
		return err
	}
	for a := p; a != nil; a = g.objects[a.parent] {
		if a.id == c.id {
			return fmt.Errorf("scene: reparenting %s under %s would create a cycle", child, parent)
		}
	}
	g.detach(c)
	c.parent = parent
	p.children = append(p.children, child)
	g.version++
	return nil
}

func (g *Graph) SetActive(h host.Handle, active bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, err := g.get(h)
	if err != nil {
		return err
	}
	o.active = active
	g.version++
	return nil
}

// Order rearranges the listed children of parent into the given relative
// order, within the positions they already occupy. Handles that are not
// children of parent are ignored.
func (g *Graph) Order(parent host.Handle, children []host.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, err := g.get(parent)
	if err != nil {
		return err
	}
	want := make(map[host.Handle]struct{}, len(children))
	for _, c := range children {
		want[c] = struct{}{}
	}
	var slots []int
	for i, c := range p.children {
		if _, ok := want[c]; ok {
			slots = append(slots, i)
		}
	}
	ordered := slices.DeleteFunc(slices.Clone(children), func(c host.Handle) bool {
		o, ok := g.objects[c]
		return !ok || o.parent != parent
	})
	if len(ordered) != len(slots) {
		return fmt.Errorf("scene: order of %s: %d listed children, %d found", parent, len(ordered), len(slots))
	}
	changed := false
	for i, slot := range slots {
		if p.children[slot] != ordered[i] {
			p.children[slot] = ordered[i]
			changed = true
		}
	}
	if changed {
		g.version++
	}
	return nil
}

// Lookup returns a copy of the object behind h.
func (g *Graph) Lookup(h host.Handle) (Object, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.objects[h]
	if !ok {
		return Object{}, false
	}
	return o.export(), true
}

func (o *object) export() Object {
	return Object{
		ID:       o.id,
		Kind:     o.kind,
		Name:     o.name,
		Active:   o.active,
		Parent:   o.parent,
		Children: slices.Clone(o.children),
		Props:    maps.Clone(o.props),
	}
}

// Property returns a single property value.
func (g *Graph) Property(h host.Handle, name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.objects[h]
	if !ok {
		return nil, false
	}
	switch name {
	case host.NameProperty:
		return o.name, true
	case host.ActiveProperty:
		return o.active, true
	}
	v, ok := o.props[name]
	return v, ok
}

// Callback returns the script function stored under name, if any.
func (g *Graph) Callback(h host.Handle, name string) (any, bool) {
	v, ok := g.Property(h, name)
	if !ok {
		return nil, false
	}
	cb, ok := v.(Callback)
	if !ok {
		return nil, false
	}
	return cb.Fn, true
}

// Find returns the first object named name, in depth-first order from the
// root.
func (g *Graph) Find(name string) (host.Handle, bool) {
	var found host.Handle
	g.Walk(func(o Object, _ int) bool {
		if found == 0 && o.Name == name {
			found = o.ID
		}
		return found == 0
	})
	return found, found != 0
}

// Walk visits every object attached to the root, depth-first, parents
// before children. Returning false from fn skips the object's children.
func (g *Graph) Walk(fn func(o Object, depth int) bool) {
	g.WalkFrom(g.root, fn)
}

// WalkFrom is Walk starting at h.
func (g *Graph) WalkFrom(h host.Handle, fn func(o Object, depth int) bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.walk(h, 0, fn)
}

func (g *Graph) walk(h host.Handle, depth int, fn func(Object, int) bool) {
	o, ok := g.objects[h]
	if !ok {
		return
	}
	if !fn(o.export(), depth) {
		return
	}
	for _, c := range o.children {
		g.walk(c, depth+1, fn)
	}
}

// ActiveInHierarchy reports whether h and all its ancestors are active.
func (g *Graph) ActiveInHierarchy(h host.Handle) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for {
		o, ok := g.objects[h]
		if !ok || !o.active {
			return false
		}
		if o.parent == 0 {
			return true
		}
		h = o.parent
	}
}
