package vdom

import (
	"fmt"
	"log/slog"
	"math/big"
	"strconv"

	"github.com/dop251/goja"
)

// FragmentType is the reserved type tag of an explicit fragment description,
// exported to scripts as Fragment.
const FragmentType = "#fragment"

// MaxDepth bounds the nesting of a single description.
const MaxDepth = 512

// Resolver maps a string type tag to a registered component reference.
type Resolver func(tag string) (goja.Value, bool)

// Builder converts raw script descriptions into virtual nodes.
//
// Malformed descriptions never abort a build: the offending subtree yields
// no node, a warning is logged, and siblings are unaffected.
type Builder struct {
	vm      *goja.Runtime
	logger  *slog.Logger
	resolve Resolver
}

// NewBuilder returns a builder for values owned by vm. The resolver may be
// nil; logger nil means slog.Default().
func NewBuilder(vm *goja.Runtime, resolve Resolver, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{vm: vm, logger: logger, resolve: resolve}
}

// Build converts a description into a node tree. It returns nil for null,
// undefined, and anything it cannot classify.
func (b *Builder) Build(v goja.Value) (node *Node) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("dropping description: script error while reading it", slog.String("error", fmt.Sprint(r)))
			node = nil
		}
	}()
	w := walk{Builder: b, path: make(map[*goja.Object]struct{})}
	return w.build(v)
}

// walk is the state of one Build call. path holds the objects between the
// description root and the value being built.
type walk struct {
	*Builder
	path map[*goja.Object]struct{}
}

// enter records obj on the current path, refusing cycles and excessive
// nesting. The returned func pops it again.
func (w walk) enter(obj *goja.Object) (func(), bool) {
	if _, ok := w.path[obj]; ok {
		w.logger.Warn("dropping description: it contains itself")
		return nil, false
	}
	if len(w.path) >= MaxDepth {
		w.logger.Warn("dropping description: nested too deeply", slog.Int("max", MaxDepth))
		return nil, false
	}
	w.path[obj] = struct{}{}
	return func() { delete(w.path, obj) }, true
}

func (w walk) build(v goja.Value) *Node {
	b := w.Builder
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if _, ok := v.(*goja.Symbol); ok {
		b.logger.Warn("dropping description: symbols cannot be rendered")
		return nil
	}

	obj, isObj := v.(*goja.Object)
	if isObj {
		leave, ok := w.enter(obj)
		if !ok {
			return nil
		}
		defer leave()
	} else {
		switch x := v.Export().(type) {
		case string:
			return &Node{Kind: KindText, Text: x}
		case int64, float64, bool, *big.Int:
			return &Node{Kind: KindText, Text: v.String()}
		default:
			b.logger.Warn("dropping description: unsupported primitive", slog.String("value", v.String()))
			return nil
		}
	}

	if obj.ClassName() == "Array" {
		n := &Node{Kind: KindFragment}
		w.appendChildren(n, obj)
		return n
	}

	if _, callable := goja.AssertFunction(obj); callable {
		b.logger.Warn("dropping description: a component reference is not a description, wrap it in {type, props}")
		return nil
	}

	typ := obj.Get("type")
	if typ == nil || goja.IsUndefined(typ) || goja.IsNull(typ) {
		b.logger.Warn("dropping description: missing type")
		return nil
	}

	n := &Node{}
	switch t := typ.(type) {
	case *goja.Object:
		n.Kind = KindComponent
		n.Type = t
		n.Tag = ComponentName(t)
	default:
		tag := typ.String()
		switch {
		case tag == "":
			b.logger.Warn("dropping description: empty type")
			return nil
		case tag == FragmentType:
			n.Kind = KindFragment
		default:
			if b.resolve != nil {
				if ref, ok := b.resolve(tag); ok {
					n.Kind = KindComponent
					n.Type = ref
					n.Tag = tag
					break
				}
			}
			n.Kind = KindHost
			n.Tag = tag
		}
	}

	if key := obj.Get("key"); key != nil && !goja.IsUndefined(key) && !goja.IsNull(key) {
		n.Key = key.String()
	}

	if props := obj.Get("props"); props != nil && !goja.IsUndefined(props) && !goja.IsNull(props) {
		if pobj, ok := props.(*goja.Object); ok {
			n.RawProps = pobj
			for _, name := range pobj.Keys() {
				switch name {
				case "children":
				case "key":
					if n.Key == "" {
						if kv := pobj.Get(name); kv != nil && !goja.IsUndefined(kv) && !goja.IsNull(kv) {
							n.Key = kv.String()
						}
					}
				default:
					n.Props = append(n.Props, Prop{Name: name, Value: pobj.Get(name)})
				}
			}
			w.appendChildren(n, pobj.Get("children"))
		} else {
			b.logger.Warn("ignoring non-object props", slog.String("type", n.Tag))
		}
	}

	w.appendChildren(n, obj.Get("children"))

	if n.Kind == KindFragment {
		n.Props = nil
	}
	return n
}

// appendChildren expands a children value (single description or sequence)
// into n.Children, skipping entries that build to nothing.
func (w walk) appendChildren(n *Node, children goja.Value) {
	if children == nil || goja.IsUndefined(children) || goja.IsNull(children) {
		return
	}
	if arr, ok := children.(*goja.Object); ok && arr.ClassName() == "Array" {
		length := int(arr.Get("length").ToInteger())
		for i := 0; i < length; i++ {
			if c := w.build(arr.Get(strconv.Itoa(i))); c != nil {
				n.Children = append(n.Children, c)
			}
		}
		return
	}
	if c := w.build(children); c != nil {
		n.Children = append(n.Children, c)
	}
}

// ComponentName returns a display name for a component reference.
func ComponentName(ref *goja.Object) string {
	for _, prop := range [...]string{"displayName", "name"} {
		if v := ref.Get(prop); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			if s := v.String(); s != "" {
				return s
			}
		}
	}
	return "Anonymous"
}
