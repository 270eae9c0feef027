// Package vdom is the virtual node model: the in-memory description of a UI
// tree before it is materialized against a host.
//
// Nodes are built fresh by [Builder] on every render and are discarded once
// the reconciler has diffed them. Identity that must survive across renders
// (the node id, the bound host handle, the component instance) is carried
// forward from the previous node to the new one during an update.
package vdom

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-scene/internal/host"
)

// Kind is the node type discriminator.
type Kind uint8

const (
	KindHost      Kind = iota + 1 // host element, identified by Tag
	KindComponent                 // component, identified by Type
	KindText                      // text content
	KindFragment                  // grouping without a host object
)

func (k Kind) String() string {
	switch k {
	case KindHost:
		return "Host"
	case KindComponent:
		return "Component"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	default:
		return "Unknown"
	}
}

// NodeID is the stable identity of a mounted logical node.
type NodeID uint64

// Prop is a single declared property.
type Prop struct {
	Name  string
	Value goja.Value
}

// Node is one element of the virtual tree.
type Node struct {
	Kind Kind
	// Tag is the host element name, or the display name of a component.
	Tag string
	// Type is the component reference (function, class or definition object).
	Type goja.Value
	// Text is the content of a text node.
	Text string
	Key  string
	// Props are the declared properties in declaration order, excluding
	// children and key.
	Props []Prop
	// RawProps is the script props object, handed verbatim to component
	// render functions.
	RawProps goja.Value
	Children []*Node

	// ID is assigned on first mount and carried forward on update.
	ID NodeID
	// Handle is the bound host object. A fragment never has one.
	Handle host.Handle
	// Instance is the id of the component instance backing a component node.
	Instance string
}

// Prop returns the value of the named prop.
func (n *Node) Prop(name string) (goja.Value, bool) {
	if n == nil {
		return nil, false
	}
	for _, p := range n.Props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// HasProp reports whether the named prop was declared.
func (n *Node) HasProp(name string) bool {
	_, ok := n.Prop(name)
	return ok
}

// Mounted reports whether the node currently carries mount identity.
func (n *Node) Mounted() bool {
	return n != nil && n.ID != 0
}

// Walk calls fn for n and every descendant reachable through Children, in
// depth-first pre-order. Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// String returns an indented debug rendering of the tree.
func (n *Node) String() string {
	var b strings.Builder
	n.dump(&b, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	if n == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	switch n.Kind {
	case KindText:
		fmt.Fprintf(b, "%q", n.Text)
	case KindFragment:
		b.WriteString("<>")
	case KindComponent:
		fmt.Fprintf(b, "<%s/>", n.Tag)
	default:
		fmt.Fprintf(b, "<%s>", n.Tag)
	}
	if n.Key != "" {
		fmt.Fprintf(b, " key=%s", n.Key)
	}
	for _, p := range n.Props {
		fmt.Fprintf(b, " %s=%s", p.Name, describe(p.Value))
	}
	if n.Handle.Valid() {
		fmt.Fprintf(b, " %s", n.Handle)
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		c.dump(b, depth+1)
	}
}

func describe(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if _, fn := goja.AssertFunction(obj); fn {
			return "fn"
		}
		return "{…}"
	}
	return v.String()
}
