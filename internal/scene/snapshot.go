package scene

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/vmihailenco/msgpack/v5"
)

// Node is the serializable form of one object and its subtree.
type Node struct {
	ID       uint64         `json:"id" msgpack:"id"`
	Kind     string         `json:"kind" msgpack:"kind"`
	Name     string         `json:"name,omitempty" msgpack:"name,omitempty"`
	Active   bool           `json:"active" msgpack:"active"`
	Props    map[string]any `json:"props,omitempty" msgpack:"props,omitempty"`
	Children []*Node        `json:"children,omitempty" msgpack:"children,omitempty"`
}

// Snapshot captures the subtree under the root. Callback properties are
// reduced to a marker, since script functions are not serializable.
func (g *Graph) Snapshot() *Node {
	return g.SnapshotFrom(g.root)
}

// SnapshotFrom captures the subtree under h, or returns nil if h is unknown.
func (g *Graph) SnapshotFrom(h host.Handle) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot(h)
}

func (g *Graph) snapshot(h host.Handle) *Node {
	o, ok := g.objects[h]
	if !ok {
		return nil
	}
	n := &Node{
		ID:     uint64(o.id),
		Kind:   o.kind,
		Name:   o.name,
		Active: o.active,
	}
	if len(o.props) != 0 {
		n.Props = make(map[string]any, len(o.props))
		for k, v := range o.props {
			if _, ok := v.(Callback); ok {
				v = "<callback>"
			}
			n.Props[k] = v
		}
	}
	for _, c := range o.children {
		if child := g.snapshot(c); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

// Count returns the number of nodes in the subtree.
func (n *Node) Count() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Format names a snapshot encoding.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatMsgpack:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or msgpack)", s)
}

// Encode writes the snapshot in a machine-readable format.
func (n *Node) Encode(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(n)
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		return enc.Encode(n)
	}
	return fmt.Errorf("snapshot: cannot encode as %q", f)
}

// DecodeMsgpack reads a snapshot written with FormatMsgpack.
func DecodeMsgpack(r io.Reader) (*Node, error) {
	var n Node
	if err := msgpack.NewDecoder(r).Decode(&n); err != nil {
		return nil, err
	}
	return &n, nil
}

// propNames returns the property names in sorted order.
func propNames(props map[string]any) []string {
	return slices.Sorted(maps.Keys(props))
}
