package scene

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/joeycumines/goja-scene/internal/host"
)

// QueryEnv is the environment a query predicate is evaluated against, one
// object at a time.
type QueryEnv struct {
	ID     uint64         `expr:"id"`
	Kind   string         `expr:"kind"`
	Name   string         `expr:"name"`
	Active bool           `expr:"active"`
	Depth  int            `expr:"depth"`
	Props  map[string]any `expr:"props"`
	// Children is the number of direct children.
	Children int `expr:"children"`
}

// Query is a compiled object predicate, for example
//
//	kind == "text" && props.text contains "hello"
type Query struct {
	source  string
	program *vm.Program
}

// CompileQuery compiles a boolean expr-lang predicate over [QueryEnv].
func CompileQuery(source string) (*Query, error) {
	program, err := expr.Compile(source,
		expr.Env(QueryEnv{}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile query %q: %w", source, err)
	}
	return &Query{source: source, program: program}, nil
}

func (q *Query) String() string { return q.source }

// Match evaluates the predicate for one object.
func (q *Query) Match(o Object, depth int) (bool, error) {
	env := QueryEnv{
		ID:       uint64(o.ID),
		Kind:     o.Kind,
		Name:     o.Name,
		Active:   o.Active,
		Depth:    depth,
		Props:    queryProps(o.Props),
		Children: len(o.Children),
	}
	out, err := expr.Run(q.program, env)
	if err != nil {
		return false, fmt.Errorf("run query %q on %s: %w", q.source, o.ID, err)
	}
	b, _ := out.(bool)
	return b, nil
}

// queryProps flattens typed values into maps so that predicates can write
// props.position.x.
func queryProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		switch x := v.(type) {
		case Vec2:
			out[k] = map[string]any{"x": x.X, "y": x.Y}
		case Vec3:
			out[k] = map[string]any{"x": x.X, "y": x.Y, "z": x.Z}
		case Color:
			out[k] = map[string]any{"r": x.R, "g": x.G, "b": x.B, "a": x.A}
		case Callback:
			out[k] = true
		default:
			out[k] = v
		}
	}
	return out
}

// Select returns every object under the root that matches q, in walk order.
// The first evaluation error stops the walk.
func (g *Graph) Select(q *Query) ([]host.Handle, error) {
	var (
		out []host.Handle
		err error
	)
	g.Walk(func(o Object, depth int) bool {
		if err != nil {
			return false
		}
		var ok bool
		ok, err = q.Match(o, depth)
		if ok {
			out = append(out, o.ID)
		}
		return err == nil
	})
	return out, err
}
