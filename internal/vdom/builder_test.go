package vdom

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T, resolve Resolver) (*goja.Runtime, func(string) *Node) {
	t.Helper()
	vm := goja.New()
	b := NewBuilder(vm, resolve, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return vm, func(script string) *Node {
		t.Helper()
		v, err := vm.RunString(script)
		require.NoError(t, err)
		return b.Build(v)
	}
}

func TestBuild_Primitives(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	assert.Nil(t, build(`null`))
	assert.Nil(t, build(`undefined`))

	for script, want := range map[string]string{
		`"hi"`:  "hi",
		`42`:    "42",
		`1.5`:   "1.5",
		`true`:  "true",
		`false`: "false",
	} {
		n := build(script)
		require.NotNil(t, n, script)
		assert.Equal(t, KindText, n.Kind, script)
		assert.Equal(t, want, n.Text, script)
	}
}

func TestBuild_SequenceIsFragment(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	n := build(`["a", null, undefined, {type: "panel"}, ["b"]]`)
	require.NotNil(t, n)
	assert.Equal(t, KindFragment, n.Kind)
	require.Len(t, n.Children, 3)
	assert.Equal(t, KindText, n.Children[0].Kind)
	assert.Equal(t, KindHost, n.Children[1].Kind)
	assert.Equal(t, KindFragment, n.Children[2].Kind)
}

func TestBuild_HostElement(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	n := build(`({type: "panel", key: 7, props: {b: 2, a: 1, children: ["x", {type: "image"}]}})`)
	require.NotNil(t, n)
	assert.Equal(t, KindHost, n.Kind)
	assert.Equal(t, "panel", n.Tag)
	assert.Equal(t, "7", n.Key)
	require.Len(t, n.Props, 2)
	assert.Equal(t, "b", n.Props[0].Name, "declaration order is kept")
	assert.Equal(t, "a", n.Props[1].Name)
	require.Len(t, n.Children, 2)
	assert.Equal(t, "x", n.Children[0].Text)
	assert.Equal(t, "image", n.Children[1].Tag)
	assert.False(t, n.HasProp("children"))
}

func TestBuild_KeyFromProps(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	n := build(`({type: "item", props: {key: "k", v: 1}})`)
	require.NotNil(t, n)
	assert.Equal(t, "k", n.Key)
	assert.False(t, n.HasProp("key"))
	assert.True(t, n.HasProp("v"))
}

func TestBuild_DirectChildrenField(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	n := build(`({type: "panel", props: {children: "a"}, children: ["b", "c"]})`)
	require.NotNil(t, n)
	require.Len(t, n.Children, 3)
	assert.Equal(t, "a", n.Children[0].Text)
	assert.Equal(t, "c", n.Children[2].Text)
}

func TestBuild_Components(t *testing.T) {
	t.Parallel()
	vm, build := newTestBuilder(t, nil)
	_, err := vm.RunString(`
		function Fn() {}
		class Cls { render() {} }
		var Def = {displayName: "Defined", render: function() {}};
	`)
	require.NoError(t, err)

	for script, want := range map[string]string{
		`({type: Fn})`:           "Fn",
		`({type: Cls})`:          "Cls",
		`({type: Def})`:          "Defined",
		`({type: {render: Fn}})`: "Anonymous",
	} {
		n := build(script)
		require.NotNil(t, n, script)
		assert.Equal(t, KindComponent, n.Kind, script)
		assert.Equal(t, want, n.Tag, script)
		assert.NotNil(t, n.Type, script)
	}
}

func TestBuild_ResolverWinsOverHostTags(t *testing.T) {
	t.Parallel()
	var ref goja.Value
	vm, build := newTestBuilder(t, func(tag string) (goja.Value, bool) {
		if tag == "Card" {
			return ref, true
		}
		return nil, false
	})
	ref = vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Null() })

	n := build(`({type: "Card", props: {title: "t"}})`)
	require.NotNil(t, n)
	assert.Equal(t, KindComponent, n.Kind)
	assert.Equal(t, "Card", n.Tag)
	assert.True(t, n.Type.SameAs(ref))
	assert.NotNil(t, n.RawProps)

	assert.Equal(t, KindHost, build(`({type: "card"})`).Kind)
}

func TestBuild_ExplicitFragment(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	n := build(`({type: "#fragment", key: "f", props: {ignored: 1, children: ["a", "b"]}})`)
	require.NotNil(t, n)
	assert.Equal(t, KindFragment, n.Kind)
	assert.Equal(t, "f", n.Key)
	assert.Empty(t, n.Props)
	assert.Len(t, n.Children, 2)
}

func TestBuild_MalformedFailsSoft(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	assert.Nil(t, build(`({})`))
	assert.Nil(t, build(`({type: ""})`))
	assert.Nil(t, build(`({type: null})`))
	assert.Nil(t, build(`(function() {})`))
	assert.Nil(t, build(`Symbol("x")`))

	n := build(`({type: "panel", props: {children: [{bogus: true}, "ok", {type: ""}]}})`)
	require.NotNil(t, n)
	require.Len(t, n.Children, 1)
	assert.Equal(t, "ok", n.Children[0].Text)
}

func TestBuild_ThrowingGetterIsContained(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	assert.Nil(t, build(`({get type() { throw new Error("no"); }})`))
}

func TestNode_WalkAndString(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	n := build(`({type: "panel", props: {a: 1, children: ["x", {type: "image", key: "i"}]}})`)
	var tags []string
	n.Walk(func(c *Node) bool {
		tags = append(tags, c.Kind.String())
		return true
	})
	assert.Equal(t, []string{"Host", "Text", "Host"}, tags)
	assert.Equal(t, "<panel> a=1\n  \"x\"\n  <image> key=i\n", n.String())
}

func TestBuild_CyclesAreDropped(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	n := build(`(() => {
		const d = {type: "panel", props: {}};
		d.props.children = ["ok", d];
		return {type: "root", props: {children: [d]}};
	})()`)
	require.NotNil(t, n)
	require.Len(t, n.Children, 1)
	panel := n.Children[0]
	require.Len(t, panel.Children, 1, "the self reference is dropped, its siblings survive")
	assert.Equal(t, "ok", panel.Children[0].Text)

	arr := build(`(() => { const a = ["x"]; a.push(a); return a; })()`)
	require.NotNil(t, arr)
	assert.Len(t, arr.Children, 1)
}

func TestBuild_SharedChildIsNotACycle(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	n := build(`(() => {
		const leaf = {type: "text", props: {children: "same"}};
		return {type: "panel", props: {children: [leaf, leaf]}};
	})()`)
	require.NotNil(t, n)
	assert.Len(t, n.Children, 2)
}

func TestBuild_DepthIsBounded(t *testing.T) {
	t.Parallel()
	_, build := newTestBuilder(t, nil)

	n := build(`(() => {
		let d = "leaf";
		for (let i = 0; i < 2000; i++) { d = {type: "panel", props: {children: d}}; }
		return d;
	})()`)
	require.NotNil(t, n)
	depth := 0
	for c := n; c != nil; depth++ {
		if len(c.Children) == 0 {
			break
		}
		c = c.Children[0]
	}
	assert.Equal(t, MaxDepth-1, depth)
}
