package react

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterClass = `
	var counter;
	class Counter {
		constructor(props) { this.state = {n: props.start}; }
		componentDidMount() { counter = this; log.push("didMount " + this.state.n); }
		componentDidUpdate(prevProps, prevState) { log.push("didUpdate " + prevState.n + "->" + this.state.n); }
		componentWillUnmount() { log.push("willUnmount"); }
		render() { return h("label", {n: this.state.n, step: this.props.step}); }
	}
`

func TestClassComponent_Lifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(counterClass)

	env.render(`h(Counter, {start: 1, step: 1})`)
	inst := env.rootInstance()
	assert.Equal(t, PhaseMounted, inst.Phase())
	assert.Equal(t, "Counter", inst.Name())
	assert.Equal(t, []string{"didMount 1"}, env.log())

	env.run(`counter.setState({n: 5})`)
	assert.Equal(t, []string{"set #102 n=5"}, env.flush())
	assert.Equal(t, PhaseUpdated, inst.Phase())
	assert.Equal(t, []string{"didUpdate 1->5"}, env.log())

	assert.Equal(t, []string{"set #102 step=2"}, env.render(`h(Counter, {start: 1, step: 2})`))
	assert.Equal(t, []string{"didUpdate 5->5"}, env.log())

	env.root.Unmount()
	assert.Equal(t, PhaseUnmounted, inst.Phase())
	assert.Nil(t, inst.Rendered())
	assert.Equal(t, []string{"willUnmount"}, env.log())
}

func TestClassComponent_SetStateMergesAndAcceptsUpdater(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(`
		var self;
		class Form {
			constructor() { self = this; this.state = {a: 1, b: 1}; }
			render() { return h("form", {a: this.state.a, b: this.state.b}); }
		}
	`)
	env.render(`h(Form)`)

	env.run(`
		self.setState({a: 2});
		self.setState(function(state) { return {b: state.a + 10}; }, function() { log.push("done " + this.state.b); });
	`)
	assert.Equal(t, []string{"set #102 a=2", "set #102 b=12"}, env.flush())
	assert.Equal(t, []string{"done 12"}, env.log())
}

func TestDefinitionObject_ShouldComponentUpdate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(`
		var self;
		var Gated = {
			constructor: function(props) { return {state: {v: 1}}; },
			componentDidMount: function() { self = this; },
			shouldComponentUpdate: function(nextProps, nextState) { return nextState.v !== 2; },
			render: function() { return String(this.state.v); }
		};
	`)
	env.render(`h(Gated)`)
	inst := env.rootInstance()

	env.run(`self.setState({v: 2})`)
	assert.Empty(t, env.flush())
	assert.Equal(t, PhaseMounted, inst.Phase(), "skipped update restores the rest phase")
	assert.Equal(t, int64(2), env.run(`self.state.v`).Export(), "state is still committed")

	env.run(`self.setState({v: 3})`)
	assert.Equal(t, []string{"set #102 text=3"}, env.flush())

	env.run(`self.setState({v: 2}); self.forceUpdate()`)
	assert.Equal(t, []string{"set #102 text=2"}, env.flush(), "forceUpdate bypasses shouldComponentUpdate")
}

func TestDefinitionObject_SynthesizedInstance(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(`
		var self;
		var Plain = {
			componentDidMount: function() { self = this; },
			render: function() { return "s=" + JSON.stringify(this.state) + " p=" + this.props.p; }
		};
	`)
	env.render(`h(Plain, {p: 1})`)
	assert.Equal(t, "s={} p=1", env.rootInstance().Rendered().Text)

	env.run(`self.setState({x: 1})`)
	assert.Equal(t, []string{`set #102 text=s={"x":1} p=1`}, env.flush())
}

func TestClassComponent_DerivedStateFromProps(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(`
		class Doubler {
			static getDerivedStateFromProps(props, state) { return {double: props.n * 2}; }
			render() { return String(this.state.double); }
		}
	`)
	env.render(`h(Doubler, {n: 2})`)
	assert.Equal(t, "4", env.rootInstance().Rendered().Text)

	assert.Equal(t, []string{"set #102 text=10"}, env.render(`h(Doubler, {n: 5})`))
}

func TestComponent_LifecycleErrorsAreContained(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(`
		class Bad {
			componentDidMount() { throw new Error("mount"); }
			componentWillUnmount() { throw new Error("unmount"); }
			render() { return "bad"; }
		}
	`)
	env.render(`h("panel", null, h(Bad), "sibling")`)
	tree := env.root.Tree()
	require.Len(t, tree.Children, 2)
	assert.True(t, tree.Children[1].Handle.Valid())

	env.host.reset()
	env.root.Unmount()
	assert.Len(t, env.host.reset(), 4)
	assert.Zero(t, env.rec.Mounted())
}

func TestComponent_RenderErrorOnMountRendersNothing(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(`function Broken() { throw new Error("nope"); }`)

	env.render(`h("panel", null, h(Broken), "after")`)
	tree := env.root.Tree()
	inst := env.rec.Instance(tree.Children[0].Instance)
	require.NotNil(t, inst)
	assert.Nil(t, inst.Rendered())
	assert.Equal(t, PhaseMounted, inst.Phase())
	assert.True(t, tree.Children[1].Handle.Valid())
}

func TestComponent_InvalidReference(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	calls := env.render(`({type: {notRender: 1}})`)
	assert.Contains(t, calls, "create component #101")
	tree := env.root.Tree()
	require.NotNil(t, tree)
	assert.Empty(t, tree.Instance)
	assert.True(t, tree.Mounted())
}

func TestComponent_ChildrenArePassedAsProps(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(`function Wrap(props) { return h("frame", null, props.children); }`)

	env.render(`h(Wrap, null, "a", "b")`)
	wrapper := env.root.Tree()
	inst := env.rootInstance()
	frame := inst.Rendered()
	require.NotNil(t, frame)
	require.Len(t, frame.Children, 2)
	assert.Equal(t, wrapper.Handle, inst.Handle())
	for _, c := range frame.Children {
		assert.True(t, c.Handle.Valid())
	}
}

func TestComponent_NestedDepth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(`
		function Inner() { return "x"; }
		function Outer() { return h(Inner); }
	`)
	env.render(`h(Outer)`)
	outer := env.rootInstance()
	inner := env.rec.Instance(outer.Rendered().Instance)
	require.NotNil(t, inner)
	assert.Equal(t, 1, outer.Depth())
	assert.Equal(t, 2, inner.Depth())
}

func TestComponent_RegisteredName(t *testing.T) {
	t.Parallel()
	registry := make(map[string]goja.Value)
	env := newTestEnv(t, func(o *Options) {
		o.Resolver = func(tag string) (goja.Value, bool) {
			v, ok := registry[tag]
			return v, ok
		}
	})
	registry["Badge"] = env.run(`(function(props) { return h("label", {text: props.text}); })`)

	assert.Equal(t, []string{
		"create component #101",
		"set #101 name=Badge",
		"reparent #101 #1",
		"active #101 true",
		"create label #102",
		"reparent #102 #101",
		"active #102 true",
		"set #102 text=x",
		"active #1 true",
	}, env.render(`h("Badge", {text: "x"})`))
}

func TestClassComponent_StateCommitsOnUpdate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.run(`
		var self;
		class Tally {
			constructor() { self = this; this.state = {n: 1}; }
			componentDidUpdate(prevProps, prevState) { log.push("prev " + prevState.n + " now " + this.state.n); }
			render() { return h("text", {n: this.state.n}); }
		}
	`)
	env.render(`h(Tally)`)

	env.run(`
		self.setState({n: 2});
		self.setState(function(state) { return {n: state.n * 10}; });
		log.push("before flush " + self.state.n);
	`)
	assert.Equal(t, []string{"before flush 1"}, env.log())
	assert.Equal(t, []string{"set #102 n=20"}, env.flush())
	assert.Equal(t, []string{"prev 1 now 20"}, env.log())
}
