// Package react is a retained-mode reconciler for script-declared UI trees,
// exposed to scripts as the "scene:react" module.
//
// Architecture:
//
//   - [vdom.Builder] turns script descriptions into fresh virtual trees
//   - [Reconciler] diffs each tree against the previous one and drives the
//     host through [Binding], which wraps a [host.Adapter]
//   - the component runtime owns [Instance] values, their lifecycle
//     ([Phase]) and, for function components, their hook slots
//   - [Scheduler] batches state updates into depth-ordered flushes
//   - [Root] ties a container handle to the current tree
//
// Function components are called as render(props, hooks), where hooks
// carries useState and useEffect for that render only:
//
//	function Counter(props, hooks) {
//	    const [n, setN] = hooks.useState(0);
//	    hooks.useEffect(() => console.log("count", n), [n]);
//	    return createElement("button", {onClick: () => setN(n + 1)}, String(n));
//	}
//
// Stateful components are either classes with a render method, or plain
// definition objects ({render, constructor?, componentDidMount?, ...}); both
// get props, state, setState and forceUpdate on their instance object.
//
// Nothing in this package is safe for concurrent use. Every call, including
// state setters invoked from callbacks, must happen on the goroutine that
// owns the script runtime.
package react
