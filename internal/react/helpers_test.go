package react

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/vdom"
	"github.com/stretchr/testify/require"
)

// recordingHost is a host.Adapter that records every call as a short
// string, e.g. "create panel #1" or "set #1 b=3".
type recordingHost struct {
	next   host.Handle
	calls  []string
	tags   map[host.Handle]string
	reject map[string]bool // property names to reject
}

func newRecordingHost() *recordingHost {
	return &recordingHost{next: 100, tags: make(map[host.Handle]string), reject: make(map[string]bool)}
}

func (f *recordingHost) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// reset forgets recorded calls, returning them.
func (f *recordingHost) reset() []string {
	calls := f.calls
	f.calls = nil
	return calls
}

func (f *recordingHost) Create(tag string) (host.Handle, error) {
	f.next++
	f.tags[f.next] = tag
	f.record("create %s %s", tag, f.next)
	return f.next, nil
}

func (f *recordingHost) Destroy(h host.Handle) error {
	if _, ok := f.tags[h]; !ok {
		return fmt.Errorf("destroy: unknown handle %s", h)
	}
	delete(f.tags, h)
	f.record("destroy %s", h)
	return nil
}

func (f *recordingHost) SetProperty(h host.Handle, name string, value any) error {
	if f.reject[name] {
		return fmt.Errorf("property %q rejected", name)
	}
	if v, ok := value.(goja.Value); ok {
		value = v.String()
	}
	f.record("set %s %s=%v", h, name, value)
	return nil
}

func (f *recordingHost) ClearProperty(h host.Handle, name string) error {
	f.record("clear %s %s", h, name)
	return nil
}

func (f *recordingHost) Reparent(child, parent host.Handle) error {
	f.record("reparent %s %s", child, parent)
	return nil
}

func (f *recordingHost) SetActive(h host.Handle, active bool) error {
	f.record("active %s %t", h, active)
	return nil
}

// container is the pre-existing handle every test renders into.
const container host.Handle = 1

type testEnv struct {
	t    *testing.T
	vm   *goja.Runtime
	host *recordingHost
	root *Root
	rec  *Reconciler
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()
	vm := goja.New()
	fake := newRecordingHost()
	o := Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	root := NewRoot(vm, fake, container, o)
	env := &testEnv{t: t, vm: vm, host: fake, root: root, rec: root.Reconciler()}
	env.run(`
		var log = [];
		function h(type, props) {
			var p = Object.assign({}, props || {});
			var kids = Array.prototype.slice.call(arguments, 2);
			if (kids.length === 1) { p.children = kids[0]; }
			else if (kids.length > 1) { p.children = kids; }
			return {type: type, props: p};
		}
	`)
	return env
}

func (e *testEnv) run(script string) goja.Value {
	e.t.Helper()
	v, err := e.vm.RunString(script)
	require.NoError(e.t, err)
	return v
}

// build evaluates a description expression.
func (e *testEnv) build(script string) *vdom.Node {
	e.t.Helper()
	return e.rec.Builder().Build(e.run(script))
}

// render renders a description expression into the root, returning the
// host calls it caused.
func (e *testEnv) render(script string) []string {
	e.t.Helper()
	e.host.reset()
	e.root.Render(e.run(script))
	return e.host.reset()
}

func (e *testEnv) flush() []string {
	e.t.Helper()
	e.host.reset()
	e.root.Flush()
	return e.host.reset()
}

// log returns and clears the script-side log array.
func (e *testEnv) log() []string {
	e.t.Helper()
	var out []string
	require.NoError(e.t, e.vm.ExportTo(e.run(`log.splice(0, log.length)`), &out))
	return out
}
