package scripting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/scene"
	"github.com/joeycumines/goja-scene/internal/testutil"
)

const counterScript = `
const { createRoot, createElement: h, registerComponent } = require('scene:react');

function Counter(props, hooks) {
	const [n, setN] = hooks.useState(0);
	hooks.useEffect(() => { console.log('count ' + n); }, [n]);
	return h('panel', { name: 'counter' },
		h('text', { name: 'label' }, props.label + n),
		h('button', { name: 'inc', onClick: () => setN(v => v + 1) }, '+'));
}
registerComponent('Counter', Counter);

const root = createRoot('hud');
root.render(h('Counter', { label: 'clicks: ' }));
`

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = NewLogger(nil, 100, nil).Logger
	}
	e, err := NewEngine(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_ScriptRendersIntoScene(t *testing.T) {
	t.Parallel()
	logger := NewLogger(nil, 100, nil)
	e := newTestEngine(t, Options{Logger: logger.Logger})

	if err := e.Run("counter.js", counterScript); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	g := e.Graph()

	hud, ok := g.Find("hud")
	if !ok {
		t.Fatal("container not created")
	}
	if o, _ := g.Lookup(hud); !o.Active || o.Parent != g.Root() {
		t.Errorf("container = %+v", o)
	}
	if got := labelText(g); got != "clicks: 0" {
		t.Errorf("label = %q", got)
	}
	if n, _ := e.Roots(); n != 1 {
		t.Errorf("roots = %d", n)
	}
	if len(logger.Search("count 0")) != 1 {
		t.Errorf("effect did not log through console: %v", logger.Entries())
	}
}

func TestEngine_ClickUpdatesScene(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, Options{})
	if err := e.Run("counter.js", counterScript); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	g := e.Graph()
	inc, ok := g.Find("inc")
	if !ok {
		t.Fatal("button not found")
	}

	for range 3 {
		called, err := e.Click(inc)
		if err != nil || !called {
			t.Fatalf("Click = %v, %v", called, err)
		}
	}
	if got := labelText(g); got != "clicks: 3" {
		t.Errorf("label = %q", got)
	}

	if called, err := e.Click(g.Root()); called || err != nil {
		t.Errorf("click on root = %v, %v", called, err)
	}
}

func TestEngine_SetterSchedulesFrame(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, Options{})
	if err := e.Run("counter.js", counterScript); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	err := e.Run("click.js", `require('scene:host').find('inc').get('onClick')();`)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	_, err = testutil.WaitForState(context.Background(), func() string { return labelText(e.Graph()) },
		func(s string) bool { return s == "clicks: 1" }, testutil.DefaultTimeout, testutil.DefaultInterval)
	if err != nil {
		t.Fatalf("queued update never flushed: %v", err)
	}
}

// labelText returns the text under the object named "label", or "".
func labelText(g *scene.Graph) string {
	label, ok := g.Find("label")
	if !ok {
		return ""
	}
	o, _ := g.Lookup(label)
	if len(o.Children) == 0 {
		return ""
	}
	v, _ := g.Property(o.Children[0], host.TextProperty)
	s, _ := v.(string)
	return s
}

type frameCounter struct {
	frames  int
	objects int
}

func (f *frameCounter) HostOp(string, error)                  {}
func (f *frameCounter) Rendered(string, time.Duration, error) {}
func (f *frameCounter) Flushed(int, time.Duration)            {}
func (f *frameCounter) Frame(objects int) {
	f.frames++
	f.objects = objects
}

func TestEngine_TickFlushesAndSamples(t *testing.T) {
	t.Parallel()
	fc := &frameCounter{}
	e := newTestEngine(t, Options{Observer: fc})
	if err := e.Run("counter.js", counterScript); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := e.Tick(); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if e.Ticks() != 1 || fc.frames != 1 {
		t.Errorf("ticks = %d, frames = %d", e.Ticks(), fc.frames)
	}
	if fc.objects != e.Graph().Len() {
		t.Errorf("sampled %d objects, graph has %d", fc.objects, e.Graph().Len())
	}
}

func TestEngine_ScriptErrors(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, Options{})
	err := e.Run("bad.js", `require('scene:react').registerComponent('X', 42);`)
	if err == nil || !strings.Contains(err.Error(), "registerComponent") {
		t.Errorf("expected TypeError, got %v", err)
	}
	err = e.Run("missing.js", `require('scene:nope');`)
	if err == nil {
		t.Error("expected require error")
	}
}

func TestEngine_CloseUnmounts(t *testing.T) {
	t.Parallel()
	e, err := NewEngine(context.Background(), Options{Logger: NewLogger(nil, 10, nil).Logger})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.Run("counter.js", counterScript); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	g := e.Graph()
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := g.Find("counter"); ok {
		t.Error("component output survived Close")
	}
	if _, ok := g.Find("hud"); !ok {
		t.Error("container should outlive its root")
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
