package viewer

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joeycumines/goja-scene/internal/builtin/hostjs"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	graph   *scene.Graph
	label   host.Handle
	button  host.Handle
	ticks   int
	clicked []host.Handle
	tickErr error
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	g := scene.New()
	mk := func(kind, name string, parent host.Handle) host.Handle {
		h, err := g.Create(kind)
		require.NoError(t, err)
		require.NoError(t, g.Reparent(h, parent))
		require.NoError(t, g.SetActive(h, true))
		require.NoError(t, g.SetProperty(h, host.NameProperty, name))
		return h
	}
	panel := mk("panel", "menu", g.Root())
	f := &fakeEngine{graph: g}
	f.label = mk("panel", "label", panel)
	f.button = mk("button", "ok", panel)
	require.NoError(t, g.SetProperty(f.button, hostjs.ClickProperty, func() {}))
	hidden := mk("panel", "hidden", panel)
	require.NoError(t, g.SetActive(hidden, false))
	return f
}

func (f *fakeEngine) Graph() *scene.Graph { return f.graph }

func (f *fakeEngine) Tick() (int, error) {
	f.ticks++
	if f.tickErr != nil {
		return 0, f.tickErr
	}
	return 1, f.graph.SetProperty(f.label, host.NameProperty, "label-"+strings.Repeat("x", f.ticks))
}

func (f *fakeEngine) Click(h host.Handle) (bool, error) {
	f.clicked = append(f.clicked, h)
	return true, nil
}

func sized(t *testing.T, f *fakeEngine, mouse bool) *Model {
	t.Helper()
	m := New(Options{Engine: f, Interval: time.Millisecond, Mouse: mouse})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	return m
}

func TestModel_LoadingUntilSized(t *testing.T) {
	t.Parallel()
	m := New(Options{Engine: newFakeEngine(t)})
	defer m.Close()
	assert.Equal(t, "loading scene...\n", m.View())
	assert.NotNil(t, m.Init())
	assert.Equal(t, DefaultInterval, m.interval)
}

func TestModel_ViewShowsScene(t *testing.T) {
	t.Parallel()
	m := sized(t, newFakeEngine(t), false)
	out := m.View()
	for _, want := range []string{"scene", "frame 0", `"menu"`, `"ok"`, `"hidden"`, "q quit"} {
		assert.Contains(t, out, want)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	assert.NotContains(t, m.View(), `"hidden"`)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	assert.Contains(t, m.View(), `"hidden"`)
}

func TestModel_TickRefreshes(t *testing.T) {
	t.Parallel()
	f := newFakeEngine(t)
	m := sized(t, f, false)

	_, cmd := m.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd, "tick must reschedule itself")
	_, cmd = m.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd)

	assert.Equal(t, 2, f.ticks)
	assert.Equal(t, uint64(2), m.Frames())
	out := m.View()
	assert.Contains(t, out, "frame 2")
	assert.Contains(t, out, "renders 2")
	assert.Contains(t, out, `"label-xx"`)
}

func TestModel_TickErrorIsShown(t *testing.T) {
	t.Parallel()
	f := newFakeEngine(t)
	f.tickErr = errors.New("flush exploded")
	m := sized(t, f, false)
	m.Update(tickMsg(time.Now()))
	assert.ErrorIs(t, m.Err(), f.tickErr)
	assert.Contains(t, m.View(), "error: flush exploded")
}

func TestModel_ClickMsg(t *testing.T) {
	t.Parallel()
	f := newFakeEngine(t)
	m := sized(t, f, false)
	m.Update(ClickMsg{Handle: f.button})
	assert.Equal(t, []host.Handle{f.button}, f.clicked)
}

func TestModel_MouseClickOnZone(t *testing.T) {
	t.Parallel()
	f := newFakeEngine(t)
	m := sized(t, f, true)
	require.Contains(t, m.clicks, zoneID(f.button), "only callback holders are marked")
	assert.Len(t, m.clicks, 1)

	m.View()
	id := zoneID(f.button)
	require.Eventually(t, func() bool {
		z := m.zones.Get(id)
		return z != nil && !z.IsZero()
	}, time.Second, 5*time.Millisecond)

	z := m.zones.Get(id)
	m.Update(tea.MouseMsg{X: z.StartX, Y: z.StartY, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.Empty(t, f.clicked, "press alone does not click")
	m.Update(tea.MouseMsg{X: z.StartX, Y: z.StartY, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	assert.Equal(t, []host.Handle{f.button}, f.clicked)

	m.Update(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	assert.Len(t, f.clicked, 1, "header is not clickable")
}

func TestModel_MouseDisabled(t *testing.T) {
	t.Parallel()
	f := newFakeEngine(t)
	m := sized(t, f, false)
	assert.Empty(t, m.clicks)
	m.Update(tea.MouseMsg{X: 5, Y: 3, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	assert.Empty(t, f.clicked)
}

func TestModel_Logs(t *testing.T) {
	t.Parallel()
	f := newFakeEngine(t)
	m := New(Options{Engine: f, Logs: func(n int) []string {
		return []string{"INFO started", "WARN careful"}[:min(n, 2)]
	}})
	defer m.Close()
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	out := m.View()
	assert.Contains(t, out, "INFO started")
	assert.Contains(t, out, "WARN careful")
	assert.Equal(t, 20-headerHeight-footerHeight-logLines, m.viewport.Height)
}

func TestModel_Quit(t *testing.T) {
	t.Parallel()
	m := sized(t, newFakeEngine(t), false)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "a b", truncate("a\nb", 0))
	assert.Equal(t, "日本", truncate("日本語", 4))
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()
	assert.False(t, IsTerminal(&strings.Builder{}))
}
