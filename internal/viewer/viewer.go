// Package viewer drives a scene interactively: it ticks the engine at a fixed
// interval, draws the scene tree in a scrollable viewport, and turns mouse
// clicks on objects into onClick dispatches.
package viewer

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joeycumines/goja-scene/internal/builtin/hostjs"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/scene"
	zone "github.com/lrstanley/bubblezone"
)

// Engine is the subset of the scripting engine the viewer drives.
type Engine interface {
	Graph() *scene.Graph
	// Tick flushes pending re-renders and returns how many ran.
	Tick() (int, error)
	// Click invokes the object's onClick callback, if any.
	Click(h host.Handle) (bool, error)
}

// Options configures a Model.
type Options struct {
	Engine   Engine
	Interval time.Duration
	// Mouse enables click dispatch.
	Mouse bool
	// Logs, if set, supplies the most recent log lines for the footer.
	Logs func(n int) []string
}

// DefaultInterval is used when Options.Interval is not positive.
const DefaultInterval = 50 * time.Millisecond

const (
	headerHeight = 1
	footerHeight = 2
	logLines     = 3
)

type tickMsg time.Time

// ClickMsg asks the model to click an object, as a mouse click on it would.
type ClickMsg struct {
	Handle host.Handle
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	statusStyle = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	logStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Model is the bubbletea model of the viewer.
type Model struct {
	engine   Engine
	interval time.Duration
	mouse    bool
	logs     func(n int) []string

	zones    *zone.Manager
	viewport viewport.Model
	ready    bool

	hideInactive bool
	frames       uint64
	rendered     int
	version      uint64
	clicks       map[string]host.Handle
	err          error
	quitting     bool
}

// New creates a Model. The zone manager is owned by the model; see
// [Model.Close].
func New(opts Options) *Model {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Model{
		engine:   opts.Engine,
		interval: interval,
		mouse:    opts.Mouse,
		logs:     opts.Logs,
		zones:    zone.New(),
		clicks:   make(map[string]host.Handle),
	}
}

// Close releases the zone manager.
func (m *Model) Close() {
	m.zones.Close()
}

// Frames returns the number of ticks handled so far.
func (m *Model) Frames() uint64 { return m.frames }

// Err returns the last engine error, if any.
func (m *Model) Err() error { return m.err }

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the tick loop.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, input, and resizes.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		n, err := m.engine.Tick()
		m.frames++
		m.rendered += n
		if err != nil {
			m.err = err
		}
		m.refresh(false)
		return m, m.tick()

	case ClickMsg:
		m.click(msg.Handle)
		m.refresh(false)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "h":
			m.hideInactive = !m.hideInactive
			m.refresh(true)
			return m, nil
		}

	case tea.MouseMsg:
		if m.mouse && msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			if h, ok := m.hit(msg); ok {
				m.click(h)
				m.refresh(false)
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		height := max(msg.Height-headerHeight-footerHeight-m.logHeight(), 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh(true)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) click(h host.Handle) {
	if _, err := m.engine.Click(h); err != nil {
		m.err = err
	}
}

// hit returns the clickable object under the mouse.
func (m *Model) hit(msg tea.MouseMsg) (host.Handle, bool) {
	for id, h := range m.clicks {
		if z := m.zones.Get(id); z != nil && !z.IsZero() && z.InBounds(msg) {
			return h, true
		}
	}
	return 0, false
}

func zoneID(h host.Handle) string {
	return "obj" + h.String()
}

// refresh re-renders the viewport content when the scene changed or force
// is set.
func (m *Model) refresh(force bool) {
	if !m.ready {
		return
	}
	g := m.engine.Graph()
	if v := g.Version(); !force && v == m.version {
		return
	}
	m.version = g.Version()
	clear(m.clicks)
	m.viewport.SetContent(g.Render(scene.RenderOptions{
		Width:        m.viewport.Width,
		Styled:       true,
		HideInactive: m.hideInactive,
		Decorate: func(o scene.Object, line string) string {
			if _, ok := o.Props[hostjs.ClickProperty].(scene.Callback); !ok || !m.mouse {
				return line
			}
			id := zoneID(o.ID)
			m.clicks[id] = o.ID
			return m.zones.Mark(id, line)
		},
	}))
}

func (m *Model) logHeight() int {
	if m.logs == nil {
		return 0
	}
	return logLines
}

// View draws the header, the scene, the log tail, and the status line.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading scene...\n"
	}

	var b strings.Builder
	g := m.engine.Graph()
	b.WriteString(titleStyle.Render("scene"))
	b.WriteString(statusStyle.Render(fmt.Sprintf("  frame %d  objects %d  renders %d", m.frames, g.Len(), m.rendered)))
	b.WriteByte('\n')
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')

	if m.logs != nil {
		lines := m.logs(logLines)
		for i := range logLines {
			if i < len(lines) {
				b.WriteString(logStyle.Render(truncate(lines[i], m.viewport.Width)))
			}
			b.WriteByte('\n')
		}
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(truncate("error: "+m.err.Error(), m.viewport.Width)))
	} else {
		b.WriteString(statusStyle.Render(fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100)))
	}
	b.WriteByte('\n')
	b.WriteString(statusStyle.Render("q quit · h toggle inactive · ↑/↓ scroll"))

	return m.zones.Scan(b.String())
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width {
		r = r[:len(r)-1]
	}
	return string(r)
}
