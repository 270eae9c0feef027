package scene

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/rivo/uniseg"
)

// RenderOptions controls [Graph.Render].
type RenderOptions struct {
	// Width truncates each line to this many cells. Zero means unlimited.
	Width int
	// Styled enables lipgloss styling.
	Styled bool
	// HideInactive omits inactive objects and their subtrees.
	HideInactive bool
	// From is the subtree to render; zero means the root.
	From host.Handle
	// Decorate, if set, post-processes each rendered line. The viewer uses
	// it to mark click zones.
	Decorate func(o Object, line string) string
}

var (
	kindStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	nameStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	propStyle     = lipgloss.NewStyle().Faint(true)
	inactiveStyle = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	guideStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Render draws the scene as an indented tree, one object per line.
func (g *Graph) Render(opts RenderOptions) string {
	from := opts.From
	if from == 0 {
		from = g.root
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	var b strings.Builder
	g.render(&b, from, "", "", opts)
	return b.String()
}

func (g *Graph) render(b *strings.Builder, h host.Handle, prefix, childPrefix string, opts RenderOptions) {
	o, ok := g.objects[h]
	if !ok {
		return
	}
	line := describeObject(o)
	if opts.Width > 0 {
		if pw := uniseg.StringWidth(prefix); pw < opts.Width {
			line = truncate(line, opts.Width-pw, true)
		} else {
			// the guides alone fill the width
			prefix, line = truncate(prefix+line, opts.Width, true), ""
		}
	}
	switch {
	case !opts.Styled:
		line = prefix + line
	case line == "":
		line = guideStyle.Render(prefix)
	default:
		line = guideStyle.Render(prefix) + styleLine(o, line)
	}
	if opts.Decorate != nil {
		line = opts.Decorate(o.export(), line)
	}
	b.WriteString(line)
	b.WriteByte('\n')

	var visible []host.Handle
	for _, c := range o.children {
		if co, ok := g.objects[c]; ok && (co.active || !opts.HideInactive) {
			visible = append(visible, c)
		}
	}
	for i, c := range visible {
		if i == len(visible)-1 {
			g.render(b, c, childPrefix+"└─ ", childPrefix+"   ", opts)
		} else {
			g.render(b, c, childPrefix+"├─ ", childPrefix+"│  ", opts)
		}
	}
}

func describeObject(o *object) string {
	var b strings.Builder
	if o.kind == host.TextKind {
		text, _ := o.props[host.TextProperty].(string)
		b.WriteString(strconv.Quote(text))
	} else {
		b.WriteString("<" + o.kind + ">")
		if o.name != "" {
			b.WriteString(" " + strconv.Quote(o.name))
		}
	}
	if !o.active {
		b.WriteString(" (inactive)")
	}
	for _, k := range propNames(o.props) {
		if o.kind == host.TextKind && k == host.TextProperty {
			continue
		}
		b.WriteString(" " + k + "=" + FormatValue(o.props[k]))
	}
	return b.String()
}

func styleLine(o *object, line string) string {
	switch {
	case !o.active:
		return inactiveStyle.Render(line)
	case o.kind == host.TextKind:
		return textStyle.Render(line)
	}
	head, rest, _ := strings.Cut(line, " ")
	if rest == "" {
		return kindStyle.Render(head)
	}
	if o.name != "" && strings.HasPrefix(rest, `"`) {
		q := strconv.Quote(o.name)
		if strings.HasPrefix(rest, q) {
			return kindStyle.Render(head) + " " + nameStyle.Render(q) + propStyle.Render(rest[len(q):])
		}
	}
	return kindStyle.Render(head) + " " + propStyle.Render(rest)
}

// FormatValue renders a property value compactly.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case float64:
		return formatFloat(x)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case Vec2:
		return "(" + formatFloat(x.X) + ", " + formatFloat(x.Y) + ")"
	case Vec3:
		return "(" + formatFloat(x.X) + ", " + formatFloat(x.Y) + ", " + formatFloat(x.Z) + ")"
	case Color:
		return fmt.Sprintf("#%02x%02x%02x%02x", channel(x.R), channel(x.G), channel(x.B), channel(x.A))
	case Callback:
		return "ƒ"
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func channel(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}

// truncate cuts s to at most width cells, grapheme-aware, ending with an
// ellipsis when anything was dropped.
func truncate(s string, width int, limited bool) string {
	if !limited || uniseg.StringWidth(s) <= width {
		return s
	}
	if width <= 0 {
		return ""
	}
	var (
		b     strings.Builder
		used  int
		state = -1
		rest  = s
	)
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+w > width-1 {
			break
		}
		b.WriteString(cluster)
		used += w
	}
	b.WriteString("…")
	return b.String()
}
