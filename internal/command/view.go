package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/goja-scene/internal/config"
	"github.com/joeycumines/goja-scene/internal/scripting"
	"github.com/joeycumines/goja-scene/internal/viewer"
)

// ViewCommand runs a script in the interactive viewer.
type ViewCommand struct {
	*BaseCommand
	config *config.Config
	// render is the fallback when stdout is not a terminal; it also owns
	// the shared scene flags.
	render *RenderCommand

	altScreen bool
	mouse     bool
	input     io.Reader
}

// NewViewCommand creates a new view command.
func NewViewCommand(cfg *config.Config) *ViewCommand {
	return &ViewCommand{
		BaseCommand: NewBaseCommand(
			"view",
			"Run a scene script in the interactive viewer",
			"view [options] script.js",
		),
		config: cfg,
		render: NewRenderCommand(cfg),
		input:  os.Stdin,
	}
}

// SetupFlags configures the flags for the view command.
func (c *ViewCommand) SetupFlags(fs *flag.FlagSet) {
	schema := config.DefaultSchema()
	c.render.setupRenderFlags(fs, "view")
	fs.BoolVar(&c.altScreen, "alt-screen", schema.ResolveBool(c.config, "view", config.KeyViewAltScreen), "Use the terminal alternate screen")
	fs.BoolVar(&c.mouse, "mouse", schema.ResolveBool(c.config, "view", config.KeyViewMouse), "Click objects with the mouse to fire onClick")
}

// Execute runs the viewer, or prints the scene once when stdout is not a
// terminal.
func (c *ViewCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(stderr, "Usage: scene %s\n", c.Usage())
		return fmt.Errorf("expected exactly one script, got %d arguments", len(args))
	}
	if !viewer.IsTerminal(stdout) {
		return c.render.render(ctx, args[0], stdout, stderr)
	}

	s, cleanup, err := newSession(&c.render.scene, c.config, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	return s.run(ctx, args[0], func(ctx context.Context, e *scripting.Engine) error {
		m := viewer.New(viewer.Options{
			Engine:   e,
			Interval: c.render.scene.interval,
			Mouse:    c.mouse,
			Logs: func(n int) []string {
				entries := s.logger.Recent(n)
				lines := make([]string, len(entries))
				for i, entry := range entries {
					lines[i] = entry.String()
				}
				return lines
			},
		})
		return viewer.Run(ctx, m, viewer.ProgramOptions{
			AltScreen: c.altScreen,
			Input:     c.input,
			Output:    stdout,
		})
	})
}
