package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/goja-scene/internal/config"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/scene"
	"github.com/joeycumines/goja-scene/internal/scripting"
)

// RenderCommand runs a script headless and prints the resulting scene.
type RenderCommand struct {
	*BaseCommand
	config *config.Config
	scene  sceneFlags

	frames       int
	format       string
	output       string
	where        string
	width        int
	hideInactive bool
}

// NewRenderCommand creates a new render command.
func NewRenderCommand(cfg *config.Config) *RenderCommand {
	return &RenderCommand{
		BaseCommand: NewBaseCommand(
			"render",
			"Run a scene script headless and print the scene",
			"render [options] script.js",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the render command.
func (c *RenderCommand) SetupFlags(fs *flag.FlagSet) {
	c.setupRenderFlags(fs, "render")
}

func (c *RenderCommand) setupRenderFlags(fs *flag.FlagSet, section string) {
	schema := config.DefaultSchema()
	c.scene.setup(fs, c.config, section)
	fs.IntVar(&c.frames, "frames", schema.ResolveInt(c.config, "render", config.KeyRenderFrames), "Frame ticks to run before printing")
	fs.StringVar(&c.format, "format", string(scene.FormatText), "Output format: text, json, msgpack")
	fs.StringVar(&c.output, "o", "", "Write output to this file instead of stdout")
	fs.StringVar(&c.where, "where", "", "Only print subtrees whose root matches this expression")
	fs.IntVar(&c.width, "width", schema.ResolveInt(c.config, "render", config.KeyRenderWidth), "Truncate text output to this width (0: unlimited)")
	fs.BoolVar(&c.hideInactive, "hide-inactive", false, "Omit inactive objects from text output")
}

// Execute runs the script and prints the scene.
func (c *RenderCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(stderr, "Usage: scene %s\n", c.Usage())
		return fmt.Errorf("expected exactly one script, got %d arguments", len(args))
	}
	return c.render(ctx, args[0], stdout, stderr)
}

func (c *RenderCommand) render(ctx context.Context, script string, stdout, stderr io.Writer) error {
	format, err := scene.ParseFormat(c.format)
	if err != nil {
		return err
	}
	var query *scene.Query
	if c.where != "" {
		if query, err = scene.CompileQuery(c.where); err != nil {
			return fmt.Errorf("invalid -where: %w", err)
		}
	}
	if c.frames < 0 {
		return fmt.Errorf("invalid -frames: %d", c.frames)
	}

	s, cleanup, err := newSession(&c.scene, c.config, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	return s.run(ctx, script, func(ctx context.Context, e *scripting.Engine) error {
		if err := s.tick(ctx, e, c.frames); err != nil {
			return err
		}
		if _, err := e.Settle(); err != nil {
			return fmt.Errorf("failed to settle scene: %w", err)
		}
		g := e.Graph()
		roots := []host.Handle{g.Root()}
		if query != nil {
			if roots, err = g.Select(query); err != nil {
				return err
			}
		}
		return c.write(g, roots, format, stdout)
	})
}

func (c *RenderCommand) write(g *scene.Graph, roots []host.Handle, format scene.Format, stdout io.Writer) (err error) {
	w := stdout
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	for _, h := range roots {
		if format == scene.FormatText {
			_, err = io.WriteString(w, g.Render(scene.RenderOptions{
				Width:        c.width,
				HideInactive: c.hideInactive,
				From:         h,
			}))
		} else {
			err = g.SnapshotFrom(h).Encode(w, format)
		}
		if err != nil {
			return fmt.Errorf("failed to write scene: %w", err)
		}
	}
	return nil
}
