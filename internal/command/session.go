package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joeycumines/goja-scene/internal/config"
	"github.com/joeycumines/goja-scene/internal/metrics"
	"github.com/joeycumines/goja-scene/internal/scripting"
	"golang.org/x/sync/errgroup"
)

// sceneFlags are shared by the commands that run a scene script.
type sceneFlags struct {
	section     string
	interval    time.Duration
	metricsAddr string
	logFile     string
	logLevel    string
	logBuffer   int
	dumpLogs    bool
}

func (f *sceneFlags) setup(fs *flag.FlagSet, cfg *config.Config, section string) {
	schema := config.DefaultSchema()
	f.section = section
	fs.DurationVar(&f.interval, "tick", schema.ResolveDuration(cfg, section, config.KeyTickInterval), "Interval between frame ticks")
	fs.StringVar(&f.metricsAddr, "metrics-addr", schema.Resolve(cfg, section, config.KeyMetricsAddr), "Serve prometheus metrics on this address while running")
	fs.StringVar(&f.logFile, "log-file", "", "Write JSON logs to this file (default from config log.file)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config log.level)")
	fs.IntVar(&f.logBuffer, "log-buffer", 0, "In-memory log entries to keep (default from config log.buffer)")
	fs.BoolVar(&f.dumpLogs, "logs", false, "Print buffered log entries to stderr on exit")
}

// session is one script run: logging, metrics, and an engine with the
// script loaded.
type session struct {
	flags     *sceneFlags
	cfg       *config.Config
	logger    *scripting.Logger
	collector *metrics.Collector
	stderr    io.Writer
}

func newSession(flags *sceneFlags, cfg *config.Config, stderr io.Writer) (*session, func(), error) {
	lc, err := resolveLogConfig(flags.logFile, flags.logLevel, flags.logBuffer, cfg, flags.section)
	if err != nil {
		return nil, nil, err
	}
	var sink io.Writer
	if lc.logFile != nil {
		sink = lc.logFile
	}
	s := &session{
		flags:     flags,
		cfg:       cfg,
		logger:    scripting.NewLogger(lc.level, lc.bufferSize, sink),
		collector: metrics.New(),
		stderr:    stderr,
	}
	cleanup := func() {
		if flags.dumpLogs {
			for _, e := range s.logger.Entries() {
				_, _ = fmt.Fprintln(stderr, e.String())
			}
		}
		if lc.logFile != nil {
			_ = lc.logFile.Close()
		}
	}
	return s, cleanup, nil
}

// run loads script into a fresh engine and calls fn with it. The metrics
// server, when configured, runs alongside and stops when fn returns.
func (s *session) run(ctx context.Context, script string, fn func(ctx context.Context, e *scripting.Engine) error) error {
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.flags.metricsAddr != "" {
		g.Go(func() error {
			if err := s.collector.Serve(ctx, s.flags.metricsAddr, s.logger.Logger); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		engine, err := scripting.NewEngine(ctx, scripting.Options{
			Logger:   s.logger.Logger,
			Observer: s.collector,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := engine.Close(); err != nil {
				s.logger.Warn("engine close failed", slog.Any("error", err))
			}
		}()
		if err := engine.RunFile(script); err != nil {
			return err
		}
		return fn(ctx, engine)
	})

	return g.Wait()
}

// tick drives frames ticks, interval apart.
func (s *session) tick(ctx context.Context, e *scripting.Engine, frames int) error {
	for i := range frames {
		if i > 0 && s.flags.interval > 0 {
			select {
			case <-ctx.Done():
				return context.Cause(ctx)
			case <-time.After(s.flags.interval):
			}
		}
		if _, err := e.Tick(); err != nil {
			return fmt.Errorf("frame %d: %w", i+1, err)
		}
	}
	return nil
}
