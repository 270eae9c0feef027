package scripting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/goja-scene/internal/builtin"
	"github.com/joeycumines/goja-scene/internal/builtin/hostjs"
	"github.com/joeycumines/goja-scene/internal/builtin/reactjs"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/react"
	"github.com/joeycumines/goja-scene/internal/scene"
)

// FrameObserver is optionally implemented by an Options.Observer that wants
// per-frame samples.
type FrameObserver interface {
	Frame(objects int)
}

// Options configures an Engine.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Graph is the scene scripts render into; a new one if nil.
	Graph *scene.Graph
	// Observer receives reconciler metrics. If it also implements
	// FrameObserver it is sampled on every Tick.
	Observer react.Observer
}

// Engine runs scene scripts: one event loop, one scene graph, and the
// "scene:react" and "scene:host" modules wired between them.
type Engine struct {
	rt     *Runtime
	graph  *scene.Graph
	react  *reactjs.Manager
	logger *slog.Logger
	frames FrameObserver

	// frameQueued dedups flush jobs posted by the scheduler.
	frameQueued atomic.Bool
	ticks       atomic.Uint64
}

// NewEngine starts an engine. Cancelling ctx closes it.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	graph := opts.Graph
	if graph == nil {
		graph = scene.New()
	}
	e := &Engine{graph: graph, logger: logger}
	if fo, ok := opts.Observer.(FrameObserver); ok {
		e.frames = fo
	}

	// modules, console included, must exist before the loop creates the vm
	registry := require.NewRegistry()
	res := builtin.Register(registry, builtin.Dependencies{
		Graph:        graph,
		Logger:       logger,
		Observer:     opts.Observer,
		RequestFrame: e.requestFrame,
	})
	e.react = res.React

	rt, err := NewRuntime(ctx, registry)
	if err != nil {
		return nil, err
	}
	e.rt = rt
	return e, nil
}

// Graph returns the scene.
func (e *Engine) Graph() *scene.Graph { return e.graph }

// Ticks returns how many frames have been ticked.
func (e *Engine) Ticks() uint64 { return e.ticks.Load() }

// requestFrame is called on the loop when a root's queue becomes non-empty;
// the flush runs as a later loop job.
func (e *Engine) requestFrame() {
	if !e.frameQueued.CompareAndSwap(false, true) {
		return
	}
	e.rt.RunOnLoop(func(*goja.Runtime) {
		e.frameQueued.Store(false)
		e.react.Flush()
	})
}

// Run executes code as a script named name. Scripts may require
// "scene:react" and "scene:host".
func (e *Engine) Run(name, code string) error {
	e.logger.Debug("running script", slog.String("script", name))
	return e.rt.LoadScript(name, code)
}

// RunFile reads and runs a script file.
func (e *Engine) RunFile(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return e.Run(filepath.Base(path), string(code))
}

// Tick runs one host frame on the loop: every root's queued re-renders are
// flushed. It returns how many components rendered.
func (e *Engine) Tick() (int, error) {
	var n int
	err := e.rt.RunOnLoopSync(func(*goja.Runtime) error {
		n = e.react.Flush()
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.ticks.Add(1)
	if e.frames != nil {
		e.frames.Frame(e.graph.Len())
	}
	return n, nil
}

// Settle flushes until nothing is queued.
func (e *Engine) Settle() (int, error) {
	var n int
	err := e.rt.RunOnLoopSync(func(*goja.Runtime) error {
		n = e.react.FlushSync()
		return nil
	})
	return n, err
}

// Click dispatches a click to h's onClick callback, then flushes the state
// updates it caused. It reports false if h has no callback.
func (e *Engine) Click(h host.Handle) (bool, error) {
	var called bool
	err := e.rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		var err error
		called, err = hostjs.Invoke(vm, e.graph, h, hostjs.ClickProperty)
		if called {
			e.react.Flush()
		}
		return err
	})
	if err != nil {
		e.logger.Warn("click handler failed", slog.String("object", h.String()), slog.Any("error", err))
	}
	return called, err
}

// Roots returns the number of roots scripts have created.
func (e *Engine) Roots() (int, error) {
	var n int
	err := e.rt.RunOnLoopSync(func(*goja.Runtime) error {
		n = len(e.react.Roots())
		return nil
	})
	return n, err
}

// Close unmounts every root and stops the loop.
func (e *Engine) Close() error {
	err := e.rt.RunOnLoopSync(func(*goja.Runtime) error {
		e.react.UnmountAll()
		return nil
	})
	if errors.Is(err, ErrLoopStopped) {
		err = nil
	}
	return errors.Join(err, e.rt.Close())
}
