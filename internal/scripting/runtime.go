package scripting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
)

// ErrLoopStopped is returned when work is submitted to a stopped runtime.
var ErrLoopStopped = errors.New("event loop not running")

// Runtime owns the goja runtime and the event loop that serializes every
// access to it.
//
// goja.Runtime is not goroutine-safe. All script work, including reconciler
// passes, scheduler flushes and callbacks dispatched from the viewer, goes
// through RunOnLoop or RunOnLoopSync.
//
//	rt, err := NewRuntime(ctx, nil)
//	if err != nil { ... }
//	defer rt.Close()
//
//	err = rt.RunOnLoopSync(func(vm *goja.Runtime) error {
//	    _, err := vm.RunString("console.log('hello')")
//	    return err
//	})
type Runtime struct {
	loop     *eventloop.EventLoop
	registry *require.Registry

	mu      sync.RWMutex
	timeout time.Duration
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// DefaultSyncTimeout bounds RunOnLoopSync.
const DefaultSyncTimeout = 5 * time.Second

// NewRuntime starts an event loop with console support, using registry for
// require (a new registry if nil). Cancelling ctx closes the runtime.
func NewRuntime(ctx context.Context, registry *require.Registry) (*Runtime, error) {
	if registry == nil {
		registry = require.NewRegistry()
	}
	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(registry),
		eventloop.EnableConsole(true),
	)

	// independent of ctx, so Close can cancel before the loop stops
	lifeCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		loop:     loop,
		registry: registry,
		timeout:  DefaultSyncTimeout,
		ctx:      lifeCtx,
		cancel:   cancel,
	}

	loop.Start()
	ready := make(chan struct{})
	if !loop.RunOnLoop(func(*goja.Runtime) { close(ready) }) {
		cancel()
		return nil, fmt.Errorf("start runtime: %w", ErrLoopStopped)
	}
	<-ready

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() { _ = rt.Close() })
	}
	return rt, nil
}

// Registry returns the require registry. Modules must be registered before
// a script requires them.
func (rt *Runtime) Registry() *require.Registry { return rt.registry }

// Close stops the loop, waiting for the running job. It is idempotent.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.mu.Unlock()

	rt.cancel()
	rt.loop.Stop()
	return nil
}

// Done is closed once the runtime is stopped.
func (rt *Runtime) Done() <-chan struct{} { return rt.ctx.Done() }

// IsRunning reports whether Close has not been called yet.
func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return !rt.stopped
}

// SetTimeout changes the RunOnLoopSync bound. Zero waits forever.
func (rt *Runtime) SetTimeout(timeout time.Duration) {
	rt.mu.Lock()
	rt.timeout = timeout
	rt.mu.Unlock()
}

// RunOnLoop schedules fn on the loop goroutine, reporting false if the loop
// is stopped. The runtime passed to fn must not escape it.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	if !rt.IsRunning() {
		return false
	}
	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopSync runs fn on the loop and waits for its result. It must not be
// called from the loop goroutine.
func (rt *Runtime) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	rt.mu.RLock()
	stopped, timeout := rt.stopped, rt.timeout
	rt.mu.RUnlock()
	if stopped {
		return ErrLoopStopped
	}

	errCh := make(chan error, 1)
	if !rt.loop.RunOnLoop(func(vm *goja.Runtime) { errCh <- fn(vm) }) {
		return ErrLoopStopped
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case err := <-errCh:
		return err
	case <-rt.Done():
		return errors.New("runtime stopped before completion")
	case <-expired:
		return fmt.Errorf("operation timed out after %v", timeout)
	}
}

// LoadScript compiles and runs code as a script named name.
func (rt *Runtime) LoadScript(name, code string) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		prg, err := goja.Compile(name, code, true)
		if err != nil {
			return fmt.Errorf("compile %s: %w", name, err)
		}
		if _, err := vm.RunProgram(prg); err != nil {
			return fmt.Errorf("run %s: %w", name, err)
		}
		return nil
	})
}
