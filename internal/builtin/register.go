package builtin

import (
	"log/slog"

	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/goja-scene/internal/builtin/hostjs"
	"github.com/joeycumines/goja-scene/internal/builtin/reactjs"
	"github.com/joeycumines/goja-scene/internal/react"
	"github.com/joeycumines/goja-scene/internal/scene"
)

// Prefix namespaces every native module.
const Prefix = "scene:"

// Dependencies are the engine services the modules are wired to.
type Dependencies struct {
	Graph  *scene.Graph
	Logger *slog.Logger
	// Observer receives reconciler metrics; nil disables them.
	Observer react.Observer
	// RequestFrame is called when a root has queued re-renders.
	RequestFrame func()
}

// RegisterResult holds the managers created during registration.
type RegisterResult struct {
	React *reactjs.Manager
}

// Register installs the native modules, and a console that writes to the
// logger instead of stdout.
func Register(registry *require.Registry, deps Dependencies) RegisterResult {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(consolePrinter{logger.With(slog.String("source", "console"))}))

	reactMgr := reactjs.NewManager(deps.Graph, logger, deps.Observer, deps.RequestFrame)
	registry.RegisterNativeModule(Prefix+"react", reactjs.Require(reactMgr))
	registry.RegisterNativeModule(Prefix+"host", hostjs.Require(deps.Graph))

	return RegisterResult{React: reactMgr}
}

type consolePrinter struct{ logger *slog.Logger }

func (p consolePrinter) Log(s string)   { p.logger.Info(s) }
func (p consolePrinter) Warn(s string)  { p.logger.Warn(s) }
func (p consolePrinter) Error(s string) { p.logger.Error(s) }
