package react

import (
	"context"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/joeycumines/goja-scene/internal/vdom"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/joeycumines/goja-scene/internal/react"

// Root binds a host container to the tree rendered into it.
type Root struct {
	id        string
	container host.Handle
	rec       *Reconciler
	observer  Observer
	tracer    trace.Tracer
	current   *vdom.Node
	activated bool
	unmounted bool
}

// NewRoot returns a root rendering into container.
func NewRoot(vm *goja.Runtime, adapter host.Adapter, container host.Handle, opts Options) *Root {
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	opts.Observer = observer
	return &Root{
		id:        uuid.NewString(),
		container: container,
		rec:       NewReconciler(vm, adapter, opts),
		observer:  observer,
		tracer:    otel.Tracer(tracerName),
	}
}

func (r *Root) ID() string { return r.id }

func (r *Root) Container() host.Handle { return r.container }

func (r *Root) Reconciler() *Reconciler { return r.rec }

// Tree returns the description tree most recently rendered, nil after
// unmount.
func (r *Root) Tree() *vdom.Node { return r.current }

// Unmounted reports whether Unmount has been called.
func (r *Root) Unmounted() bool { return r.unmounted }

// Render builds desc and reconciles it against the previous render. The
// container is activated on the first render.
func (r *Root) Render(desc goja.Value) {
	_, span := r.tracer.Start(context.Background(), "react.Root.Render",
		trace.WithAttributes(attribute.String("root.id", r.id)))
	defer span.End()

	r.unmounted = false
	tree := r.rec.builder.Build(desc)
	r.rec.Reconcile(tree, r.current, r.container)
	r.current = tree
	r.rec.syncOrder(r.container, []*vdom.Node{tree})
	if !r.activated {
		r.rec.binding.SetActive(r.container, true)
		r.activated = true
	}
	span.SetAttributes(attribute.Int("react.mounted", r.rec.Mounted()))
}

// Unmount tears down everything this root mounted. The container itself
// is left in place.
func (r *Root) Unmount() {
	_, span := r.tracer.Start(context.Background(), "react.Root.Unmount",
		trace.WithAttributes(attribute.String("root.id", r.id)))
	defer span.End()

	r.rec.Reconcile(nil, r.current, r.container)
	r.current = nil
	r.rec.scheduler.reset()
	r.unmounted = true
}

// Flush re-renders every component that requested it since the last flush,
// returning how many rendered.
func (r *Root) Flush() int {
	if r.rec.scheduler.Pending() == 0 {
		return 0
	}
	_, span := r.tracer.Start(context.Background(), "react.Root.Flush",
		trace.WithAttributes(attribute.String("root.id", r.id)))
	defer span.End()

	start := time.Now()
	n := r.rec.scheduler.Flush()
	r.observer.Flushed(n, time.Since(start))
	span.SetAttributes(attribute.Int("react.rendered", n))
	return n
}

// Dump renders the mounted tree, including component output.
func (r *Root) Dump() string { return r.rec.Dump(r.current) }
