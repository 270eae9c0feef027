package react

import (
	"log/slog"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-scene/internal/host"
)

// Host operation names, as reported to [Observer.HostOp].
const (
	OpCreate   = "create"
	OpDestroy  = "destroy"
	OpSet      = "set"
	OpClear    = "clear"
	OpReparent = "reparent"
	OpActive   = "active"
	OpOrder    = "order"
)

// Binding is the façade the reconciler uses to mutate host objects.
//
// Every adapter failure is logged and reported to the observer, then
// treated as a no-op for that single operation, so one rejected property
// never aborts a surrounding mount or update.
type Binding struct {
	adapter  host.Adapter
	logger   *slog.Logger
	observer Observer
}

// NewBinding wraps adapter. Nil logger and observer select defaults.
func NewBinding(adapter host.Adapter, logger *slog.Logger, observer Observer) *Binding {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Binding{adapter: adapter, logger: logger, observer: observer}
}

// Adapter returns the wrapped adapter.
func (b *Binding) Adapter() host.Adapter { return b.adapter }

// Create returns the zero handle if the host refused to create the object.
func (b *Binding) Create(tag string) host.Handle {
	h, err := b.adapter.Create(tag)
	b.observer.HostOp(OpCreate, err)
	if err != nil {
		b.logger.Error("host create failed", slog.String("tag", tag), slog.Any("error", err))
		return 0
	}
	return h
}

func (b *Binding) Destroy(h host.Handle) {
	if !h.Valid() {
		return
	}
	err := b.adapter.Destroy(h)
	b.observer.HostOp(OpDestroy, err)
	if err != nil {
		b.logger.Error("host destroy failed", slog.String("handle", h.String()), slog.Any("error", err))
	}
}

// SetProperty converts a script value and applies it. The active property
// is routed to SetActive; null and undefined leave the object active.
func (b *Binding) SetProperty(h host.Handle, name string, value goja.Value) {
	if name == host.ActiveProperty {
		b.SetActive(h, value == nil || goja.IsUndefined(value) || goja.IsNull(value) || value.ToBoolean())
		return
	}
	b.set(h, name, Convert(value))
}

// SetText applies text content to a text object.
func (b *Binding) SetText(h host.Handle, text string) {
	b.set(h, host.TextProperty, text)
}

func (b *Binding) set(h host.Handle, name string, value any) {
	if !h.Valid() {
		return
	}
	err := b.adapter.SetProperty(h, name, value)
	b.observer.HostOp(OpSet, err)
	if err != nil {
		b.logger.Warn("host rejected property", slog.String("handle", h.String()), slog.String("property", name), slog.Any("error", err))
	}
}

// ClearProperty resets a property that is no longer declared. Clearing
// active restores the default, visible state.
func (b *Binding) ClearProperty(h host.Handle, name string) {
	if !h.Valid() {
		return
	}
	if name == host.ActiveProperty {
		b.SetActive(h, true)
		return
	}
	err := b.adapter.ClearProperty(h, name)
	b.observer.HostOp(OpClear, err)
	if err != nil {
		b.logger.Warn("host failed to clear property", slog.String("handle", h.String()), slog.String("property", name), slog.Any("error", err))
	}
}

func (b *Binding) Reparent(child, parent host.Handle) {
	if !child.Valid() || !parent.Valid() {
		return
	}
	err := b.adapter.Reparent(child, parent)
	b.observer.HostOp(OpReparent, err)
	if err != nil {
		b.logger.Error("host reparent failed", slog.String("child", child.String()), slog.String("parent", parent.String()), slog.Any("error", err))
	}
}

func (b *Binding) SetActive(h host.Handle, active bool) {
	if !h.Valid() {
		return
	}
	err := b.adapter.SetActive(h, active)
	b.observer.HostOp(OpActive, err)
	if err != nil {
		b.logger.Warn("host failed to set active", slog.String("handle", h.String()), slog.Bool("active", active), slog.Any("error", err))
	}
}

// Order restores sibling order, if the adapter supports it.
func (b *Binding) Order(parent host.Handle, children []host.Handle) {
	o, ok := b.adapter.(host.Orderer)
	if !ok || !parent.Valid() || len(children) < 2 {
		return
	}
	err := o.Order(parent, children)
	b.observer.HostOp(OpOrder, err)
	if err != nil {
		b.logger.Warn("host failed to order children", slog.String("parent", parent.String()), slog.Any("error", err))
	}
}

// Convert maps a script value to a host property value: nil for null and
// undefined, bool, float64, string, [host.Record] for objects made of 2-4
// numeric fields, the value itself for functions, and the exported Go value
// for anything else.
func Convert(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		switch x := v.Export().(type) {
		case int64:
			return float64(x)
		case float64, string, bool:
			return x
		default:
			return v.String()
		}
	}
	if _, fn := goja.AssertFunction(obj); fn {
		return v
	}
	if rec, ok := toRecord(obj); ok {
		return rec
	}
	return obj.Export()
}

func toRecord(obj *goja.Object) (host.Record, bool) {
	if obj.ClassName() != "Object" {
		return nil, false
	}
	keys := obj.Keys()
	if len(keys) < 2 || len(keys) > 4 {
		return nil, false
	}
	rec := make(host.Record, len(keys))
	for _, k := range keys {
		fv := obj.Get(k)
		if _, isObj := fv.(*goja.Object); isObj || fv == nil {
			return nil, false
		}
		switch x := fv.Export().(type) {
		case int64:
			rec[k] = float64(x)
		case float64:
			rec[k] = x
		default:
			return nil, false
		}
	}
	return rec, true
}
