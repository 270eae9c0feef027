// Package host defines the contract between the reconciler and a retained-mode
// host object system.
//
// The reconciler never inspects a [Handle]; it only threads handles through
// the [Adapter] methods. Implementations own the actual objects, and decide
// how property values are applied.
package host

import "strconv"

// Handle identifies a host object. The zero value means "no object".
type Handle uint64

// Valid reports whether h refers to an object.
func (h Handle) Valid() bool { return h != 0 }

func (h Handle) String() string {
	if h == 0 {
		return "<none>"
	}
	return "#" + strconv.FormatUint(uint64(h), 10)
}

// Well-known object kinds created by the reconciler itself. Host elements use
// their own tag as the kind.
const (
	// TextKind is the kind of object backing a text node. Its content is
	// applied via the TextProperty property.
	TextKind = "text"
	// ComponentKind is the kind of the wrapper object created for every
	// mounted component.
	ComponentKind = "component"
	// RootKind is the kind of a container created for a root with no
	// explicit container.
	RootKind = "root"
)

// Reserved property names.
const (
	TextProperty   = "text"
	NameProperty   = "name"
	ActiveProperty = "active"
)

// Adapter is the host object system consumed by the reconciler.
//
// Values passed to SetProperty are nil, bool, float64, string, [Record], or an
// opaque script value (for example a callback) that the host may store
// verbatim.
type Adapter interface {
	Create(tag string) (Handle, error)
	Destroy(h Handle) error
	SetProperty(h Handle, name string, value any) error
	// ClearProperty resets the named property to the model's null value.
	ClearProperty(h Handle, name string) error
	// Reparent attaches child as the last child of parent.
	Reparent(child, parent Handle) error
	SetActive(h Handle, active bool) error
}

// Orderer is optionally implemented by adapters that track sibling order.
// Order is called with the reconciler-managed children of parent, in render
// order, after a reconciliation pass touched that parent. Children of parent
// that are not listed keep their positions.
type Orderer interface {
	Order(parent Handle, children []Handle) error
}

// Record is a small structured value with 2-4 numeric fields, as converted
// from script objects such as {x, y, z} or {r, g, b, a}.
type Record map[string]float64

// Has reports whether all the named fields are present.
func (r Record) Has(fields ...string) bool {
	for _, f := range fields {
		if _, ok := r[f]; !ok {
			return false
		}
	}
	return true
}

// Get returns the named field, or def if it is missing.
func (r Record) Get(field string, def float64) float64 {
	if v, ok := r[field]; ok {
		return v
	}
	return def
}
