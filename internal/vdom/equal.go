package vdom

import (
	"math"

	"github.com/dop251/goja"
)

// SameValue reports whether two script values are equal for the purpose of
// property and dependency diffing.
//
// Objects compare by identity and primitives by value. Unlike strict
// equality, NaN equals NaN; +0 and -0 are equal. A Go nil is treated as
// undefined.
func SameValue(a, b goja.Value) bool {
	if a == nil {
		a = goja.Undefined()
	}
	if b == nil {
		b = goja.Undefined()
	}
	if a.StrictEquals(b) {
		return true
	}
	return isNaN(a) && isNaN(b)
}

// SameValues compares two value lists elementwise with [SameValue].
func SameValues(a, b []goja.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !SameValue(a[i], b[i]) {
			return false
		}
	}
	return true
}

func isNaN(v goja.Value) bool {
	if _, ok := v.(*goja.Object); ok {
		return false
	}
	f, ok := v.Export().(float64)
	return ok && math.IsNaN(f)
}
