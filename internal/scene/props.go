package scene

import (
	"errors"
	"fmt"
	"strconv"

	"fortio.org/safecast"
	"github.com/joeycumines/goja-scene/internal/host"
	"github.com/lucasb-eyer/go-colorful"
)

// ErrPropertyType reports a value that does not fit the property's
// registered type.
var ErrPropertyType = errors.New("scene: property type mismatch")

// PropertyType is the declared type of a registered property.
type PropertyType uint8

const (
	TypeAny PropertyType = iota
	TypeString
	TypeNumber
	TypeInteger
	TypeBool
	TypeVec2
	TypeVec3
	TypeColor
	// TypeCallback stores a script function verbatim.
	TypeCallback
)

func (t PropertyType) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeInteger:
		return "integer"
	case TypeBool:
		return "bool"
	case TypeVec2:
		return "vec2"
	case TypeVec3:
		return "vec3"
	case TypeColor:
		return "color"
	case TypeCallback:
		return "callback"
	default:
		return "PropertyType(" + strconv.Itoa(int(t)) + ")"
	}
}

type Vec2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Color channels are in [0, 1].
type Color struct {
	R float64 `json:"r" msgpack:"r"`
	G float64 `json:"g" msgpack:"g"`
	B float64 `json:"b" msgpack:"b"`
	A float64 `json:"a" msgpack:"a"`
}

// Callback is an opaque script function stored on an object, for example
// onClick. The scene never calls it; see [Graph.Callback].
type Callback struct {
	Fn any
}

// Kind describes an object kind: the typed properties it accepts.
// Properties not listed fall back to the common set, then to a best-effort
// setter that stores the converted value as-is.
type Kind struct {
	Name  string
	Props map[string]PropertyType
}

// common properties accepted by every kind.
var common = map[string]PropertyType{
	"tag":              TypeString,
	"position":         TypeVec3,
	"rotation":         TypeVec3,
	"scale":            TypeVec3,
	"anchoredPosition": TypeVec2,
	"sizeDelta":        TypeVec2,
	"anchorMin":        TypeVec2,
	"anchorMax":        TypeVec2,
	"pivot":            TypeVec2,
	"onClick":          TypeCallback,
}

// DefaultKinds returns the built-in kinds.
func DefaultKinds() []Kind {
	textProps := map[string]PropertyType{
		"text":      TypeString,
		"color":     TypeColor,
		"fontSize":  TypeNumber,
		"alignment": TypeString,
	}
	return []Kind{
		{Name: host.RootKind},
		{Name: host.ComponentKind},
		{Name: "panel", Props: map[string]PropertyType{"color": TypeColor}},
		{Name: "canvas", Props: map[string]PropertyType{
			"renderMode":          TypeString,
			"referenceResolution": TypeVec2,
			"sortingOrder":        TypeInteger,
		}},
		{Name: "image", Props: map[string]PropertyType{
			"color":  TypeColor,
			"sprite": TypeString,
		}},
		{Name: host.TextKind, Props: textProps},
		{Name: "textMeshPro", Props: textProps},
		{Name: "button", Props: map[string]PropertyType{
			"text":         TypeString,
			"color":        TypeColor,
			"interactable": TypeBool,
		}},
	}
}

// lookupType resolves the declared type of a property on a kind.
func (k *Kind) lookupType(name string) PropertyType {
	if k != nil {
		if t, ok := k.Props[name]; ok {
			return t
		}
	}
	if t, ok := common[name]; ok {
		return t
	}
	return TypeAny
}

// coerce converts an adapter value to the Go representation of t.
func coerce(t PropertyType, v any) (any, error) {
	mismatch := func() error {
		return fmt.Errorf("%w: want %s, got %T", ErrPropertyType, t, v)
	}
	switch t {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
		return nil, mismatch()

	case TypeNumber:
		if x, ok := v.(float64); ok {
			return x, nil
		}
		return nil, mismatch()

	case TypeInteger:
		x, ok := v.(float64)
		if !ok {
			return nil, mismatch()
		}
		n, err := safecast.Round[int32](x)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPropertyType, err)
		}
		return int(n), nil

	case TypeBool:
		if x, ok := v.(bool); ok {
			return x, nil
		}
		return nil, mismatch()

	case TypeVec2:
		r, ok := v.(host.Record)
		if !ok || !r.Has("x", "y") {
			return nil, mismatch()
		}
		return Vec2{X: r["x"], Y: r["y"]}, nil

	case TypeVec3:
		r, ok := v.(host.Record)
		if !ok || !r.Has("x", "y") {
			return nil, mismatch()
		}
		return Vec3{X: r["x"], Y: r["y"], Z: r.Get("z", 0)}, nil

	case TypeColor:
		switch x := v.(type) {
		case host.Record:
			if !x.Has("r", "g", "b") {
				return nil, mismatch()
			}
			return Color{R: x["r"], G: x["g"], B: x["b"], A: x.Get("a", 1)}, nil
		case string:
			c, err := parseHexColor(x)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPropertyType, err)
			}
			return c, nil
		}
		return nil, mismatch()

	case TypeCallback:
		if v == nil {
			return nil, mismatch()
		}
		if _, ok := v.(string); ok {
			return nil, mismatch()
		}
		return Callback{Fn: v}, nil
	}
	return v, nil
}

// parseHexColor parses #rgb, #rrggbb and #rrggbbaa.
func parseHexColor(s string) (Color, error) {
	alpha := 1.0
	switch len(s) {
	case 4, 7, 9:
	default:
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid color %q", s)
		}
		s, alpha = s[:7], float64(a)/255
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: c.R, G: c.G, B: c.B, A: alpha}, nil
}
