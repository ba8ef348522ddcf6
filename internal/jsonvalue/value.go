// Package jsonvalue defines the tagged-union value representation used at
// variable boundaries: the dynamically-typed payload a FlowMessage variable
// holds once it crosses from YAML/JSON into the runtime. It mirrors the
// primitive grammar in package types but adds the Unset and Null markers
// needed by the three-state semantics of FlowMessage.variables (absent,
// UNSET, present-but-null).
package jsonvalue

import "encoding/json"

// Value is a dynamically-typed variable payload. Concrete kinds are Text,
// Int, Float, Bool, Bytes, List, Object, Null, and Unset. The unexported
// marker method restricts implementations to this package so consumers can
// switch exhaustively without a default case silently swallowing new kinds.
type Value interface {
	jsonValue()
}

// Text holds a UTF-8 string value (the "text" primitive).
type Text string

func (Text) jsonValue() {}

// Int holds an integer value.
type Int int64

func (Int) jsonValue() {}

// Float holds a floating point value.
type Float float64

func (Float) jsonValue() {}

// Bool holds a boolean value.
type Bool bool

func (Bool) jsonValue() {}

// Bytes holds an opaque byte payload (the "bytes", "file", "image", "audio",
// "video" primitives at rest; adapters interpret the content).
type Bytes []byte

func (Bytes) jsonValue() {}

// List holds an ordered sequence of values, the realization of list[T].
type List []Value

func (List) jsonValue() {}

// Object holds a custom-type instance as a field name to value map.
type Object map[string]Value

func (Object) jsonValue() {}

// Null is the explicit, present "no value" marker: distinct from Unset,
// which means the key is absent or explicitly unset.
type Null struct{}

func (Null) jsonValue() {}

// unsetValue is the concrete Unset sentinel type; use the exported Unset
// value rather than constructing one directly.
type unsetValue struct{}

func (unsetValue) jsonValue() {}

// Unset is the distinguished sentinel for "present-but-UNSET" per §4.E:
// a variable set to Unset is different from both an absent key and a Null
// value. Only serialization elides it.
var Unset Value = unsetValue{}

// IsUnset reports whether v is the Unset sentinel.
func IsUnset(v Value) bool {
	_, ok := v.(unsetValue)
	return ok
}

// MarshalJSON renders a Value tree to its JSON wire form. Unset values have
// no valid JSON representation on their own; callers must elide variables
// holding Unset before marshaling a variable map (see flow.FlowMessage).
func MarshalJSON(v Value) ([]byte, error) {
	return json.Marshal(toPlain(v))
}

func toPlain(v Value) any {
	switch t := v.(type) {
	case Text:
		return string(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case Bool:
		return bool(t)
	case Bytes:
		return []byte(t)
	case List:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toPlain(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = toPlain(e)
		}
		return out
	case Null:
		return nil
	case unsetValue:
		return nil
	default:
		return nil
	}
}

// FromPlain converts a plain Go value decoded from JSON/YAML (string,
// float64, bool, []byte, []any, map[string]any, nil) into a Value. Unknown
// shapes are rejected by returning Null, since the loader is expected to
// pass only JSON-decodable scalars, slices, and maps.
func FromPlain(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null{}
	case string:
		return Text(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case bool:
		return Bool(t)
	case []byte:
		return Bytes(t)
	case []any:
		out := make(List, len(t))
		for i, e := range t {
			out[i] = FromPlain(e)
		}
		return out
	case map[string]any:
		out := make(Object, len(t))
		for k, e := range t {
			out[k] = FromPlain(e)
		}
		return out
	default:
		return Null{}
	}
}
