package types

import "github.com/bazaarvoice/qtype/internal/jsonvalue"

// Variable is a named, typed slot carrying a value between steps (§3). It
// has no mutable identity at runtime; variables are keys in a per-message
// map (flow.FlowMessage.Variables).
type Variable struct {
	ID       string
	Type     Type
	Optional bool
	// Description documents the variable's purpose for authors and
	// telemetry surfacing; it has no effect on resolution or execution.
	Description string
}

// CustomType is a user-declared nominal type with named properties (§3).
// Property types are parsed with the same grammar as variable types.
type CustomType struct {
	ID          string
	Description string
	Properties  map[string]Property
}

// Property is one field of a CustomType. Default, when non-nil, is used by
// the FileSource executor (§4.G.4) when a row has no column for the
// property; the Construct executor does not apply defaults.
type Property struct {
	Type     Type
	Optional bool
	Default  jsonvalue.Value
}

// Lookup returns the named property and whether it exists.
func (c CustomType) Lookup(name string) (Property, bool) {
	p, ok := c.Properties[name]
	return p, ok
}
