// Package dsl defines the surface document model: the shape the YAML
// loader (package loader) produces directly from a document, before the
// resolver (package resolve) replaces string references with object
// pointers. Cross-references appear here as either nested objects or bare
// strings (§4.B); a normalization pass rewrites bare strings into Ref
// stubs so later stages never special-case the two forms.
package dsl

// Ref is the normalized form of a `Ref<X> | string` field: either a bare id
// pointing at a not-yet-resolved object ("my_key_auth"), or it wraps an
// inline object embedded at the point of reference. Exactly one of ID or
// Inline is set after normalization.
type Ref struct {
	ID     string
	Inline any
}

// NewRefID constructs a Ref from a bare id string.
func NewRefID(id string) Ref { return Ref{ID: id} }

// NewRefInline constructs a Ref wrapping an embedded object.
func NewRefInline(v any) Ref { return Ref{Inline: v} }

// IsInline reports whether the reference embeds an object rather than
// pointing at one by id.
func (r Ref) IsInline() bool { return r.Inline != nil }

// NormalizeRef coerces a raw YAML-decoded value (string or map[string]any)
// into a Ref, per §4.B's field-level normalization pass: a bare string
// becomes a by-id Ref; anything else is treated as an inline object to be
// decoded by the caller into the expected concrete type.
func NormalizeRef(raw any) Ref {
	if s, ok := raw.(string); ok {
		return NewRefID(s)
	}
	return NewRefInline(raw)
}
