package resolve

// registry accumulates the id->object lookup map described in §4.D. Top-
// level declarations are the canonical source for a given id; an object
// embedded inline under a step (§4.D "a step may embed a full tool") is
// only registered if no top-level declaration with the same id already
// claimed it. Two entries under the same id are accepted only when they
// are the same pointer; distinct values are a duplicate even when their
// contents are equal. The Go loader decodes every YAML node into a fresh
// struct value, so two declarations of one id always count as duplicates.
type registry struct {
	byKindAndID map[string]map[string]any
	issues      []Issue
}

func newRegistry() *registry {
	return &registry{byKindAndID: map[string]map[string]any{}}
}

// register records obj under (kind, id). Returns the canonical pointer to
// use going forward: if id is new, obj itself; if id already exists and
// the existing value is the same pointer as obj, the existing pointer
// (legal re-embedding, no issue); otherwise the existing pointer is still
// returned but a duplicate_id issue is recorded.
func (r *registry) register(kind, id string, obj any) any {
	bucket, ok := r.byKindAndID[kind]
	if !ok {
		bucket = map[string]any{}
		r.byKindAndID[kind] = bucket
	}
	existing, ok := bucket[id]
	if !ok {
		bucket[id] = obj
		return obj
	}
	if existing != obj {
		r.issues = append(r.issues, duplicateIDIssue(id, existing, obj))
	}
	return existing
}

func (r *registry) lookup(kind, id string) (any, bool) {
	bucket, ok := r.byKindAndID[kind]
	if !ok {
		return nil, false
	}
	v, ok := bucket[id]
	return v, ok
}
