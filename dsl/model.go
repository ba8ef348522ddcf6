package dsl

// Model is the surface descriptor for an LLM or embedding model (§3). Auth
// is a Ref since model credentials are typically provider-scoped auth.
type Model struct {
	ID       string
	Provider string
	ModelID  string
	Auth     *Ref
	Config   map[string]any
}

// Index is the surface descriptor for a vector or document index (§3).
// Indexes embed embedding models (§4.D embedded-object discovery), so
// EmbeddingModel is a Ref.
type Index struct {
	ID             string
	Provider       string
	EmbeddingModel *Ref
	Config         map[string]any
}

// Source is the surface descriptor shared by FileSource/SQLSource/
// DocumentSource steps where the reader/connection is reusable across
// steps; most sources are declared inline on the step itself (§4.G.4), but
// a standalone Source lets authors share a connection across steps.
type Source struct {
	ID     string
	Kind   StepKind
	URI    string
	Auth   *Ref
	Config map[string]any
}
