package dsl

// Document is the top-level surface object produced by the loader (§6).
// It holds every component list the YAML top level can carry: a full
// application document populates several of them, while a standalone flow
// or a bare component list (modular composition) populates only its own,
// mirroring how the YAML top level is shaped by its keys rather than an
// explicit discriminator. A standalone Agent document has no field here.
type Document struct {
	Models        []Model
	Tools         []Tool
	Indexes       []Index
	Flows         []Flow
	AuthProviders []AuthProvider
	Variables     []Variable
	Types         []CustomType
	Memories      []Memory
	Secrets       []Secret
}

// Variable is the surface form of types.Variable: its Type field is still
// an unparsed grammar string (e.g. "list[text]?") until the resolver runs.
type Variable struct {
	ID          string
	Type        string
	Description string
}

// CustomType is the surface form of types.CustomType; property types are
// still raw grammar strings.
type CustomType struct {
	ID          string
	Description string
	Properties  map[string]Property
}

// Property is the surface form of types.Property.
type Property struct {
	Type     string
	Default  any
}

// Memory is a declarative descriptor for LLM chat memory policy, embedded
// by LLM-inference steps (§4.D embedded-object discovery).
type Memory struct {
	ID       string
	Provider string
	Config   map[string]any
}

// Secret is a declarative reference to a secret-manager-resolved value
// (§4.J); SecretName and Key mirror SecretReference{secret_name, key?}.
type Secret struct {
	ID         string
	SecretName string
	Key        string
}
