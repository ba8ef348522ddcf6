// Package resolve implements the semantic resolver and validator (§4.D):
// it builds a single id->object lookup map from a dsl.Document, replaces
// every string reference with the direct object, and validates the
// structural invariants of §3, producing a fully-resolved semantic model.
package resolve

import (
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/types"
)

// Document is the resolved semantic model: every reference field that was
// a dsl.Ref is now a direct pointer to the target object.
type Document struct {
	Models        map[string]*Model
	Tools         map[string]*Tool
	Indexes       map[string]*Index
	Flows         map[string]*Flow
	AuthProviders map[string]*AuthProvider
	Variables     map[string]*types.Variable
	Types         map[string]*types.CustomType
	Memories      map[string]*Memory
	Secrets       map[string]*Secret
}

// Model is the resolved form of dsl.Model.
type Model struct {
	ID       string
	Provider string
	ModelID  string
	Auth     *AuthProvider
	Config   map[string]any
}

// Index is the resolved form of dsl.Index.
type Index struct {
	ID             string
	Provider       string
	EmbeddingModel *Model
	Config         map[string]any
}

// Tool is the resolved form of dsl.Tool. InputSchema and OutputSchema are
// compiled once at resolve time (§4.D) from Parameters, so the tool_call
// executor validates a call's bound input and returned result against them
// on every invocation without recompiling per call.
type Tool struct {
	ID          string
	Description string
	Kind        dsl.ToolKind
	Parameters  []dsl.ToolParameter
	ModulePath  string
	Function    string
	URL         string
	Method      string
	Headers     map[string]string
	Auth        *AuthProvider

	InputSchema  *jsonschema.Schema
	OutputSchema *jsonschema.Schema
}

// AuthProvider is the resolved form of dsl.AuthProvider.
type AuthProvider struct {
	ID     string
	Kind   dsl.AuthProviderKind
	Secret *Secret
	Config map[string]any
}

// Memory is the resolved form of dsl.Memory.
type Memory struct {
	ID       string
	Provider string
	Config   map[string]any
}

// Secret is the resolved form of dsl.Secret.
type Secret struct {
	ID         string
	SecretName string
	Key        string
}

// Step is the resolved form of dsl.Step: reference fields discoverable by
// step kind (§4.D: "LLM-inference steps embed a model and optional memory;
// tools embed auth; searches embed indexes; ... document-source steps
// embed auth") are promoted to typed pointers; the remainder of
// kind-specific configuration stays in Fields for the executor
// constructors in package exec/steps to decode.
type Step struct {
	ID          string
	Type        dsl.StepKind
	Cardinality dsl.Cardinality
	Inputs      []string
	Outputs     []string
	ErrorMode   dsl.ErrorMode
	Concurrency dsl.ConcurrencyConfig
	Batch       dsl.BatchConfig
	Cache       *dsl.CacheConfig
	Fields      map[string]any

	Model  *Model        // llm_inference
	Memory *Memory       // llm_inference, optional
	Tool   *Tool         // tool_call
	Index  *Index        // search, index_upsert
	Auth   *AuthProvider // document_source, sql_source
	Flow   *Flow         // nested flow step
}

// Flow is the resolved form of dsl.Flow.
type Flow struct {
	ID      string
	Steps   []*Step
	Inputs  []string
	Outputs []string
	Mode    dsl.Mode
}
