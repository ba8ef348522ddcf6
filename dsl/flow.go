package dsl

// Mode discriminates whether a Flow accepts a single message (Complete) or
// draws on session history with the first chat-message input as the
// current turn (Chat), per §3.
type Mode string

const (
	ModeComplete Mode = "complete"
	ModeChat     Mode = "chat"
)

// Flow is the surface form of a flow document (§3): an ordered list of
// Steps plus its own input/output variable ids and Mode. A Flow is itself
// a Step (flows nest); FlowStep below is the embedding form used when one
// flow references another as a step.
type Flow struct {
	ID      string
	Steps   []Step
	Inputs  []string
	Outputs []string
	Mode    Mode
}

// Cardinality advertises whether a step is expected to emit one output
// message per input (One) or zero-or-more (Many); §3 notes this is a
// contract advertised to the runtime, not a hard invariant.
type Cardinality string

const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// StepKind is the `type:` discriminator distinguishing the canonical
// executors of §4.G.
type StepKind string

const (
	StepLLMInference   StepKind = "llm_inference"
	StepToolCall       StepKind = "tool_call"
	StepEcho           StepKind = "echo"
	StepConstruct      StepKind = "construct"
	StepExplode        StepKind = "explode"
	StepCollect        StepKind = "collect"
	StepAggregate      StepKind = "aggregate"
	StepFieldExtractor StepKind = "field_extractor"
	StepFileSource     StepKind = "file_source"
	StepSQLSource      StepKind = "sql_source"
	StepDocumentSource StepKind = "document_source"
	StepFileSink       StepKind = "file_sink"
	StepIndexUpsert    StepKind = "index_upsert"
	StepSearch         StepKind = "search"
	StepDecoder        StepKind = "decoder"
	StepFlow           StepKind = "flow"
)

// ErrorMode governs behaviour when a step error occurs (§7): Fail aborts
// the flow, Drop converts the message to a failed message that bypasses
// downstream processing, Cache additionally persists the failure so
// replays are idempotent.
type ErrorMode string

const (
	ErrorModeFail  ErrorMode = "fail"
	ErrorModeDrop  ErrorMode = "drop"
	ErrorModeCache ErrorMode = "cache"
)

// ConcurrencyConfig controls per-step worker-pool width (§4.F.1 step 3,
// §5).
type ConcurrencyConfig struct {
	NumWorkers int
}

// BatchConfig controls BatchedStepExecutor grouping (§4.F.2).
type BatchConfig struct {
	BatchSize int
}

// CacheConfig enables the content-addressable executor cache (§4.F.4) for
// a step.
type CacheConfig struct {
	Directory string
	Namespace string
	Version   string
}

// Step is the surface form of a flow node (§3). Kind-specific fields live
// in Fields, a raw decoded map keyed by the same names the YAML document
// uses; the resolver's per-kind decoders (package resolve) type it into
// the concrete executor config after reference normalization. This mirrors
// §4.B's discriminated-union-by-type-field approach without requiring a
// Go union type per step kind at the surface layer.
type Step struct {
	ID          string
	Type        StepKind
	Cardinality Cardinality
	Inputs      []string
	Outputs     []string
	ErrorMode   ErrorMode
	Concurrency ConcurrencyConfig
	Batch       BatchConfig
	Cache       *CacheConfig
	Fields      map[string]any
}
