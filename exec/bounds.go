package exec

// Bounds describes how a step result has been bounded relative to the
// full underlying data set it was drawn from — a provider-agnostic
// contract executors attach to FlowMessage.Metadata so sinks and
// services can surface truncation without re-inspecting step-specific
// fields (adapted from the runtime's tool-result bounds contract: the
// same "Returned/Total/Truncated/RefinementHint" shape, generalized from
// tool results to any step that caps its output, e.g. Search's
// default_top_k).
//
// Returned reports how many items are present in the bounded view.
// Total, when non-nil, reports the best-effort total before truncation.
// Truncated indicates whether a cap was applied. RefinementHint is short
// human-readable guidance on how to narrow the query when Truncated.
type Bounds struct {
	Returned       int
	Total          *int
	Truncated      bool
	RefinementHint string
}

// BoundedResult is implemented by step result types that expose
// boundedness metadata directly, so an executor can prefer it over
// inferring truncation from a raw result count.
type BoundedResult interface {
	Bounds() Bounds
}

// MetadataKeyBounds is the FlowMessage.Metadata key an executor stores a
// Bounds value under.
const MetadataKeyBounds = "bounds"
