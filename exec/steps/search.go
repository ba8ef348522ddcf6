package steps

import (
	"context"
	"fmt"

	"github.com/bazaarvoice/qtype/adapters/search"
	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
)

type searchFields struct {
	DefaultTopK int            `json:"default_top_k"`
	Filter      map[string]any `json:"filter"`
}

// Search is the canonical vector-search executor (§4.G.5): it embeds the
// input text query, runs a similarity search against the resolved index,
// and binds the ranked results to a single list output. Concurrency
// (running the embedding+query round trip off the caller's goroutine) is
// provided generically by exec.Base's worker pool (§4.F.1 step 3), per
// spec.md "the actual request runs on a worker pool to avoid blocking the
// event loop" — this executor needs no pool of its own.
type Search struct {
	step     *resolve.Step
	index    search.Index
	embedder search.Embedder
	fields   searchFields
}

// NewSearch constructs a Search processor. index and embedder are the
// clients resolved for step.Index (package adapters/search).
func NewSearch(step *resolve.Step, index search.Index, embedder search.Embedder) (*Search, error) {
	if step.Index == nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("search step requires an index")}
	}
	if index == nil || embedder == nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("search step requires a resolved index client and embedder")}
	}
	if len(step.Inputs) == 0 || len(step.Outputs) == 0 {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("search step requires one input and one output")}
	}
	var fields searchFields
	if err := decodeFields(step.Fields, &fields); err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	if fields.DefaultTopK <= 0 {
		fields.DefaultTopK = 10
	}
	return &Search{step: step, index: index, embedder: embedder, fields: fields}, nil
}

func (Search) SpanKind() exec.SpanKind { return exec.SpanRetriever }

func (s *Search) ProcessMessage(ctx context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	v, ok := msg.GetVariable(s.step.Inputs[0], true)
	if !ok {
		return fmt.Errorf("exec/steps: search step %q: input %q is unset", s.step.ID, s.step.Inputs[0])
	}
	query := textContent(v)

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return fmt.Errorf("exec/steps: search step %q: embed query: %w", s.step.ID, err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("exec/steps: search step %q: embedder returned no vector", s.step.ID)
	}

	results, err := s.index.Query(ctx, vectors[0], s.fields.DefaultTopK, s.fields.Filter)
	if err != nil {
		return fmt.Errorf("exec/steps: search step %q: %w", s.step.ID, err)
	}

	list := make(jsonvalue.List, len(results))
	for i, r := range results {
		list[i] = searchResultToValue(r)
	}

	out := msg.CopyWithVariables(map[string]jsonvalue.Value{s.step.Outputs[0]: list})
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	out.Metadata[exec.MetadataKeyBounds] = searchBounds(len(results), s.fields.DefaultTopK)
	emit(out)
	return nil
}

// searchBounds reports a result set as truncated when it fills topK:
// there may be more matches beyond the requested count, even though the
// index never confirms an exact total.
func searchBounds(returned, topK int) exec.Bounds {
	truncated := returned >= topK
	b := exec.Bounds{Returned: returned, Truncated: truncated}
	if truncated {
		b.RefinementHint = "narrow the query or attach a filter to reduce the candidate set"
	}
	return b
}

func (*Search) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }
