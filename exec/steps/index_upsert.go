package steps

import (
	"context"
	"fmt"

	"github.com/bazaarvoice/qtype/adapters/search"
	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/types"
)

// IndexUpsert is the canonical index-write executor (§4.G.4): batched,
// it converts the batch's RAGChunk-typed input variable into the index's
// native shape and writes it in one call, then forwards every message in
// the batch unchanged (unlike Collect/FileSink, IndexUpsert has no
// finalize-only output — each batch's write happens as soon as the batch
// fills, per §4.F.2's batch_config).
type IndexUpsert struct {
	step  *resolve.Step
	index search.Index
}

// NewIndexUpsert constructs an IndexUpsert processor. index is the client
// resolved for step.Index (package adapters/search).
func NewIndexUpsert(step *resolve.Step, index search.Index) (*IndexUpsert, error) {
	if step.Index == nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("index_upsert step requires an index")}
	}
	if index == nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("index_upsert step requires a resolved index client")}
	}
	if len(step.Inputs) == 0 {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("index_upsert step requires an input")}
	}
	return &IndexUpsert{step: step, index: index}, nil
}

func (IndexUpsert) SpanKind() exec.SpanKind { return exec.SpanRetriever }

// ProcessBatch implements exec.BatchProcessor.
func (i *IndexUpsert) ProcessBatch(ctx context.Context, batch []flow.FlowMessage, emit func(flow.FlowMessage)) error {
	chunks := make([]types.RAGChunk, 0, len(batch))
	for _, msg := range batch {
		v, ok := msg.GetVariable(i.step.Inputs[0], true)
		if !ok {
			return fmt.Errorf("exec/steps: index_upsert step %q: input %q is unset", i.step.ID, i.step.Inputs[0])
		}
		obj, ok := v.(jsonvalue.Object)
		if !ok {
			return fmt.Errorf("exec/steps: index_upsert step %q: input %q is not a rag_chunk", i.step.ID, i.step.Inputs[0])
		}
		chunks = append(chunks, ragChunkFromValue(obj))
	}

	if err := i.index.Upsert(ctx, chunks); err != nil {
		return fmt.Errorf("exec/steps: index_upsert step %q: %w", i.step.ID, err)
	}

	for _, msg := range batch {
		emit(msg)
	}
	return nil
}

func (*IndexUpsert) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }
