package exec

import (
	"context"

	"github.com/bazaarvoice/qtype/flow"
)

// BatchProcessor is implemented by executors that benefit from vectorized
// calls (embedding, bulk index upsert), processing a fixed-size batch of
// messages at once instead of one at a time (§4.F.2).
type BatchProcessor interface {
	SpanKind() SpanKind
	ProcessBatch(ctx context.Context, batch []flow.FlowMessage, emit func(flow.FlowMessage)) error
	Finalize(ctx context.Context, emit func(flow.FlowMessage)) error
}

// batchAdapter lets a BatchProcessor satisfy Processor so BatchedBase can
// reuse Base.Execute's orchestration, with prepare overridden to group
// messages instead of passing them through one at a time.
type batchAdapter struct {
	inner BatchProcessor
}

func (a batchAdapter) SpanKind() SpanKind { return a.inner.SpanKind() }

func (a batchAdapter) ProcessMessage(ctx context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	return a.inner.ProcessBatch(ctx, []flow.FlowMessage{msg}, emit)
}

func (a batchAdapter) Finalize(ctx context.Context, emit func(flow.FlowMessage)) error {
	return a.inner.Finalize(ctx, emit)
}

// BatchedBase overrides Base's prepare stage to group successful messages
// into fixed-size batches (§4.F.2, batch_config.batch_size, default 1).
type BatchedBase struct {
	*Base
	BatchSize int
}

// NewBatchedBase constructs a BatchedBase wrapping proc; batchSize <= 0 is
// treated as 1 (no batching), matching the default in §4.F.2.
func NewBatchedBase(stepID string, proc BatchProcessor, batchSize int) *BatchedBase {
	if batchSize <= 0 {
		batchSize = 1
	}
	base := NewBase(stepID, batchAdapter{inner: proc})
	base.BatchProc = proc
	return &BatchedBase{Base: base, BatchSize: batchSize}
}

// Execute implements StepExecutor, reusing Base's orchestration but with
// prepare grouping messages into batches of BatchSize before dispatch.
func (b *BatchedBase) Execute(ctx context.Context, input <-chan flow.FlowMessage) <-chan flow.FlowMessage {
	original := b.Base.prepareFunc
	b.Base.prepareFunc = b.prepareBatches
	defer func() { b.Base.prepareFunc = original }()
	return b.Base.Execute(ctx, input)
}

func (b *BatchedBase) prepareBatches(ctx context.Context, in <-chan flow.FlowMessage) <-chan unit {
	out := make(chan unit)
	go func() {
		defer close(out)
		batch := make([]flow.FlowMessage, 0, b.BatchSize)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			select {
			case out <- unit{batch: batch}:
			case <-ctx.Done():
			}
			batch = make([]flow.FlowMessage, 0, b.BatchSize)
		}
		for msg := range in {
			batch = append(batch, msg)
			if len(batch) >= b.BatchSize {
				flush()
			}
		}
		flush()
	}()
	return out
}
