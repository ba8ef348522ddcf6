// Package exec implements the StepExecutor framework (§4.F): the base
// executor orchestration (filter/prepare/process/progress/cache/finalize/
// telemetry), the batched executor, the progress tracker, and the
// content-addressable cache integration. Canonical executors (package
// exec/steps) implement Processor and are driven by Base.Execute.
package exec

import (
	"context"
	"reflect"
	"sync"

	"github.com/bazaarvoice/qtype/cache"
	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/telemetry"
)

// SpanKind is the telemetry classification a step advertises (§4.F.1).
type SpanKind string

const (
	SpanGeneric   SpanKind = "generic"
	SpanLLM       SpanKind = "llm"
	SpanTool      SpanKind = "tool"
	SpanRetriever SpanKind = "retriever"
)

// Processor is implemented by a concrete step executor (§4.F.1). emit
// delivers zero, one, or many output messages per call, realizing "async
// stream<FlowMessage>" as a callback rather than a generator, the
// idiomatic Go shape for a function producing a bounded or unbounded
// sequence without a coroutine primitive.
type Processor interface {
	SpanKind() SpanKind
	// ProcessMessage handles one non-failed input message.
	ProcessMessage(ctx context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error
	// Finalize is invoked once after the input stream is exhausted
	// (§4.F.1 step 7); most executors implement it as a no-op.
	Finalize(ctx context.Context, emit func(flow.FlowMessage)) error
}

// StepExecutor is the contract consumed by the flow runner (package
// runner): construct one per step, then call Execute once per run (§6
// Step-executor boundary).
type StepExecutor interface {
	Execute(ctx context.Context, input <-chan flow.FlowMessage) <-chan flow.FlowMessage
}

// Base orchestrates the eight stages of §4.F.1 around a Processor. It wraps
// the Processor (constructed via NewBase) rather than being subclassed,
// since Go has no inheritance; concrete executors implement Processor and
// the caller wraps them in a *Base.
type Base struct {
	StepID      string
	Proc        Processor
	ErrorMode   dsl.ErrorMode
	NumWorkers  int
	CacheConfig *dsl.CacheConfig
	CacheStore  cache.Store
	Progress    *ProgressTracker
	Tracer      telemetry.Tracer
	Metrics     telemetry.Metrics
	Logger      telemetry.Logger

	// BatchProc, when set by NewBatchedBase, receives whole batches
	// directly; a plain Base leaves this nil and processes units
	// one message at a time via Proc instead.
	BatchProc BatchProcessor

	// prepareFunc is the stage-2 hook (§4.F.1 step 2). BatchedBase swaps
	// this for the duration of Execute to group messages into batches
	// instead of Base's identity (one message per unit) implementation.
	prepareFunc func(context.Context, <-chan flow.FlowMessage) <-chan unit
}

// NewBase constructs a Base with sane defaults (one worker, no cache, a
// fresh ProgressTracker, no-op telemetry) that callers can override.
func NewBase(stepID string, proc Processor) *Base {
	b := &Base{
		StepID:     stepID,
		Proc:       proc,
		ErrorMode:  dsl.ErrorModeFail,
		NumWorkers: 1,
		Progress:   NewProgressTracker(nil),
		Tracer:     telemetry.NewNoopTracer(),
		Metrics:    telemetry.NewNoopMetrics(),
		Logger:     telemetry.NewNoopLogger(),
	}
	b.prepareFunc = b.prepare
	return b
}

// Execute implements StepExecutor. Output order is not required to match
// input order when NumWorkers > 1 (§4.F.1 step 4); between steps the
// channel itself provides strict FIFO delivery of whatever order this
// stage emits in (§5).
func (b *Base) Execute(ctx context.Context, input <-chan flow.FlowMessage) <-chan flow.FlowMessage {
	out := make(chan flow.FlowMessage)
	// Read the stage-2 hook now: BatchedBase restores it as soon as this
	// call returns, before the goroutine below reaches stage 2.
	prepare := b.prepareFunc

	go func() {
		defer close(out)

		toProcess := make(chan flow.FlowMessage)
		var failedMu sync.Mutex
		var failedAtEnd []flow.FlowMessage

		// Stage 1: filter. Failed messages bypass processing and are
		// re-emitted after the stream is exhausted (§4.F.1 step 1, §5).
		go func() {
			defer close(toProcess)
			for msg := range input {
				if msg.IsFailed() {
					failedMu.Lock()
					failedAtEnd = append(failedAtEnd, msg)
					failedMu.Unlock()
					continue
				}
				select {
				case toProcess <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()

		// Stage 2/3: bounded worker pool applying process (or batched
		// process, via b.prepareFunc, swappable by BatchedBase).
		prepared := prepare(ctx, toProcess)

		var wg sync.WaitGroup
		workers := b.NumWorkers
		if workers < 1 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for unit := range prepared {
					b.processUnit(ctx, unit, out)
				}
			}()
		}
		wg.Wait()

		// Stage 7: drain finalize() output.
		finalizeEmit := func(msg flow.FlowMessage) {
			select {
			case out <- msg:
			case <-ctx.Done():
			}
		}
		if err := b.Proc.Finalize(ctx, finalizeEmit); err != nil {
			out <- flow.New(nil).CopyWithError(b.StepID, err.Error(), errorType(err))
		}

		for _, msg := range failedAtEnd {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// prepare is the hook BatchedBase overrides to chunk messages into lists
// (§4.F.1 step 2). Base's identity implementation wraps each message as a
// single-message unit.
func (b *Base) prepare(ctx context.Context, in <-chan flow.FlowMessage) <-chan unit {
	out := make(chan unit)
	go func() {
		defer close(out)
		for msg := range in {
			select {
			case out <- unit{single: &msg}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// unit is one item flowing through the prepared stage: either a single
// message (Base) or a batch (BatchedBase).
type unit struct {
	single *flow.FlowMessage
	batch  []flow.FlowMessage
}

func (b *Base) processUnit(ctx context.Context, u unit, out chan<- flow.FlowMessage) {
	if u.single != nil {
		b.processSingleWithCache(ctx, *u.single, out)
		return
	}
	b.processBatch(ctx, u.batch, out)
}

func (b *Base) processSingleWithCache(ctx context.Context, msg flow.FlowMessage, out chan<- flow.FlowMessage) {
	if b.CacheConfig != nil && b.CacheStore != nil {
		key, err := cache.Fingerprint(msg.MarshalVariables())
		if err == nil {
			if cached, hit, _ := b.CacheStore.Get(ctx, b.CacheConfig.Namespace, b.StepID, b.CacheConfig.Version, key); hit {
				if result, err := decodeCachedPayload(cached, msg); err == nil {
					b.Progress.recordCacheHit()
					b.emitCached(ctx, result, out)
					return
				}
			}
			b.Progress.recordCacheMiss()
			b.runProcessMessage(ctx, msg, out, func(result flow.FlowMessage) {
				if result.IsFailed() && b.ErrorMode != dsl.ErrorModeCache {
					return
				}
				if payload, err := encodeCachedPayload(result); err == nil {
					_ = b.CacheStore.Put(ctx, b.CacheConfig.Namespace, b.StepID, b.CacheConfig.Version, key, payload)
				}
			})
			return
		}
	}
	b.runProcessMessage(ctx, msg, out, nil)
}

// emitCached re-emits a message whose content was recovered from the
// cache without calling ProcessMessage (§4.F.1 step 6).
func (b *Base) emitCached(ctx context.Context, result flow.FlowMessage, out chan<- flow.FlowMessage) {
	if result.IsFailed() {
		b.Progress.recordFailure()
	} else {
		b.Progress.recordSuccess()
	}
	select {
	case out <- result:
	case <-ctx.Done():
	}
}

func (b *Base) runProcessMessage(ctx context.Context, msg flow.FlowMessage, out chan<- flow.FlowMessage, afterEmit func(flow.FlowMessage)) {
	spanCtx, span := b.Tracer.Start(ctx, b.StepID)
	defer span.End()

	emitted := false
	emit := func(result flow.FlowMessage) {
		emitted = true
		result.Metadata["span_id"] = span.SpanID()
		result.Metadata["trace_id"] = span.TraceID()
		if result.IsFailed() {
			b.Progress.recordFailure()
		} else {
			b.Progress.recordSuccess()
		}
		if afterEmit != nil {
			afterEmit(result)
		}
		select {
		case out <- result:
		case <-ctx.Done():
		}
	}

	if err := b.Proc.ProcessMessage(spanCtx, msg, emit); err != nil {
		span.RecordError(err)
		// Fail/Drop/Cache (§7) are distinguished by the runner, not
		// here: every mode marks the message failed and emits it so it
		// flows through; a Fail-mode step additionally causes the
		// runner to cancel the run once it observes the failure.
		emit(msg.CopyWithError(b.StepID, err.Error(), errorType(err)))
		return
	}
	_ = emitted
}

// processBatch dispatches a whole batch to BatchProc at once (§4.F.2),
// vectorizing the call instead of looping ProcessMessage per element.
// Batched steps skip the per-message cache: a batch's fingerprint isn't
// a stable function of any single member, so caching here would need a
// different keying scheme than §4.F.4 defines for single messages.
// A plain Base (BatchProc == nil) never receives a unit.batch, since its
// prepareFunc never produces one; the fallback loop below exists only so
// unit stays shape-compatible between Base and BatchedBase.
func (b *Base) processBatch(ctx context.Context, batch []flow.FlowMessage, out chan<- flow.FlowMessage) {
	if b.BatchProc == nil {
		for _, msg := range batch {
			b.processSingleWithCache(ctx, msg, out)
		}
		return
	}
	if len(batch) == 0 {
		return
	}

	spanCtx, span := b.Tracer.Start(ctx, b.StepID)
	defer span.End()

	emit := func(result flow.FlowMessage) {
		result.Metadata["span_id"] = span.SpanID()
		result.Metadata["trace_id"] = span.TraceID()
		if result.IsFailed() {
			b.Progress.recordFailure()
		} else {
			b.Progress.recordSuccess()
		}
		select {
		case out <- result:
		case <-ctx.Done():
		}
	}

	if err := b.BatchProc.ProcessBatch(spanCtx, batch, emit); err != nil {
		span.RecordError(err)
		for _, msg := range batch {
			emit(msg.CopyWithError(b.StepID, err.Error(), errorType(err)))
		}
	}
}

// errorType names the concrete Go type of err, the realization of §4.E's
// `exception_type` field in a language without Python-style exception
// class names.
func errorType(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "error"
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
