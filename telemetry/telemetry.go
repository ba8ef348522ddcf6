// Package telemetry defines the tracer, logger, and metrics contracts used
// throughout the runtime. Concrete implementations adapt these interfaces to
// a specific backend (Clue/OpenTelemetry in production, no-ops in tests).
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the runtime.
// Implementations typically delegate to Clue but the interface is
// intentionally small so tests can provide lightweight stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter and histogram helpers for runtime instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so the executor framework (§4.F.1) can open
// one span per process_message invocation without depending on a specific
// OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span represents an in-flight tracing span.
type Span interface {
	// SpanID returns the span's hex-encoded identifier, copied onto
	// flow.FlowMessage.Metadata so per-message feedback can address it (§4.K).
	SpanID() string
	// TraceID returns the hex-encoded trace identifier for the enclosing trace.
	TraceID() string
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// StepTelemetry captures observability metadata collected during a single
// step invocation (§4.K). Extra holds step-kind-specific data (token counts,
// cache keys, provider response headers, ...).
type StepTelemetry struct {
	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64
	// TokensUsed tracks total tokens consumed, populated by LLM-inference steps.
	TokensUsed int
	// Model identifies which model served the request, when applicable.
	Model string
	// Extra holds step-kind-specific metadata not captured by the fields above.
	Extra map[string]any
}

// FeedbackClient submits per-span feedback to a pluggable telemetry backend
// (§4.K, §6 Tracer/feedback boundary). Concrete providers (Phoenix, Arize,
// Langfuse, ...) are external collaborators; this interface is the contract
// they must satisfy.
type FeedbackClient interface {
	Submit(ctx context.Context, spanID, traceID string, feedback Feedback) error
}

// Feedback is an opaque annotation attached to a span by a feedback client.
type Feedback struct {
	Label string
	Score float64
	Notes string
}
