package steps

import (
	"context"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
)

// Aggregate passes every input message through unchanged, then emits a
// single finalize-time summary message with {num_total, num_successful,
// num_failed} drawn from a progress tracker (§4.G.3). The tracker is the
// one belonging to the step whose outcomes this Aggregate is meant to
// summarize (typically its immediate predecessor's exec.Base), passed in
// at construction rather than re-derived here, since Aggregate itself only
// ever sees the successful messages Base's own filter stage lets through.
type Aggregate struct {
	step    *resolve.Step
	tracker *exec.ProgressTracker
}

// NewAggregate constructs the Aggregate processor for step, summarizing
// tracker's counters on finalize.
func NewAggregate(step *resolve.Step, tracker *exec.ProgressTracker) *Aggregate {
	return &Aggregate{step: step, tracker: tracker}
}

func (Aggregate) SpanKind() exec.SpanKind { return exec.SpanGeneric }

func (a *Aggregate) ProcessMessage(_ context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	emit(msg)
	return nil
}

func (a *Aggregate) Finalize(_ context.Context, emit func(flow.FlowMessage)) error {
	snap := a.tracker.Snapshot()
	summary := jsonvalue.Object{
		"num_total":      jsonvalue.Int(snap.Processed),
		"num_successful": jsonvalue.Int(snap.Succeeded),
		"num_failed":     jsonvalue.Int(snap.Failed),
	}

	updates := map[string]jsonvalue.Value{}
	if len(a.step.Outputs) > 0 {
		updates[a.step.Outputs[0]] = summary
	} else {
		for k, v := range summary {
			updates[k] = v
		}
	}
	emit(flow.New(nil).CopyWithVariables(updates))
	return nil
}
