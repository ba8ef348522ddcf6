package steps

import (
	"context"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
)

// Echo passes specified input variables through to output names unchanged
// (§4.G.3). step.Inputs[i] is bound to step.Outputs[i]; the two slices must
// be the same length, matching the surface DSL's positional pairing.
type Echo struct {
	step *resolve.Step
}

// NewEcho constructs the Echo processor for step.
func NewEcho(step *resolve.Step) *Echo {
	return &Echo{step: step}
}

func (Echo) SpanKind() exec.SpanKind { return exec.SpanGeneric }

func (e *Echo) ProcessMessage(_ context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	updates := make(map[string]jsonvalue.Value, len(e.step.Inputs))
	for i, in := range e.step.Inputs {
		if i >= len(e.step.Outputs) {
			break
		}
		v, _ := msg.GetVariable(in, false)
		updates[e.step.Outputs[i]] = v
	}
	emit(msg.CopyWithVariables(updates))
	return nil
}

func (*Echo) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }
