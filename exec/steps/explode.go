package steps

import (
	"context"
	"fmt"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
)

// Explode takes a list-valued input and emits one output message per
// element (§4.G.3), each a copy of the input message with the output
// variable bound to that element.
type Explode struct {
	step *resolve.Step
}

// NewExplode constructs the Explode processor for step.
func NewExplode(step *resolve.Step) *Explode {
	return &Explode{step: step}
}

func (Explode) SpanKind() exec.SpanKind { return exec.SpanGeneric }

func (e *Explode) ProcessMessage(_ context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	if len(e.step.Inputs) == 0 || len(e.step.Outputs) == 0 {
		return fmt.Errorf("exec/steps: explode step %q requires one input and one output", e.step.ID)
	}
	v, ok := msg.GetVariable(e.step.Inputs[0], true)
	if !ok {
		return fmt.Errorf("exec/steps: explode step %q input %q is required but unset", e.step.ID, e.step.Inputs[0])
	}
	list, ok := v.(jsonvalue.List)
	if !ok {
		return fmt.Errorf("exec/steps: explode step %q input %q is not a list", e.step.ID, e.step.Inputs[0])
	}
	for _, elem := range list {
		emit(msg.CopyWithVariables(map[string]jsonvalue.Value{e.step.Outputs[0]: elem}))
	}
	return nil
}

func (*Explode) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }
