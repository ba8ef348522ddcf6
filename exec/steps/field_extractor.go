package steps

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
)

type fieldExtractorFields struct {
	Path string `json:"path"`
}

// FieldExtractor applies a JSON-path expression to a single input value,
// emitting one output message per matched node — one-to-many when the path
// matches multiple nodes (§4.G.3). gjson supplies the path-query engine,
// already a transitive dependency across the example pack (tidwall/gjson)
// and promoted here to a direct import rather than reinventing a JSONPath
// evaluator.
type FieldExtractor struct {
	step   *resolve.Step
	fields fieldExtractorFields
}

// NewFieldExtractor constructs the FieldExtractor processor for step.
func NewFieldExtractor(step *resolve.Step) (*FieldExtractor, error) {
	var fields fieldExtractorFields
	if err := decodeFields(step.Fields, &fields); err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	if fields.Path == "" {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("field_extractor requires a path")}
	}
	return &FieldExtractor{step: step, fields: fields}, nil
}

func (FieldExtractor) SpanKind() exec.SpanKind { return exec.SpanGeneric }

func (f *FieldExtractor) ProcessMessage(_ context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	if len(f.step.Inputs) == 0 || len(f.step.Outputs) == 0 {
		return fmt.Errorf("exec/steps: field_extractor step %q requires one input and one output", f.step.ID)
	}
	v, ok := msg.GetVariable(f.step.Inputs[0], true)
	if !ok {
		return fmt.Errorf("exec/steps: field_extractor step %q input %q is required but unset", f.step.ID, f.step.Inputs[0])
	}
	raw, err := jsonvalue.MarshalJSON(v)
	if err != nil {
		return err
	}

	result := gjson.GetBytes(raw, f.fields.Path)
	outputName := f.step.Outputs[0]

	if result.IsArray() {
		for _, elem := range result.Array() {
			emit(msg.CopyWithVariables(map[string]jsonvalue.Value{outputName: jsonvalue.FromPlain(elem.Value())}))
		}
		return nil
	}
	emit(msg.CopyWithVariables(map[string]jsonvalue.Value{outputName: jsonvalue.FromPlain(result.Value())}))
	return nil
}

func (*FieldExtractor) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }
