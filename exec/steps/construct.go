package steps

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/types"
)

type constructFields struct {
	OutputType    string            `json:"output_type"`
	FieldBindings map[string]string `json:"field_bindings"`
}

// Construct builds a value of the declared output type (§4.G.3): a list
// output passes the single input through; a custom-type output maps
// field_bindings (field name -> input variable id) into an Object; a
// primitive output coerces the single input value.
type Construct struct {
	step       *resolve.Step
	outputType types.Type
	fields     constructFields
}

// NewConstruct parses step.Fields' output_type against customTypeNames
// (the set of declared custom type ids visible to this document, per
// §4.A's two-pass resolution order) and returns the Construct processor.
func NewConstruct(step *resolve.Step, customTypeNames map[string]bool) (*Construct, error) {
	var fields constructFields
	if err := decodeFields(step.Fields, &fields); err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	outType, err := types.ParseTypeString(fields.OutputType, customTypeNames)
	if err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	return &Construct{step: step, outputType: outType, fields: fields}, nil
}

func (Construct) SpanKind() exec.SpanKind { return exec.SpanGeneric }

func (c *Construct) ProcessMessage(_ context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	if len(c.step.Outputs) == 0 {
		return fmt.Errorf("exec/steps: construct step %q declares no output", c.step.ID)
	}
	outputName := c.step.Outputs[0]

	var value jsonvalue.Value
	switch c.outputType.Kind {
	case types.KindCustom:
		obj := make(jsonvalue.Object, len(c.fields.FieldBindings))
		for field, inputVar := range c.fields.FieldBindings {
			v, _ := msg.GetVariable(inputVar, false)
			obj[field] = v
		}
		value = obj
	case types.KindList:
		if len(c.step.Inputs) == 0 {
			return fmt.Errorf("exec/steps: construct step %q declares no input to pass through as a list", c.step.ID)
		}
		v, _ := msg.GetVariable(c.step.Inputs[0], false)
		value = v
	default:
		if len(c.step.Inputs) == 0 {
			return fmt.Errorf("exec/steps: construct step %q declares no input to coerce", c.step.ID)
		}
		v, _ := msg.GetVariable(c.step.Inputs[0], false)
		value = coercePrimitive(v, c.outputType.Prim)
	}

	emit(msg.CopyWithVariables(map[string]jsonvalue.Value{outputName: value}))
	return nil
}

func (*Construct) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }

// coercePrimitive converts v to the target primitive where the conversion
// is unambiguous (numeric widening/narrowing, any-scalar-to-text); any
// other shape passes through unchanged rather than failing, since a step
// author declaring an output_type is asserting the binding already matches.
func coercePrimitive(v jsonvalue.Value, target types.Primitive) jsonvalue.Value {
	switch target {
	case types.Text:
		switch t := v.(type) {
		case jsonvalue.Text:
			return t
		case jsonvalue.Int:
			return jsonvalue.Text(strconv.FormatInt(int64(t), 10))
		case jsonvalue.Float:
			return jsonvalue.Text(strconv.FormatFloat(float64(t), 'g', -1, 64))
		case jsonvalue.Bool:
			return jsonvalue.Text(strconv.FormatBool(bool(t)))
		}
	case types.Int:
		switch t := v.(type) {
		case jsonvalue.Float:
			return jsonvalue.Int(int64(t))
		case jsonvalue.Int:
			return t
		}
	case types.Float:
		switch t := v.(type) {
		case jsonvalue.Int:
			return jsonvalue.Float(float64(t))
		case jsonvalue.Float:
			return t
		}
	}
	return v
}
