package steps

import (
	"context"
	"fmt"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/sources"
	"github.com/bazaarvoice/qtype/types"
)

type fileSourceFields struct {
	URI        string `json:"uri"`
	Format     string `json:"format"`
	Sheet      string `json:"sheet"`
	OutputType string `json:"output_type"`
}

// FileSource reads CSV/JSON/JSONL/Excel from a local or remote URI and
// emits one output message per row (§4.G.4); a Parquet URI fails with an
// unsupported-format error (see sources.ReadRows). It declares no
// inputs: the flow runner's synthetic-empty-initial-message convention
// (§4.H) drives ProcessMessage exactly once per run.
type FileSource struct {
	step       *resolve.Step
	fields     fileSourceFields
	outputType *types.CustomType // nil: rows pass through as plain objects
}

// NewFileSource constructs a FileSource. customTypes resolves
// fields.output_type when a custom type is declared (§4.G.4 "custom/
// domain-typed columns are constructed from row dicts via the type's
// validator"); a blank or primitive-list output_type leaves outputType nil
// and rows are emitted as plain column->value objects.
func NewFileSource(step *resolve.Step, customTypes map[string]*types.CustomType) (*FileSource, error) {
	var fields fileSourceFields
	if err := decodeFields(step.Fields, &fields); err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	if fields.URI == "" {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("file_source requires a uri")}
	}
	if len(step.Outputs) == 0 {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("file_source requires one output")}
	}

	fs := &FileSource{step: step, fields: fields}
	if ct, ok := customTypes[fields.OutputType]; ok {
		fs.outputType = ct
	}
	return fs, nil
}

func (FileSource) SpanKind() exec.SpanKind { return exec.SpanGeneric }

func (f *FileSource) ProcessMessage(_ context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	rows, err := sources.ReadRows(f.fields.URI, sources.Format(f.fields.Format), f.fields.Sheet)
	if err != nil {
		return fmt.Errorf("exec/steps: file_source step %q: %w", f.step.ID, err)
	}

	outputName := f.step.Outputs[0]
	for _, row := range rows {
		emit(msg.CopyWithVariables(map[string]jsonvalue.Value{outputName: f.rowToValue(row)}))
	}
	return nil
}

func (*FileSource) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }

// rowToValue converts a decoded row into the declared output_type's shape
// when one is configured, narrowing to only its declared properties;
// otherwise every column is carried through as-is.
func (f *FileSource) rowToValue(row map[string]any) jsonvalue.Value {
	if f.outputType == nil {
		return jsonvalue.FromPlain(row)
	}
	obj := make(jsonvalue.Object, len(f.outputType.Properties))
	for name, prop := range f.outputType.Properties {
		if v, ok := row[name]; ok {
			obj[name] = jsonvalue.FromPlain(v)
		} else if prop.Default != nil {
			obj[name] = prop.Default
		} else {
			obj[name] = jsonvalue.Null{}
		}
	}
	return obj
}
