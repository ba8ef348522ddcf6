package steps

import (
	"context"
	"fmt"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/sources"
)

type documentSourceFields struct {
	ReaderModule string         `json:"reader_module"`
	Args         map[string]any `json:"args"`
}

// DocumentSource produces RAG documents from a named reader (§4.G.4).
// Like FileSource/SQLSource it declares no inputs and runs once per the
// synthetic-empty-initial-message convention (§4.H).
type DocumentSource struct {
	step   *resolve.Step
	reader sources.DocumentReaderRegistry
	fields documentSourceFields
}

// NewDocumentSource constructs a DocumentSource. reader resolves
// fields.reader_module at construction time so a missing reader fails
// fast rather than on first execution.
func NewDocumentSource(step *resolve.Step, reader sources.DocumentReaderRegistry) (*DocumentSource, error) {
	var fields documentSourceFields
	if err := decodeFields(step.Fields, &fields); err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	if _, ok := reader[fields.ReaderModule]; !ok {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("document_source: no reader registered for %q", fields.ReaderModule)}
	}
	if len(step.Outputs) == 0 {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("document_source requires one output")}
	}
	return &DocumentSource{step: step, reader: reader, fields: fields}, nil
}

func (DocumentSource) SpanKind() exec.SpanKind { return exec.SpanRetriever }

func (d *DocumentSource) ProcessMessage(ctx context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	fn := d.reader[d.fields.ReaderModule]
	docs, err := fn(ctx, d.fields.Args)
	if err != nil {
		return fmt.Errorf("exec/steps: document_source step %q: %w", d.step.ID, err)
	}

	outputName := d.step.Outputs[0]
	for _, doc := range docs {
		emit(msg.CopyWithVariables(map[string]jsonvalue.Value{outputName: ragDocumentToValue(doc)}))
	}
	return nil
}

func (*DocumentSource) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }
