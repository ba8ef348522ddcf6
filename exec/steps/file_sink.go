package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/sources"
)

type fileSinkFields struct {
	URI       string `json:"uri"`
	Format    string `json:"format"`
	ErrorURI  string `json:"error_uri"`
}

// FileSink accumulates every message's input row and writes the file in
// one shot on Finalize (§4.G.4 "finalize-emitting: accumulates rows,
// writes in one shot on finalize"), the same BatchProcessor shape Collect
// uses for stream-wide aggregation. ProcessBatch routes messages that
// already carry a step error to the sibling error file instead of the row
// set, when error_uri is configured. When FileSink runs under
// exec.BatchedBase, failed messages are filtered out before ProcessBatch
// and re-emitted unchanged, so they are not written to the error file.
type FileSink struct {
	step   *resolve.Step
	fields fileSinkFields

	mu        sync.Mutex
	rows      []map[string]any
	errorRows []map[string]any
}

// NewFileSink constructs a FileSink for step.
func NewFileSink(step *resolve.Step) (*FileSink, error) {
	var fields fileSinkFields
	if err := decodeFields(step.Fields, &fields); err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	if fields.URI == "" {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("file_sink requires a uri")}
	}
	if len(step.Inputs) == 0 {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("file_sink requires one input")}
	}
	return &FileSink{step: step, fields: fields}, nil
}

func (FileSink) SpanKind() exec.SpanKind { return exec.SpanGeneric }

// ProcessBatch accumulates rows; it never emits, matching Collect's
// finalize-only emission.
func (s *FileSink) ProcessBatch(_ context.Context, batch []flow.FlowMessage, _ func(flow.FlowMessage)) error {
	inputName := s.step.Inputs[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range batch {
		v, ok := msg.GetVariable(inputName, false)
		if !ok {
			continue
		}
		row := jsonvalueToRow(v)
		if msg.IsFailed() {
			row["error"] = msg.Err.Error()
			s.errorRows = append(s.errorRows, row)
			continue
		}
		s.rows = append(s.rows, row)
	}
	return nil
}

// Finalize writes the accumulated rows (and, if any failed and error_uri
// is configured, the sibling error file) and emits nothing: FileSink is a
// terminal step in its branch of the flow.
func (s *FileSink) Finalize(_ context.Context, _ func(flow.FlowMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := sources.WriteRows(s.fields.URI, sources.Format(s.fields.Format), s.rows); err != nil {
		return fmt.Errorf("exec/steps: file_sink step %q: %w", s.step.ID, err)
	}
	if len(s.errorRows) > 0 && s.fields.ErrorURI != "" {
		if err := sources.WriteErrorRows(s.fields.ErrorURI, s.errorRows); err != nil {
			return fmt.Errorf("exec/steps: file_sink step %q: write error file: %w", s.step.ID, err)
		}
	}
	return nil
}

// jsonvalueToRow converts a single jsonvalue.Value into a row map:
// Objects flatten to their fields directly; any other value is wrapped
// under a single "value" column so non-object inputs still round-trip.
// The conversion goes through the wire JSON form since package jsonvalue
// keeps its Value->plain-Go conversion unexported.
func jsonvalueToRow(v jsonvalue.Value) map[string]any {
	if obj, ok := v.(jsonvalue.Object); ok {
		row := make(map[string]any, len(obj))
		for k, val := range obj {
			row[k] = plainValue(val)
		}
		return row
	}
	return map[string]any{"value": plainValue(v)}
}

func plainValue(v jsonvalue.Value) any {
	raw, err := jsonvalue.MarshalJSON(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
