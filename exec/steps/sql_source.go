package steps

import (
	"context"
	"fmt"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/secret"
	"github.com/bazaarvoice/qtype/sources"
)

type sqlSourceFields struct {
	URI   string `json:"uri"`
	Query string `json:"query"`
}

// SQLSource executes a parameterized query against a database URI and
// emits one message per row (§4.G.4). With no declared inputs it runs once
// per the synthetic-empty-initial-message convention (§4.H); declared
// input variables are bound, in input-list order, as positional query
// arguments.
type SQLSource struct {
	step   *resolve.Step
	open   sources.PoolOpener
	auth   *secret.Provider
	fields sqlSourceFields
}

// NewSQLSource constructs a SQLSource. open is the pool constructor
// (sources.OpenPgxPool in production, a fake in tests); auth is the
// resolved credential for step.Auth (nil if the step declares none).
func NewSQLSource(step *resolve.Step, open sources.PoolOpener, auth *secret.Provider) (*SQLSource, error) {
	var fields sqlSourceFields
	if err := decodeFields(step.Fields, &fields); err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	if fields.URI == "" || fields.Query == "" {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("sql_source requires a uri and a query")}
	}
	if len(step.Outputs) == 0 {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("sql_source requires one output")}
	}
	return &SQLSource{step: step, open: open, auth: auth, fields: fields}, nil
}

func (SQLSource) SpanKind() exec.SpanKind { return exec.SpanGeneric }

func (s *SQLSource) ProcessMessage(ctx context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	args := make([]any, 0, len(s.step.Inputs))
	for _, inputVar := range s.step.Inputs {
		v, _ := msg.GetVariable(inputVar, false)
		args = append(args, plainValue(v))
	}

	rows, err := sources.QuerySQL(ctx, s.open, s.fields.URI, s.fields.Query, args, s.auth)
	if err != nil {
		return fmt.Errorf("exec/steps: sql_source step %q: %w", s.step.ID, err)
	}

	outputName := s.step.Outputs[0]
	for _, row := range rows {
		emit(msg.CopyWithVariables(map[string]jsonvalue.Value{outputName: jsonvalue.FromPlain(row)}))
	}
	return nil
}

func (*SQLSource) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }
