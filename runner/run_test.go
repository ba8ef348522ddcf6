package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/runner"
)

type appendProcessor struct {
	key string
}

func (p appendProcessor) SpanKind() exec.SpanKind { return exec.SpanGeneric }

func (p appendProcessor) ProcessMessage(_ context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	emit(msg.CopyWithVariables(map[string]jsonvalue.Value{p.key: jsonvalue.Bool(true)}))
	return nil
}

func (p appendProcessor) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }

func TestRunChainsExecutorsInOrder(t *testing.T) {
	stepA := &resolve.Step{ID: "a", ErrorMode: dsl.ErrorModeDrop}
	stepB := &resolve.Step{ID: "b", ErrorMode: dsl.ErrorModeDrop}

	executors := map[string]exec.StepExecutor{
		"a": exec.NewBase("a", appendProcessor{key: "a"}),
		"b": exec.NewBase("b", appendProcessor{key: "b"}),
	}

	results, err := runner.Run(context.Background(), []*resolve.Step{stepA, stepB}, executors, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	a, _ := results[0].GetVariable("a", true)
	b, _ := results[0].GetVariable("b", true)
	assert.Equal(t, jsonvalue.Bool(true), a)
	assert.Equal(t, jsonvalue.Bool(true), b)
}

func TestRunNormalizesEmptyInitialMessages(t *testing.T) {
	step := &resolve.Step{ID: "source", ErrorMode: dsl.ErrorModeDrop}
	executors := map[string]exec.StepExecutor{
		"source": exec.NewBase("source", appendProcessor{key: "ran"}),
	}

	results, err := runner.Run(context.Background(), []*resolve.Step{step}, executors, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	ran, _ := results[0].GetVariable("ran", true)
	assert.Equal(t, jsonvalue.Bool(true), ran)
}

type failingProcessor struct{}

func (failingProcessor) SpanKind() exec.SpanKind { return exec.SpanGeneric }

func (failingProcessor) ProcessMessage(context.Context, flow.FlowMessage, func(flow.FlowMessage)) error {
	return errors.New("boom")
}

func (failingProcessor) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }

func TestRunAbortsOnFailModeStepError(t *testing.T) {
	failing := &resolve.Step{ID: "breaker", ErrorMode: dsl.ErrorModeFail}
	after := &resolve.Step{ID: "after", ErrorMode: dsl.ErrorModeDrop}

	executors := map[string]exec.StepExecutor{
		"breaker": exec.NewBase("breaker", failingProcessor{}),
		"after":   exec.NewBase("after", appendProcessor{key: "after"}),
	}

	_, err := runner.Run(context.Background(), []*resolve.Step{failing, after}, executors, nil)
	require.Error(t, err)

	var runErr *runner.Error
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "breaker", runErr.StepID)
}

func TestRunDoesNotAbortOnDropModeStepError(t *testing.T) {
	dropping := &resolve.Step{ID: "breaker", ErrorMode: dsl.ErrorModeDrop}

	executors := map[string]exec.StepExecutor{
		"breaker": exec.NewBase("breaker", failingProcessor{}),
	}

	results, err := runner.Run(context.Background(), []*resolve.Step{dropping}, executors, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsFailed())
}
