// Package runner implements the flow runner (§4.H): it chains one
// exec.StepExecutor per step into a pipeline of channels, normalizes the
// initial input, materializes the final stream into a slice, and owns the
// one run-level decision exec deliberately leaves unmade — whether a
// Fail-mode step's error aborts the whole run (§4.L).
package runner

import (
	"context"
	"sync"

	"github.com/bazaarvoice/qtype/dsl"
	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/resolve"
)

// Run chains executors[step.ID] for every step in flow order, feeds
// initialMessages in (normalized to a one-element synthetic stream when
// empty, per §4.H), and materializes the final stream into a slice.
//
// Cancellation is cooperative (§5): ctx cancellation propagates to every
// stage via the channel chain, and Run itself cancels a derived context
// the moment a Fail-mode step's failure is observed, so downstream
// executors and in-flight adapter calls see ctx.Done() within one call
// boundary without Run having to reach into their internals.
func Run(ctx context.Context, steps []*resolve.Step, executors map[string]exec.StepExecutor, initialMessages []flow.FlowMessage) ([]flow.FlowMessage, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var abortOnce sync.Once
	var abortErr *Error
	abort := func(stepID string, err error) {
		abortOnce.Do(func() {
			abortErr = &Error{StepID: stepID, Err: err}
			cancel()
		})
	}

	stream := sliceToChannel(normalizeInitial(initialMessages))
	for _, step := range steps {
		executor, ok := executors[step.ID]
		if !ok {
			return nil, &Error{StepID: step.ID, Err: errUnresolvedExecutor}
		}
		stream = guardFailMode(runCtx, step, abort, executor.Execute(runCtx, stream))
	}

	result := channelToSlice(stream)

	if abortErr != nil {
		return result, abortErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// normalizeInitial realizes §4.H: "If initial_messages is a single message
// or empty, it is normalized to a one-element stream (possibly a synthetic
// empty message so source steps ... still execute exactly once)." A
// multi-message input is already a valid stream and passes through as-is.
func normalizeInitial(initial []flow.FlowMessage) []flow.FlowMessage {
	if len(initial) == 0 {
		return []flow.FlowMessage{flow.New(nil)}
	}
	return initial
}

func sliceToChannel(msgs []flow.FlowMessage) <-chan flow.FlowMessage {
	out := make(chan flow.FlowMessage, len(msgs))
	for _, m := range msgs {
		out <- m
	}
	close(out)
	return out
}

func channelToSlice(in <-chan flow.FlowMessage) []flow.FlowMessage {
	var out []flow.FlowMessage
	for m := range in {
		out = append(out, m)
	}
	return out
}

// guardFailMode passes every message through unchanged, but for a Fail-mode
// step (dsl.ErrorModeFail), a failure newly attributed to this step (its
// StepID matches, meaning this step is the one that just produced it)
// triggers abort, cancelling the run so every upstream producer and every
// downstream executor observes ctx.Done() promptly (§4.L, §5).
func guardFailMode(ctx context.Context, step *resolve.Step, abort func(stepID string, err error), in <-chan flow.FlowMessage) <-chan flow.FlowMessage {
	if step.ErrorMode != dsl.ErrorModeFail {
		return in
	}
	out := make(chan flow.FlowMessage)
	go func() {
		defer close(out)
		for msg := range in {
			if msg.IsFailed() && msg.Err.StepID == step.ID {
				abort(step.ID, msg.Err)
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
