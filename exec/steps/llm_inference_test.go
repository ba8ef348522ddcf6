package steps_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/adapters/llm"
	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/exec/steps"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/stream"
	"github.com/bazaarvoice/qtype/types"
)

type fakeLLMClient struct {
	resp      *llm.Response
	completeErr error
	chunks    []llm.Chunk
	streamErr error
	lastReq   *llm.Request
}

func (f *fakeLLMClient) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.lastReq = req
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.resp, nil
}

func (f *fakeLLMClient) Stream(_ context.Context, req *llm.Request) (llm.Streamer, error) {
	f.lastReq = req
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &fakeStreamer{chunks: f.chunks}, nil
}

type fakeStreamer struct {
	chunks []llm.Chunk
	idx    int
}

func (s *fakeStreamer) Recv() (llm.Chunk, error) {
	if s.idx >= len(s.chunks) {
		return llm.Chunk{}, io.EOF
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, nil
}

func (s *fakeStreamer) Close() error { return nil }

type fakeSink struct {
	events []stream.Event
}

func (s *fakeSink) Send(_ context.Context, ev stream.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSink) Close(context.Context) error { return nil }

func llmStep(inputs, outputs []string, outputType string) *resolve.Step {
	return &resolve.Step{
		ID:      "ask",
		Inputs:  inputs,
		Outputs: outputs,
		Model:   &resolve.Model{ID: "m", Provider: "anthropic", ModelID: "claude"},
		Fields:  map[string]any{"output_type": outputType},
	}
}

func TestLLMInferenceCompleteBindsTextOutput(t *testing.T) {
	step := llmStep([]string{"prompt"}, []string{"reply"}, "text")
	client := &fakeLLMClient{resp: &llm.Response{Message: types.ChatMessage{Role: "assistant", Content: "hi there"}}}
	l, err := steps.NewLLMInference(step, client, nil, nil)
	require.NoError(t, err)

	msg := newMsg(map[string]jsonvalue.Value{"prompt": jsonvalue.Text("hello")})
	results := collectEmitted(t, func(emit func(flow.FlowMessage)) {
		require.NoError(t, l.ProcessMessage(context.Background(), msg, emit))
	})

	require.Len(t, results, 1)
	v, _ := results[0].GetVariable("reply", true)
	assert.Equal(t, jsonvalue.Text("hi there"), v)
	require.NotNil(t, client.lastReq)
	require.Len(t, client.lastReq.Messages, 1)
	assert.Equal(t, "hello", client.lastReq.Messages[0].Content)
}

func TestLLMInferenceCompleteBindsChatMessageOutput(t *testing.T) {
	step := llmStep([]string{"prompt"}, []string{"reply"}, "chat_message")
	client := &fakeLLMClient{resp: &llm.Response{Message: types.ChatMessage{Role: "assistant", Content: "hi there"}}}
	l, err := steps.NewLLMInference(step, client, nil, nil)
	require.NoError(t, err)

	msg := newMsg(map[string]jsonvalue.Value{"prompt": jsonvalue.Text("hello")})
	results := collectEmitted(t, func(emit func(flow.FlowMessage)) {
		require.NoError(t, l.ProcessMessage(context.Background(), msg, emit))
	})

	require.Len(t, results, 1)
	v, _ := results[0].GetVariable("reply", true)
	obj, ok := v.(jsonvalue.Object)
	require.True(t, ok)
	assert.Equal(t, jsonvalue.Text("assistant"), obj["role"])
	assert.Equal(t, jsonvalue.Text("hi there"), obj["content"])
}

func TestLLMInferenceAttachesReasoningToSecondOutput(t *testing.T) {
	step := llmStep([]string{"prompt"}, []string{"reply", "reasoning"}, "text")
	client := &fakeLLMClient{resp: &llm.Response{
		Message:   types.ChatMessage{Role: "assistant", Content: "42"},
		Reasoning: "because math",
	}}
	l, err := steps.NewLLMInference(step, client, nil, nil)
	require.NoError(t, err)

	msg := newMsg(map[string]jsonvalue.Value{"prompt": jsonvalue.Text("what is 6*7?")})
	results := collectEmitted(t, func(emit func(flow.FlowMessage)) {
		require.NoError(t, l.ProcessMessage(context.Background(), msg, emit))
	})

	require.Len(t, results, 1)
	reasoning, _ := results[0].GetVariable("reasoning", true)
	assert.Equal(t, jsonvalue.Text("because math"), reasoning)
}

func TestLLMInferenceStreamsTextDeltasThroughSink(t *testing.T) {
	step := llmStep([]string{"prompt"}, []string{"reply"}, "text")
	client := &fakeLLMClient{chunks: []llm.Chunk{
		{Type: llm.ChunkText, Text: "hel"},
		{Type: llm.ChunkText, Text: "lo"},
		{Type: llm.ChunkStop, StopReason: "end_turn"},
	}}
	sink := &fakeSink{}
	l, err := steps.NewLLMInference(step, client, sink, nil)
	require.NoError(t, err)

	msg := newMsg(map[string]jsonvalue.Value{"prompt": jsonvalue.Text("hi")})
	results := collectEmitted(t, func(emit func(flow.FlowMessage)) {
		require.NoError(t, l.ProcessMessage(context.Background(), msg, emit))
	})

	require.Len(t, results, 1)
	v, _ := results[0].GetVariable("reply", true)
	assert.Equal(t, jsonvalue.Text("hello"), v)

	require.GreaterOrEqual(t, len(sink.events), 4)
	assert.Equal(t, stream.EventTextStreamStart, sink.events[0].Type())
	assert.Equal(t, stream.EventTextStreamEnd, sink.events[len(sink.events)-1].Type())
}

func TestLLMInferenceMarksMessageFailedOnAdapterErrorAndEmitsErrorEvent(t *testing.T) {
	step := llmStep([]string{"prompt"}, []string{"reply"}, "text")
	// A sink selects the streaming path, so the adapter error comes from
	// Stream.
	client := &fakeLLMClient{streamErr: errors.New("rate limited")}
	sink := &fakeSink{}
	// Wire through exec.NewBase so the executor-level failure translation
	// (mark failed + emit) is exercised, not just the raw ProcessMessage
	// error return.
	l, err := steps.NewLLMInference(step, client, sink, nil)
	require.NoError(t, err)
	base := exec.NewBase(step.ID, l)

	in := make(chan flow.FlowMessage, 1)
	in <- newMsg(map[string]jsonvalue.Value{"prompt": jsonvalue.Text("hi")})
	close(in)

	var results []flow.FlowMessage
	for m := range base.Execute(context.Background(), in) {
		results = append(results, m)
	}

	require.Len(t, results, 1)
	assert.True(t, results[0].IsFailed())
	assert.Equal(t, step.ID, results[0].Err.StepID)

	require.Len(t, sink.events, 1)
	assert.Equal(t, stream.EventError, sink.events[0].Type())
}

func TestLLMInferenceMergesSessionMemory(t *testing.T) {
	step := &resolve.Step{
		ID:      "ask",
		Inputs:  []string{"prompt"},
		Outputs: []string{"reply"},
		Model:   &resolve.Model{ID: "m", Provider: "anthropic", ModelID: "claude"},
		Memory:  &resolve.Memory{ID: "mem"},
		Fields:  map[string]any{"output_type": "text"},
	}
	client := &fakeLLMClient{resp: &llm.Response{Message: types.ChatMessage{Role: "assistant", Content: "ok"}}}
	l, err := steps.NewLLMInference(step, client, nil, nil)
	require.NoError(t, err)

	session := flow.NewSession("s1")
	session.Append(types.ChatMessage{Role: "user", Content: "earlier"}, types.ChatMessage{Role: "assistant", Content: "earlier reply"})
	msg := flow.New(session).CopyWithVariables(map[string]jsonvalue.Value{"prompt": jsonvalue.Text("now")})

	results := collectEmitted(t, func(emit func(flow.FlowMessage)) {
		require.NoError(t, l.ProcessMessage(context.Background(), msg, emit))
	})
	require.Len(t, results, 1)

	require.Len(t, client.lastReq.Messages, 3)
	assert.Equal(t, "earlier", client.lastReq.Messages[0].Content)
	assert.Equal(t, "now", client.lastReq.Messages[2].Content)

	history := session.History()
	require.Len(t, history, 4)
	assert.Equal(t, "ok", history[3].Content)
}
