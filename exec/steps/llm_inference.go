package steps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/google/uuid"

	"github.com/bazaarvoice/qtype/adapters/llm"
	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/stream"
	"github.com/bazaarvoice/qtype/types"
)

type llmInferenceFields struct {
	OutputType  string  `json:"output_type"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Reasoning   bool    `json:"reasoning"`
}

// LLMInference is the canonical LLM-inference executor (§4.G.1): it binds
// step.Inputs to a prompt or chat transcript, optionally merges it with
// session memory, invokes the resolved model through an adapters/llm.Client,
// and binds the reply to step.Outputs[0] (text or chat_message, per the
// declared output type). When step.Outputs has a second entry, terminal
// reasoning content is bound there.
type LLMInference struct {
	step       *resolve.Step
	client     llm.Client
	sink       stream.Sink
	outputType types.Type
	fields     llmInferenceFields
}

// NewLLMInference constructs an LLMInference processor. client is the
// adapter resolved for step.Model (package adapters/llm); sink is the
// stream.Sink events are emitted to when non-nil, which also selects the
// streaming (client.Stream) vs. non-streaming (client.Complete) code path.
func NewLLMInference(step *resolve.Step, client llm.Client, sink stream.Sink, customTypeNames map[string]bool) (*LLMInference, error) {
	if step.Model == nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: errors.New("llm_inference step requires a model")}
	}
	if client == nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: errors.New("llm_inference step requires a resolved client")}
	}
	if len(step.Outputs) == 0 {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: errors.New("llm_inference step declares no output")}
	}
	var fields llmInferenceFields
	if err := decodeFields(step.Fields, &fields); err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	outType, err := types.ParseTypeString(fields.OutputType, customTypeNames)
	if err != nil {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: err}
	}
	if !isLLMOutputType(outType) {
		return nil, &exec.ConfigurationError{StepID: step.ID, Err: fmt.Errorf("llm_inference output must be text or chat_message, got %q", outType.String())}
	}
	return &LLMInference{step: step, client: client, sink: sink, outputType: outType, fields: fields}, nil
}

func isLLMOutputType(t types.Type) bool {
	if t.Kind == types.KindPrimitive && t.Prim == types.Text {
		return true
	}
	return t.Kind == types.KindDomain && t.Domain == types.DomainChatMessage
}

func (LLMInference) SpanKind() exec.SpanKind { return exec.SpanLLM }

func (l *LLMInference) ProcessMessage(ctx context.Context, msg flow.FlowMessage, emit func(flow.FlowMessage)) error {
	turn, err := l.buildTurn(msg)
	if err != nil {
		return err
	}

	conversation := []types.ChatMessage{turn}
	if l.step.Memory != nil && msg.Session != nil {
		conversation = msg.Session.MergeMemory(nil, turn)
	}

	req := &llm.Request{
		ModelID:     l.step.Model.ModelID,
		Messages:    conversation,
		MaxTokens:   l.fields.MaxTokens,
		Temperature: float32(l.fields.Temperature),
		Reasoning:   l.fields.Reasoning,
	}

	var reply types.ChatMessage
	var reasoning string
	if l.sink != nil {
		reply, reasoning, err = l.runStreaming(ctx, req)
	} else {
		reply, reasoning, err = l.runComplete(ctx, req)
	}
	if err != nil {
		l.emitErrorEvent(ctx, err)
		return err
	}

	if l.step.Memory != nil && msg.Session != nil {
		msg.Session.Append(turn, reply)
	}

	updates := map[string]jsonvalue.Value{
		l.step.Outputs[0]: l.encodeOutput(reply),
	}
	if reasoning != "" && len(l.step.Outputs) > 1 {
		updates[l.step.Outputs[1]] = jsonvalue.Text(reasoning)
	}
	emit(msg.CopyWithVariables(updates))
	return nil
}

func (*LLMInference) Finalize(context.Context, func(flow.FlowMessage)) error { return nil }

// buildTurn binds step.Inputs to the current turn's chat message (§4.G.1:
// "either a single text prompt... or one or more chat messages"). Multiple
// inputs are concatenated into a single user turn in declaration order;
// a single chat_message-typed input is passed through as-is.
func (l *LLMInference) buildTurn(msg flow.FlowMessage) (types.ChatMessage, error) {
	if len(l.step.Inputs) == 0 {
		return types.ChatMessage{}, &exec.ConfigurationError{StepID: l.step.ID, Err: errors.New("llm_inference step declares no input")}
	}
	if len(l.step.Inputs) == 1 {
		v, ok := msg.GetVariable(l.step.Inputs[0], true)
		if !ok {
			return types.ChatMessage{}, fmt.Errorf("exec/steps: llm_inference step %q: input %q is unset", l.step.ID, l.step.Inputs[0])
		}
		if obj, ok := v.(jsonvalue.Object); ok {
			return chatMessageFromValue(obj), nil
		}
		return types.ChatMessage{Role: "user", Content: textContent(v)}, nil
	}

	var content string
	for i, inputVar := range l.step.Inputs {
		v, ok := msg.GetVariable(inputVar, true)
		if !ok {
			return types.ChatMessage{}, fmt.Errorf("exec/steps: llm_inference step %q: input %q is unset", l.step.ID, inputVar)
		}
		if i > 0 {
			content += "\n"
		}
		content += textContent(v)
	}
	return types.ChatMessage{Role: "user", Content: content}, nil
}

func (l *LLMInference) runComplete(ctx context.Context, req *llm.Request) (types.ChatMessage, string, error) {
	resp, err := l.client.Complete(ctx, req)
	if err != nil {
		return types.ChatMessage{}, "", err
	}
	return resp.Message, resp.Reasoning, nil
}

// runStreaming drives the streaming path (§4.G.1): TextStreamStart, a
// sequence of TextStreamDelta, and TextStreamEnd, with reasoning content
// (if the adapter surfaces it) emitting the analogous reasoning-stream
// events on a second stream_id.
func (l *LLMInference) runStreaming(ctx context.Context, req *llm.Request) (types.ChatMessage, string, error) {
	streamer, err := l.client.Stream(ctx, req)
	if err != nil {
		return types.ChatMessage{}, "", err
	}
	defer streamer.Close()

	textStreamID := l.nextStreamID()
	reasoningStreamID := l.nextStreamID()

	var text, reasoning string
	var textStarted, reasoningStarted bool

	for {
		chunk, err := streamer.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.ChatMessage{}, "", err
		}
		switch chunk.Type {
		case llm.ChunkText:
			if !textStarted {
				l.send(ctx, stream.TextStreamStart{Base: l.eventBase(stream.EventTextStreamStart, textStreamID)})
				textStarted = true
			}
			text += chunk.Text
			l.send(ctx, stream.TextStreamDelta{Base: l.eventBase(stream.EventTextStreamDelta, textStreamID), Text: chunk.Text})
		case llm.ChunkReasoning:
			if !reasoningStarted {
				l.send(ctx, stream.ReasoningStreamStart{Base: l.eventBase(stream.EventReasoningStreamStart, reasoningStreamID)})
				reasoningStarted = true
			}
			reasoning += chunk.Text
			l.send(ctx, stream.ReasoningStreamDelta{Base: l.eventBase(stream.EventReasoningStreamDelta, reasoningStreamID), Text: chunk.Text})
		case llm.ChunkStop:
			// Terminal marker; the loop exits on the next Recv's io.EOF.
		}
	}

	if reasoningStarted {
		l.send(ctx, stream.ReasoningStreamEnd{Base: l.eventBase(stream.EventReasoningStreamEnd, reasoningStreamID)})
	}
	if textStarted {
		l.send(ctx, stream.TextStreamEnd{Base: l.eventBase(stream.EventTextStreamEnd, textStreamID)})
	}

	return types.ChatMessage{Role: "assistant", Content: text}, reasoning, nil
}

// nextStreamID mints a globally unique stream_id (§4.I: events correlate by
// stream_id, not by step, so two concurrent invocations of the same step
// must never share one).
func (l *LLMInference) nextStreamID() string {
	return uuid.NewString()
}

func (l *LLMInference) eventBase(t stream.EventType, streamID string) stream.Base {
	return stream.Base{EventType: t, Step: l.step.ID, Stream: streamID}
}

func (l *LLMInference) send(ctx context.Context, ev stream.Event) {
	// Stream delivery is best-effort (§4.I is a side channel to clients);
	// a transport error here must not fail the step, which already has
	// its own result independent of whether the UI observed it live.
	_ = l.sink.Send(ctx, ev)
}

func (l *LLMInference) emitErrorEvent(ctx context.Context, err error) {
	if l.sink == nil {
		return
	}
	l.send(ctx, stream.Error{
		Base:          stream.Base{EventType: stream.EventError, Step: l.step.ID},
		ErrorMessage:  err.Error(),
		ExceptionType: exceptionType(err),
	})
}

func (l *LLMInference) encodeOutput(reply types.ChatMessage) jsonvalue.Value {
	if l.outputType.Kind == types.KindDomain && l.outputType.Domain == types.DomainChatMessage {
		return chatMessageToValue(reply)
	}
	return jsonvalue.Text(reply.Content)
}

func chatMessageToValue(m types.ChatMessage) jsonvalue.Object {
	return jsonvalue.Object{
		"role":    jsonvalue.Text(m.Role),
		"content": jsonvalue.Text(m.Content),
		"name":    jsonvalue.Text(m.Name),
	}
}

func chatMessageFromValue(obj jsonvalue.Object) types.ChatMessage {
	m := types.ChatMessage{Role: "user"}
	if v, ok := obj["role"].(jsonvalue.Text); ok && v != "" {
		m.Role = string(v)
	}
	if v, ok := obj["content"].(jsonvalue.Text); ok {
		m.Content = string(v)
	}
	if v, ok := obj["name"].(jsonvalue.Text); ok {
		m.Name = string(v)
	}
	return m
}

// textContent renders v as plain text for prompt assembly; only Text needs
// a direct case since a step author binding a non-text variable as an LLM
// input is asserting it already carries the prompt string.
func textContent(v jsonvalue.Value) string {
	if t, ok := v.(jsonvalue.Text); ok {
		return string(t)
	}
	raw, err := jsonvalue.MarshalJSON(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// exceptionType names the concrete Go type of err, mirroring
// exec.errorType (unexported in package exec) for the ErrorEvent's
// exception_type field (§4.E, §4.I).
func exceptionType(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "error"
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
