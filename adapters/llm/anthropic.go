package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/bazaarvoice/qtype/types"
)

// anthropicMessagesClient captures the subset of the Anthropic SDK client
// the adapter needs, satisfied by *sdk.MessageService so tests can supply a
// fake instead of a real HTTP-backed client.
type anthropicMessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// AnthropicClient implements Client on top of the Anthropic Messages API.
type AnthropicClient struct {
	msg            anthropicMessagesClient
	defaultModel   string
	defaultMaxTok  int
	thinkingBudget int64
}

// NewAnthropicClient builds an Anthropic-backed client from an API key and
// a default model identifier, used when a Request leaves ModelID empty.
func NewAnthropicClient(apiKey, defaultModel string, defaultMaxTokens int) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm/anthropic: api key is required")
	}
	if defaultModel == "" {
		return nil, errors.New("llm/anthropic: default model is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		msg:           &client.Messages,
		defaultModel:  defaultModel,
		defaultMaxTok: defaultMaxTokens,
		// 16384 mirrors the teacher adapter's default thinking budget
		// (features/model/bedrock); Anthropic requires >=1024.
		thinkingBudget: 16384,
	}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("llm/anthropic: messages.new: %w", wrapRateLimit(err))
	}
	return translateAnthropicResponse(msg), nil
}

func (c *AnthropicClient) Stream(ctx context.Context, req *Request) (Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.msg.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("llm/anthropic: messages.new stream: %w", wrapRateLimit(err))
	}
	return newAnthropicStreamer(ctx, stream), nil
}

func (c *AnthropicClient) prepareRequest(req *Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("llm/anthropic: messages are required")
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTok
	}
	if maxTokens <= 0 {
		return nil, errors.New("llm/anthropic: max_tokens must be positive")
	}

	conversation, system, err := encodeAnthropicMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  conversation,
		Model:     sdk.Model(modelID),
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	if req.Reasoning {
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(c.thinkingBudget)
	}
	return &params, nil
}

func encodeAnthropicMessages(msgs []types.ChatMessage) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
			continue
		}
		switch m.Role {
		case "user", "tool":
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case "assistant":
			conversation = append(conversation, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			return nil, nil, fmt.Errorf("llm/anthropic: unsupported message role %q", m.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("llm/anthropic: at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func translateAnthropicResponse(msg *sdk.Message) *Response {
	resp := &Response{Message: types.ChatMessage{Role: "assistant"}, StopReason: string(msg.StopReason)}
	var text, reasoning string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "thinking":
			reasoning += block.Thinking
		}
	}
	resp.Message.Content = text
	resp.Reasoning = reasoning
	u := msg.Usage
	resp.Usage = TokenUsage{
		InputTokens:      int(u.InputTokens),
		OutputTokens:     int(u.OutputTokens),
		TotalTokens:      int(u.InputTokens + u.OutputTokens),
		CacheReadTokens:  int(u.CacheReadInputTokens),
		CacheWriteTokens: int(u.CacheCreationInputTokens),
	}
	return resp
}

// httpStatusError is satisfied by the Anthropic SDK's request-error type,
// which carries the HTTP status code of a failed API call. Matching it by
// duck-typed interface rather than the concrete SDK error type keeps this
// adapter resilient to the exact error type name across SDK versions.
type httpStatusError interface {
	error
	StatusCode() int
}

func wrapRateLimit(err error) error {
	var statusErr httpStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode() == 429 {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return err
}

// anthropicStreamer adapts an Anthropic Messages streaming response to the
// Streamer interface, translating text/thinking deltas and the final usage
// and stop-reason events (§4.G.1).
type anthropicStreamer struct {
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]
	chunks chan Chunk

	mu       sync.Mutex
	finalErr error
	errSet   bool
}

func newAnthropicStreamer(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion]) *anthropicStreamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &anthropicStreamer{cancel: cancel, stream: stream, chunks: make(chan Chunk, 32)}
	go s.run(cctx)
	return s
}

func (s *anthropicStreamer) Recv() (Chunk, error) {
	chunk, ok := <-s.chunks
	if ok {
		return chunk, nil
	}
	if err := s.err(); err != nil {
		return Chunk{}, err
	}
	return Chunk{}, io.EOF
}

func (s *anthropicStreamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *anthropicStreamer) run(ctx context.Context) {
	defer close(s.chunks)
	defer func() {
		if s.stream != nil {
			_ = s.stream.Close()
		}
	}()

	var stopReason string
	for s.stream.Next() {
		if ctx.Err() != nil {
			s.setErr(ctx.Err())
			return
		}
		event := s.stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text != "" {
					s.chunks <- Chunk{Type: ChunkText, Text: delta.Text}
				}
			case sdk.ThinkingDelta:
				if delta.Thinking != "" {
					s.chunks <- Chunk{Type: ChunkReasoning, Text: delta.Thinking}
				}
			}
		case sdk.MessageDeltaEvent:
			stopReason = string(ev.Delta.StopReason)
			usage := TokenUsage{
				InputTokens:      int(ev.Usage.InputTokens),
				OutputTokens:     int(ev.Usage.OutputTokens),
				TotalTokens:      int(ev.Usage.InputTokens + ev.Usage.OutputTokens),
				CacheReadTokens:  int(ev.Usage.CacheReadInputTokens),
				CacheWriteTokens: int(ev.Usage.CacheCreationInputTokens),
			}
			s.chunks <- Chunk{Type: ChunkUsage, Usage: &usage}
		case sdk.MessageStopEvent:
			s.chunks <- Chunk{Type: ChunkStop, StopReason: stopReason}
		}
	}
	if err := s.stream.Err(); err != nil {
		s.setErr(wrapRateLimit(err))
	}
}

func (s *anthropicStreamer) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.errSet {
		s.errSet = true
		s.finalErr = err
	}
}

func (s *anthropicStreamer) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}
