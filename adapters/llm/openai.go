package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/bazaarvoice/qtype/types"
)

// openaiChatClient mirrors the subset of the OpenAI SDK client the adapter
// needs, satisfied by the SDK's Chat.Completions service so tests can
// substitute a fake.
type openaiChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) ssestreamIterator
}

// ssestreamIterator is the minimal surface of the SDK's streaming iterator
// the adapter consumes.
type ssestreamIterator interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

// OpenAIClient implements Client on top of the OpenAI Chat Completions API.
type OpenAIClient struct {
	chat          openaiChatClient
	defaultModel  string
	defaultMaxTok int
}

// NewOpenAIClient builds an OpenAI-backed client from an API key and a
// default model identifier.
func NewOpenAIClient(apiKey, defaultModel string, defaultMaxTokens int) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm/openai: api key is required")
	}
	if defaultModel == "" {
		return nil, errors.New("llm/openai: default model is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{chat: &openaiChatCompletionsAdapter{svc: &client.Chat.Completions}, defaultModel: defaultModel, defaultMaxTok: defaultMaxTokens}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	params, err := c.prepareParams(req)
	if err != nil {
		return nil, err
	}
	completion, err := c.chat.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("llm/openai: chat.completions.new: %w", wrapOpenAIRateLimit(err))
	}
	return translateOpenAIResponse(completion), nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req *Request) (Streamer, error) {
	params, err := c.prepareParams(req)
	if err != nil {
		return nil, err
	}
	stream := c.chat.NewStreaming(ctx, *params)
	return newOpenAIStreamer(stream), nil
}

func (c *OpenAIClient) prepareParams(req *Request) (*openai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("llm/openai: messages are required")
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.defaultModel
	}
	messages, err := encodeOpenAIMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: messages,
	}
	if maxTokens := req.MaxTokens; maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	} else if c.defaultMaxTok > 0 {
		params.MaxTokens = openai.Int(int64(c.defaultMaxTok))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	return &params, nil
}

func encodeOpenAIMessages(msgs []types.ChatMessage) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "user":
			out = append(out, openai.UserMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		case "tool":
			out = append(out, openai.ToolMessage(m.Content, m.Name))
		default:
			return nil, fmt.Errorf("llm/openai: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("llm/openai: at least one message is required")
	}
	return out, nil
}

func translateOpenAIResponse(c *openai.ChatCompletion) *Response {
	resp := &Response{Message: types.ChatMessage{Role: "assistant"}}
	if len(c.Choices) > 0 {
		choice := c.Choices[0]
		resp.Message.Content = choice.Message.Content
		resp.StopReason = string(choice.FinishReason)
	}
	resp.Usage = TokenUsage{
		InputTokens:  int(c.Usage.PromptTokens),
		OutputTokens: int(c.Usage.CompletionTokens),
		TotalTokens:  int(c.Usage.TotalTokens),
	}
	return resp
}

// httpStatusErrorOpenAI mirrors httpStatusError for the OpenAI SDK's error
// type, kept distinct so the two adapters don't share an assumption about
// which concrete SDK error type implements it.
type httpStatusErrorOpenAI interface {
	error
	StatusCode() int
}

func wrapOpenAIRateLimit(err error) error {
	var statusErr httpStatusErrorOpenAI
	if errors.As(err, &statusErr) && statusErr.StatusCode() == 429 {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return err
}

type openaiStreamer struct {
	stream ssestreamIterator
}

func newOpenAIStreamer(stream ssestreamIterator) *openaiStreamer {
	return &openaiStreamer{stream: stream}
}

func (s *openaiStreamer) Recv() (Chunk, error) {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			return Chunk{Type: ChunkText, Text: choice.Delta.Content}, nil
		}
		if choice.FinishReason != "" {
			return Chunk{Type: ChunkStop, StopReason: string(choice.FinishReason)}, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		return Chunk{}, fmt.Errorf("llm/openai: stream: %w", wrapOpenAIRateLimit(err))
	}
	return Chunk{}, io.EOF
}

func (s *openaiStreamer) Close() error {
	return s.stream.Close()
}

// openaiChatCompletionsAdapter adapts *openai.ChatCompletionService (the
// concrete SDK client) to openaiChatClient, narrowing NewStreaming's
// concrete *ssestream.Stream return to the ssestreamIterator interface
// this package consumes.
type openaiChatCompletionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a *openaiChatCompletionsAdapter) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	return a.svc.New(ctx, body, opts...)
}

func (a *openaiChatCompletionsAdapter) NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) ssestreamIterator {
	return a.svc.NewStreaming(ctx, body, opts...)
}
