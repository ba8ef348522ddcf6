package llm

import (
	"context"
	"io"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/types"
)

func TestEncodeOpenAIMessagesMapsRoles(t *testing.T) {
	msgs := []types.ChatMessage{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "tool", Content: "result", Name: "search"},
	}
	out, err := encodeOpenAIMessages(msgs)
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestEncodeOpenAIMessagesRejectsUnknownRole(t *testing.T) {
	_, err := encodeOpenAIMessages([]types.ChatMessage{{Role: "narrator", Content: "x"}})
	assert.Error(t, err)
}

func TestEncodeOpenAIMessagesRejectsEmpty(t *testing.T) {
	_, err := encodeOpenAIMessages(nil)
	assert.Error(t, err)
}

func TestTranslateOpenAIResponseReadsFirstChoiceAndUsage(t *testing.T) {
	c := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "42"}, FinishReason: "stop"},
		},
		Usage: openai.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
	resp := translateOpenAIResponse(c)
	assert.Equal(t, "42", resp.Message.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, resp.Usage)
}

type fakeHTTPStatusErrOpenAI struct{ status int }

func (e *fakeHTTPStatusErrOpenAI) Error() string  { return "http error" }
func (e *fakeHTTPStatusErrOpenAI) StatusCode() int { return e.status }

func TestWrapOpenAIRateLimitWrapsOn429(t *testing.T) {
	err := wrapOpenAIRateLimit(&fakeHTTPStatusErrOpenAI{status: 429})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestNewOpenAIClientRequiresAPIKeyAndModel(t *testing.T) {
	_, err := NewOpenAIClient("", "gpt-4o", 1024)
	assert.Error(t, err)

	_, err = NewOpenAIClient("key", "", 1024)
	assert.Error(t, err)
}

type fakeOpenAIChat struct {
	resp *openai.ChatCompletion
	err  error
	body openai.ChatCompletionNewParams
}

func (f *fakeOpenAIChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.body = body
	return f.resp, f.err
}

func (f *fakeOpenAIChat) NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) ssestreamIterator {
	return &fakeSSEIterator{}
}

type fakeSSEIterator struct{ idx int }

func (f *fakeSSEIterator) Next() bool                            { return false }
func (f *fakeSSEIterator) Current() openai.ChatCompletionChunk { return openai.ChatCompletionChunk{} }
func (f *fakeSSEIterator) Err() error                            { return nil }
func (f *fakeSSEIterator) Close() error                          { return nil }

func TestOpenAIClientCompleteUsesDefaultModelAndMaxTokens(t *testing.T) {
	fake := &fakeOpenAIChat{resp: &openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}}}}
	client := &OpenAIClient{chat: fake, defaultModel: "gpt-4o", defaultMaxTok: 512}

	resp, err := client.Complete(context.Background(), &Request{Messages: []types.ChatMessage{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	assert.EqualValues(t, "gpt-4o", fake.body.Model)
	assert.Equal(t, openai.Int(512), fake.body.MaxTokens)
}

func TestOpenAIStreamerReturnsEOFWhenExhausted(t *testing.T) {
	s := newOpenAIStreamer(&fakeSSEIterator{})
	_, err := s.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
