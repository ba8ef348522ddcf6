package llm

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/types"
)

func TestEncodeAnthropicMessagesSplitsSystemFromConversation(t *testing.T) {
	msgs := []types.ChatMessage{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	conversation, system, err := encodeAnthropicMessages(msgs)
	require.NoError(t, err)
	assert.Len(t, system, 1)
	assert.Equal(t, "be terse", system[0].Text)
	assert.Len(t, conversation, 2)
}

func TestEncodeAnthropicMessagesRejectsUnknownRole(t *testing.T) {
	_, _, err := encodeAnthropicMessages([]types.ChatMessage{{Role: "narrator", Content: "x"}})
	assert.Error(t, err)
}

func TestTranslateAnthropicResponseConcatenatesTextAndThinking(t *testing.T) {
	msg := &sdk.Message{
		StopReason: sdk.StopReason("end_turn"),
		Content: []sdk.ContentBlockUnion{
			{Type: "thinking", Thinking: "because"},
			{Type: "text", Text: "42"},
		},
		Usage: sdk.Usage{InputTokens: 10, OutputTokens: 5, CacheReadInputTokens: 1, CacheCreationInputTokens: 2},
	}
	resp := translateAnthropicResponse(msg)
	assert.Equal(t, "42", resp.Message.Content)
	assert.Equal(t, "because", resp.Reasoning)
	assert.Equal(t, "assistant", resp.Message.Role)
	assert.Equal(t, TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, CacheReadTokens: 1, CacheWriteTokens: 2}, resp.Usage)
}

type fakeHTTPStatusErr struct{ status int }

func (e *fakeHTTPStatusErr) Error() string  { return "http error" }
func (e *fakeHTTPStatusErr) StatusCode() int { return e.status }

func TestWrapRateLimitWrapsOn429(t *testing.T) {
	err := wrapRateLimit(&fakeHTTPStatusErr{status: 429})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestWrapRateLimitPassesThroughOtherStatuses(t *testing.T) {
	original := &fakeHTTPStatusErr{status: 500}
	err := wrapRateLimit(original)
	assert.False(t, errors.Is(err, ErrRateLimited))
}

func TestNewAnthropicClientRequiresAPIKeyAndModel(t *testing.T) {
	_, err := NewAnthropicClient("", "claude-3", 1024)
	assert.Error(t, err)

	_, err = NewAnthropicClient("key", "", 1024)
	assert.Error(t, err)
}

// fakeAnthropicMessages lets Complete's dispatch be tested without a real
// HTTP round trip.
type fakeAnthropicMessages struct {
	resp *sdk.Message
	err  error
	body sdk.MessageNewParams
}

func (f *fakeAnthropicMessages) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	f.body = body
	return f.resp, f.err
}

func (f *fakeAnthropicMessages) NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	return nil
}

func TestAnthropicClientCompleteUsesDefaultModelAndMaxTokens(t *testing.T) {
	fake := &fakeAnthropicMessages{resp: &sdk.Message{Content: []sdk.ContentBlockUnion{{Type: "text", Text: "ok"}}}}
	client := &AnthropicClient{msg: fake, defaultModel: "claude-3", defaultMaxTok: 512}

	resp, err := client.Complete(context.Background(), &Request{Messages: []types.ChatMessage{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	assert.EqualValues(t, "claude-3", fake.body.Model)
	assert.Equal(t, int64(512), fake.body.MaxTokens)
}

func TestAnthropicClientCompleteRejectsEmptyMessages(t *testing.T) {
	client := &AnthropicClient{msg: &fakeAnthropicMessages{}, defaultModel: "claude-3", defaultMaxTok: 512}
	_, err := client.Complete(context.Background(), &Request{})
	assert.Error(t, err)
}
