package llm

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/types"
)

func TestEncodeBedrockMessagesSplitsSystemFromConversation(t *testing.T) {
	msgs := []types.ChatMessage{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	conversation, system, err := encodeBedrockMessages(msgs)
	require.NoError(t, err)
	require.Len(t, system, 1)
	sysText, ok := system[0].(*brtypes.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "be terse", sysText.Value)
	assert.Len(t, conversation, 2)
	assert.Equal(t, brtypes.ConversationRoleUser, conversation[0].Role)
	assert.Equal(t, brtypes.ConversationRoleAssistant, conversation[1].Role)
}

func TestEncodeBedrockMessagesRejectsUnknownRole(t *testing.T) {
	_, _, err := encodeBedrockMessages([]types.ChatMessage{{Role: "narrator", Content: "x"}})
	assert.Error(t, err)
}

func TestTranslateBedrockOutputConcatenatesTextAndReasoning(t *testing.T) {
	out := &bedrockruntime.ConverseOutput{
		StopReason: brtypes.StopReason("end_turn"),
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: "42"},
					&brtypes.ContentBlockMemberReasoningContent{
						Value: &brtypes.ReasoningContentBlockMemberReasoningText{
							Value: brtypes.ReasoningTextBlock{Text: "because"},
						},
					},
				},
			},
		},
		Usage: &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(5), TotalTokens: aws.Int32(15)},
	}
	resp := translateBedrockOutput(out)
	assert.Equal(t, "42", resp.Message.Content)
	assert.Equal(t, "because", resp.Reasoning)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
}

func TestNewBedrockClientRequiresDefaultModel(t *testing.T) {
	_, err := NewBedrockClient(aws.Config{}, "", 1024)
	assert.Error(t, err)
}

type fakeBedrockRuntime struct {
	out    *bedrockruntime.ConverseOutput
	err    error
	params *bedrockruntime.ConverseInput
}

func (f *fakeBedrockRuntime) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.params = params
	return f.out, f.err
}

func (f *fakeBedrockRuntime) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, nil
}

func TestBedrockClientCompleteAppliesDefaultMaxTokens(t *testing.T) {
	fake := &fakeBedrockRuntime{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "ok"}}}},
	}}
	client := &BedrockClient{runtime: fake, defaultModel: "anthropic.claude-3", defaultMaxTok: 256}

	resp, err := client.Complete(context.Background(), &Request{Messages: []types.ChatMessage{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
	require.NotNil(t, fake.params.InferenceConfig)
	assert.Equal(t, int32(256), aws.ToInt32(fake.params.InferenceConfig.MaxTokens))
}
