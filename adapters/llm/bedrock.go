package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/bazaarvoice/qtype/types"
)

// bedrockRuntimeClient mirrors the subset of the AWS Bedrock runtime client
// required by the adapter, matching *bedrockruntime.Client so tests can
// substitute a fake.
type bedrockRuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// BedrockClient implements Client on top of the AWS Bedrock Converse API.
type BedrockClient struct {
	runtime       bedrockRuntimeClient
	defaultModel  string
	defaultMaxTok int
}

// NewBedrockClient builds a Bedrock-backed client from an aws.Config (a
// secret.Provider.Cloud session, per §4.J) and a default model identifier.
func NewBedrockClient(cfg aws.Config, defaultModel string, defaultMaxTokens int) (*BedrockClient, error) {
	if defaultModel == "" {
		return nil, errors.New("llm/bedrock: default model is required")
	}
	return &BedrockClient{
		runtime:       bedrockruntime.NewFromConfig(cfg),
		defaultModel:  defaultModel,
		defaultMaxTok: defaultMaxTokens,
	}, nil
}

func (c *BedrockClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	input, err := c.prepareInput(req)
	if err != nil {
		return nil, err
	}
	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, wrapBedrockError("converse", err)
	}
	return translateBedrockOutput(out), nil
}

func (c *BedrockClient) Stream(ctx context.Context, req *Request) (Streamer, error) {
	input, err := c.prepareInput(req)
	if err != nil {
		return nil, err
	}
	out, err := c.runtime.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         input.ModelId,
		Messages:        input.Messages,
		System:          input.System,
		InferenceConfig: input.InferenceConfig,
	})
	if err != nil {
		return nil, wrapBedrockError("converse stream", err)
	}
	return newBedrockStreamer(ctx, out), nil
}

// wrapBedrockError folds a Bedrock-reported throttling error into
// ErrRateLimited, recognized via smithy-go's APIError (the error shape
// every AWS SDK v2 service client, including bedrockruntime, returns for a
// service-side error) rather than a Bedrock-specific error type.
func wrapBedrockError(action string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
			return fmt.Errorf("llm/bedrock: %s: %w: %w", action, ErrRateLimited, err)
		}
	}
	return fmt.Errorf("llm/bedrock: %s: %w", action, err)
}

func (c *BedrockClient) prepareInput(req *Request) (*bedrockruntime.ConverseInput, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("llm/bedrock: messages are required")
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.defaultModel
	}
	conversation, system, err := encodeBedrockMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: conversation,
		System:   system,
	}
	infCfg := &brtypes.InferenceConfiguration{}
	haveInfCfg := false
	if maxTokens := req.MaxTokens; maxTokens > 0 {
		infCfg.MaxTokens = aws.Int32(int32(maxTokens))
		haveInfCfg = true
	} else if c.defaultMaxTok > 0 {
		infCfg.MaxTokens = aws.Int32(int32(c.defaultMaxTok))
		haveInfCfg = true
	}
	if req.Temperature > 0 {
		infCfg.Temperature = aws.Float32(req.Temperature)
		haveInfCfg = true
	}
	if haveInfCfg {
		input.InferenceConfig = infCfg
	}
	return input, nil
}

func encodeBedrockMessages(msgs []types.ChatMessage) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	conversation := make([]brtypes.Message, 0, len(msgs))
	var system []brtypes.SystemContentBlock
	for _, m := range msgs {
		if m.Role == "system" {
			if m.Content != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
			}
			continue
		}
		block := brtypes.ContentBlock(&brtypes.ContentBlockMemberText{Value: m.Content})
		switch m.Role {
		case "user", "tool":
			conversation = append(conversation, brtypes.Message{Role: brtypes.ConversationRoleUser, Content: []brtypes.ContentBlock{block}})
		case "assistant":
			conversation = append(conversation, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: []brtypes.ContentBlock{block}})
		default:
			return nil, nil, fmt.Errorf("llm/bedrock: unsupported message role %q", m.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("llm/bedrock: at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func translateBedrockOutput(out *bedrockruntime.ConverseOutput) *Response {
	resp := &Response{Message: types.ChatMessage{Role: "assistant"}, StopReason: string(out.StopReason)}
	if msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msgOut.Value.Content {
			if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
				resp.Message.Content += text.Value
			}
			if reasoning, ok := block.(*brtypes.ContentBlockMemberReasoningContent); ok {
				if rc, ok := reasoning.Value.(*brtypes.ReasoningContentBlockMemberReasoningText); ok {
					resp.Reasoning += rc.Value.Text
				}
			}
		}
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return resp
}

// bedrockStreamer adapts a Bedrock ConverseStream event stream to the
// Streamer interface.
type bedrockStreamer struct {
	cancel context.CancelFunc
	events *bedrockruntime.ConverseStreamEventStream
}

func newBedrockStreamer(ctx context.Context, out *bedrockruntime.ConverseStreamOutput) *bedrockStreamer {
	_, cancel := context.WithCancel(ctx)
	return &bedrockStreamer{cancel: cancel, events: out.GetStream()}
}

func (s *bedrockStreamer) Recv() (Chunk, error) {
	for event := range s.events.Events() {
		switch ev := event.(type) {
		case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
			switch delta := ev.Value.Delta.(type) {
			case *brtypes.ContentBlockDeltaMemberText:
				if delta.Value != "" {
					return Chunk{Type: ChunkText, Text: delta.Value}, nil
				}
			case *brtypes.ContentBlockDeltaMemberReasoningContent:
				if rc, ok := delta.Value.(*brtypes.ReasoningContentBlockDeltaMemberText); ok && rc.Value != "" {
					return Chunk{Type: ChunkReasoning, Text: rc.Value}, nil
				}
			}
		case *brtypes.ConverseStreamOutputMemberMessageStop:
			return Chunk{Type: ChunkStop, StopReason: string(ev.Value.StopReason)}, nil
		case *brtypes.ConverseStreamOutputMemberMetadata:
			if ev.Value.Usage != nil {
				return Chunk{Type: ChunkUsage, Usage: &TokenUsage{
					InputTokens:  int(aws.ToInt32(ev.Value.Usage.InputTokens)),
					OutputTokens: int(aws.ToInt32(ev.Value.Usage.OutputTokens)),
					TotalTokens:  int(aws.ToInt32(ev.Value.Usage.TotalTokens)),
				}}, nil
			}
		}
	}
	if err := s.events.Err(); err != nil {
		return Chunk{}, fmt.Errorf("llm/bedrock: stream: %w", err)
	}
	return Chunk{}, io.EOF
}

func (s *bedrockStreamer) Close() error {
	s.cancel()
	s.events.Close()
	return nil
}
