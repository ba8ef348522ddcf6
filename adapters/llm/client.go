// Package llm defines the provider-agnostic model client contract consumed
// by the LLM-inference executor (§4.G.1) and its three concrete adapters:
// Anthropic, OpenAI, and AWS Bedrock. The contract is a narrowed,
// plain-text form of the teacher's runtime/agent/model package — messages
// are types.ChatMessage (role + content), not the teacher's typed-part
// Message, since qtype's variable model has no multimodal or tool-call
// content inside an LLM turn (tool invocation is its own executor, §4.G.2).
package llm

import (
	"context"
	"errors"

	"github.com/bazaarvoice/qtype/types"
)

// ErrRateLimited is wrapped into the error returned by Complete/Stream when
// a provider signals request throttling, so callers can retry or back off
// without string-matching provider error bodies.
var ErrRateLimited = errors.New("llm: rate limited")

// TokenUsage tracks token counts for a model call.
type TokenUsage struct {
	InputTokens      int
	OutputTokens     int
	TotalTokens      int
	CacheReadTokens  int
	CacheWriteTokens int
}

// Request captures inputs for a single model invocation (§4.G.1): either a
// single-turn prompt or a full chat transcript, already merged with any
// declared memory by the caller (flow.Session.MergeMemory).
type Request struct {
	ModelID     string
	Messages    []types.ChatMessage
	MaxTokens   int
	Temperature float32
	// Reasoning requests provider-native reasoning/thinking content when
	// the adapter supports it (§4.G.1 "reasoning content, if the adapter
	// surfaces it").
	Reasoning bool
}

// Response is the result of a non-streaming invocation.
type Response struct {
	Message    types.ChatMessage
	Reasoning  string
	Usage      TokenUsage
	StopReason string
}

// ChunkType discriminates a streaming Chunk's payload.
type ChunkType string

const (
	ChunkText      ChunkType = "text"
	ChunkReasoning ChunkType = "reasoning"
	ChunkUsage     ChunkType = "usage"
	ChunkStop      ChunkType = "stop"
)

// Chunk is one streaming event from the model (§4.G.1).
type Chunk struct {
	Type       ChunkType
	Text       string
	Usage      *TokenUsage
	StopReason string
}

// Streamer delivers incremental model output. Callers must drain Recv
// until it returns io.EOF (or another terminal error), then call Close.
type Streamer interface {
	Recv() (Chunk, error)
	Close() error
}

// Client is the provider-agnostic model client (§4.G.1).
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Stream(ctx context.Context, req *Request) (Streamer, error)
}
