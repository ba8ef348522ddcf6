package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/types"
)

func TestSessionMergeMemoryOrder(t *testing.T) {
	s := flow.NewSession("sess-1")
	s.Append(types.ChatMessage{Role: "user", Content: "hi"})
	s.Append(types.ChatMessage{Role: "assistant", Content: "hello"})

	extra := []types.ChatMessage{
		{Role: "assistant", Content: "hello"}, // already in history, dropped
		{Role: "system", Content: "recall: likes go"},
	}
	current := types.ChatMessage{Role: "user", Content: "what now?"}

	merged := s.MergeMemory(extra, current)
	assert.Equal(t, []types.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "system", Content: "recall: likes go"},
		{Role: "user", Content: "what now?"},
	}, merged)
}
