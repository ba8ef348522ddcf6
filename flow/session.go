package flow

import (
	"sync"

	"github.com/bazaarvoice/qtype/types"
)

// Session is shared by reference across all messages produced from one
// initial input (§3), so per-session memory (LLM chat memory, KV caches)
// can key on it. Unlike the richer durable session lifecycle the ambient
// stack carries elsewhere, a flow.Session is a run-scoped entity: it is
// created when a run starts and discarded when the run completes (§3
// Lifecycle); nothing here is persisted across process restarts.
type Session struct {
	ID string

	mu                 sync.Mutex
	conversationHistory []types.ChatMessage
}

// NewSession constructs a Session with the given id and empty history.
func NewSession(id string) *Session {
	return &Session{ID: id}
}

// History returns a snapshot of the conversation history accumulated so
// far. Safe for concurrent use with Append.
func (s *Session) History() []types.ChatMessage {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ChatMessage, len(s.conversationHistory))
	copy(out, s.conversationHistory)
	return out
}

// Append adds messages to the session's conversation history. It is the
// single mutation point for conversation history (SPEC_FULL.md §4
// memory-merge order resolution): the LLM-inference executor is the only
// caller, and it must serialize access within one session (§5 Shared
// resources), which this method's internal mutex guarantees.
func (s *Session) Append(messages ...types.ChatMessage) {
	if s == nil || len(messages) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationHistory = append(s.conversationHistory, messages...)
}

// MergeMemory resolves the effective conversation for an LLM call per
// SPEC_FULL.md's memory-merge order: session history is authoritative and
// always comes first; extra contributes only messages not already present
// in session history (compared by pointer-free value equality here, since
// ChatMessage is a plain value type passed by copy), followed by the
// current turn.
func (s *Session) MergeMemory(extra []types.ChatMessage, currentTurn types.ChatMessage) []types.ChatMessage {
	history := s.History()
	seen := make(map[types.ChatMessage]bool, len(history))
	for _, m := range history {
		seen[m] = true
	}
	merged := make([]types.ChatMessage, 0, len(history)+len(extra)+1)
	merged = append(merged, history...)
	for _, m := range extra {
		if seen[m] {
			continue
		}
		merged = append(merged, m)
		seen[m] = true
	}
	merged = append(merged, currentTurn)
	return merged
}
