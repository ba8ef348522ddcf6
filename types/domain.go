package types

// ChatMessage is the built-in domain type for conversational turns; it
// backs Session.ConversationHistory (§3) and LLM-inference step inputs.
type ChatMessage struct {
	Role    string // "system", "user", "assistant", "tool"
	Content string
	// Name optionally identifies the tool or participant that produced
	// the message (e.g. a tool-call result keyed by tool name).
	Name string
}

// Embedding is the built-in domain type for a dense vector produced by an
// embedding model, paired with the source text it was computed from.
type Embedding struct {
	Vector []float32
	Source string
}

// RAGDocument is the built-in domain type produced by DocumentSource
// readers (§4.G.4) before chunking/embedding.
type RAGDocument struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// RAGChunk is a RAGDocument fragment, the unit IndexUpsert writes to an
// index (§4.G.4).
type RAGChunk struct {
	DocID    string
	ChunkID  string
	Content  string
	Metadata map[string]string
	Vector   []float32
}

// SearchResult is the built-in domain type returned by the Search executor
// (§4.G.5).
type SearchResult struct {
	Content string
	DocID   string
	Score   float64
}
