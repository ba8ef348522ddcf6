package stream

import (
	"strconv"
	"sync"
)

// WireChunk is the wire vocabulary a browser client consumes (§4.I). Convert
// produces text-start/delta/end, reasoning-start/delta/end,
// message-metadata, step-start/finish, tool-input-start,
// tool-output-available/error and error; no event maps to tool-input-delta
// or tool-input-available, so those chunk types are never produced.
type WireChunk struct {
	Type     string         `json:"type"`
	ChunkID  string         `json:"chunk_id"`
	StepID   string         `json:"step_id,omitempty"`
	Text     string         `json:"text,omitempty"`
	Message  string         `json:"message,omitempty"`
	ToolID   string         `json:"tool_id,omitempty"`
	Output   any            `json:"output,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EventConverter maintains per-stream_id correlation state and maps
// internal Events to the wire chunk vocabulary (§4.I). It must preserve
// stream_id continuity (the same chunk id across start/delta/end) and
// emit distinct chunk ids for distinct streams; a single converter
// instance is not safe for concurrent use from multiple goroutines
// emitting on the same stream_id without external serialization, matching
// the per-flow single-driver-task discipline of §5.
type EventConverter struct {
	mu      sync.Mutex
	chunkID map[string]string
	counter int
}

// NewEventConverter constructs an empty converter.
func NewEventConverter() *EventConverter {
	return &EventConverter{chunkID: map[string]string{}}
}

// Convert maps ev to its wire chunk representation.
func (c *EventConverter) Convert(ev Event) WireChunk {
	switch e := ev.(type) {
	case TextStreamStart:
		return c.base("text-start", e.Base)
	case TextStreamDelta:
		chunk := c.base("text-delta", e.Base)
		chunk.Text = e.Text
		return chunk
	case TextStreamEnd:
		chunk := c.base("text-end", e.Base)
		c.release(e.Stream)
		return chunk
	case ReasoningStreamStart:
		return c.base("reasoning-start", e.Base)
	case ReasoningStreamDelta:
		chunk := c.base("reasoning-delta", e.Base)
		chunk.Text = e.Text
		return chunk
	case ReasoningStreamEnd:
		chunk := c.base("reasoning-end", e.Base)
		c.release(e.Stream)
		return chunk
	case Status:
		chunk := c.base("message-metadata", e.Base)
		chunk.Message = e.Message
		return chunk
	case StepStart:
		return c.base("step-start", e.Base)
	case StepEnd:
		return c.base("step-finish", e.Base)
	case ToolExecutionStart:
		chunk := c.base("tool-input-start", e.Base)
		chunk.ToolID = e.ToolID
		return chunk
	case ToolExecutionEnd:
		chunk := c.base("tool-output-available", e.Base)
		chunk.ToolID = e.ToolID
		chunk.Output = e.Output
		return chunk
	case ToolExecutionError:
		chunk := c.base("tool-output-error", e.Base)
		chunk.ToolID = e.ToolID
		chunk.Message = e.Message
		return chunk
	case Error:
		chunk := c.base("error", e.Base)
		chunk.Message = e.ErrorMessage
		return chunk
	default:
		return c.base("unknown", Base{})
	}
}

func (c *EventConverter) base(chunkType string, b Base) WireChunk {
	return WireChunk{
		Type:     chunkType,
		ChunkID:  c.chunkIDFor(b.Stream),
		StepID:   b.Step,
		Metadata: b.MetadataBag,
	}
}

// chunkIDFor returns the stable chunk id for a stream_id, allocating a new
// one on first use so the same chunk id threads through start/delta/end.
func (c *EventConverter) chunkIDFor(streamID string) string {
	if streamID == "" {
		c.mu.Lock()
		c.counter++
		id := "c" + strconv.Itoa(c.counter)
		c.mu.Unlock()
		return id
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.chunkID[streamID]; ok {
		return id
	}
	c.counter++
	id := "c" + strconv.Itoa(c.counter)
	c.chunkID[streamID] = id
	return id
}

func (c *EventConverter) release(streamID string) {
	c.mu.Lock()
	delete(c.chunkID, streamID)
	c.mu.Unlock()
}
