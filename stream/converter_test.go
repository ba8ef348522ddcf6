package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bazaarvoice/qtype/stream"
)

func TestConverterPreservesStreamIDContinuity(t *testing.T) {
	c := stream.NewEventConverter()

	start := c.Convert(stream.TextStreamStart{Base: stream.Base{EventType: stream.EventTextStreamStart, Step: "ask", Stream: "s1"}})
	delta := c.Convert(stream.TextStreamDelta{Base: stream.Base{EventType: stream.EventTextStreamDelta, Step: "ask", Stream: "s1"}, Text: "hi"})
	end := c.Convert(stream.TextStreamEnd{Base: stream.Base{EventType: stream.EventTextStreamEnd, Step: "ask", Stream: "s1"}})

	assert.Equal(t, start.ChunkID, delta.ChunkID)
	assert.Equal(t, delta.ChunkID, end.ChunkID)
	assert.Equal(t, "text-start", start.Type)
	assert.Equal(t, "text-delta", delta.Type)
	assert.Equal(t, "hi", delta.Text)
}

func TestConverterDistinctStreamsGetDistinctChunkIDs(t *testing.T) {
	c := stream.NewEventConverter()

	a := c.Convert(stream.TextStreamStart{Base: stream.Base{Stream: "s1"}})
	b := c.Convert(stream.TextStreamStart{Base: stream.Base{Stream: "s2"}})

	assert.NotEqual(t, a.ChunkID, b.ChunkID)
}
