package steps_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/exec"
	"github.com/bazaarvoice/qtype/exec/steps"
	"github.com/bazaarvoice/qtype/flow"
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/resolve"
	"github.com/bazaarvoice/qtype/types"
)

type fakeIndex struct {
	upserted []types.RAGChunk
	upsertErr error
	queryResults []types.SearchResult
	queryErr error
	lastTopK int
	lastFilter map[string]any
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []types.RAGChunk) error {
	f.upserted = append(f.upserted, chunks...)
	return f.upsertErr
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int, filter map[string]any) ([]types.SearchResult, error) {
	f.lastTopK = topK
	f.lastFilter = filter
	return f.queryResults, f.queryErr
}

func chunkValue(docID, chunkID, content string) jsonvalue.Object {
	return jsonvalue.Object{
		"doc_id":   jsonvalue.Text(docID),
		"chunk_id": jsonvalue.Text(chunkID),
		"content":  jsonvalue.Text(content),
		"metadata": jsonvalue.Object{},
		"vector":   jsonvalue.List{jsonvalue.Float(0.1), jsonvalue.Float(0.2)},
	}
}

func TestIndexUpsertWritesBatchAndForwardsMessages(t *testing.T) {
	step := &resolve.Step{ID: "ix", Inputs: []string{"chunk"}, Index: &resolve.Index{ID: "kb"}}
	idx := &fakeIndex{}
	up, err := steps.NewIndexUpsert(step, idx)
	require.NoError(t, err)
	batched := exec.NewBatchedBase("ix", up, 10)

	in := make(chan flow.FlowMessage, 2)
	in <- newMsg(map[string]jsonvalue.Value{"chunk": chunkValue("d1", "c1", "hello")})
	in <- newMsg(map[string]jsonvalue.Value{"chunk": chunkValue("d1", "c2", "world")})
	close(in)

	var results []flow.FlowMessage
	for m := range batched.Execute(context.Background(), in) {
		results = append(results, m)
	}

	require.Len(t, results, 2)
	require.Len(t, idx.upserted, 2)
	assert.Equal(t, "c1", idx.upserted[0].ChunkID)
	assert.Equal(t, []float32{0.1, 0.2}, idx.upserted[0].Vector)
}

func TestIndexUpsertRejectsMissingIndex(t *testing.T) {
	step := &resolve.Step{ID: "ix", Inputs: []string{"chunk"}}
	_, err := steps.NewIndexUpsert(step, &fakeIndex{})
	assert.Error(t, err)
}
