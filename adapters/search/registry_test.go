package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarvoice/qtype/types"
)

type fakeIndex struct{ id string }

func (f *fakeIndex) Upsert(context.Context, []types.RAGChunk) error { return nil }
func (f *fakeIndex) Query(context.Context, []float32, int, map[string]any) ([]types.SearchResult, error) {
	return nil, nil
}

func TestRegistryMaterializesFactoryOnlyOnce(t *testing.T) {
	calls := 0
	r := NewRegistry()
	r.Register("kb", func() (Index, error) {
		calls++
		return &fakeIndex{id: "kb"}, nil
	})

	first, err := r.Get("kb")
	require.NoError(t, err)
	second, err := r.Get("kb")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestRegistryReturnsErrorForUnregisteredID(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestRegistryPropagatesFactoryError(t *testing.T) {
	r := NewRegistry()
	r.Register("bad", func() (Index, error) { return nil, assertErr })
	_, err := r.Get("bad")
	assert.ErrorIs(t, err, assertErr)
}

var assertErr = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }
