// Package search implements the vector/document index client lifecycle
// backing the IndexUpsert and Search executors (§4.G.4, §4.G.5). An Index
// is the provider-neutral contract those executors depend on; Registry
// lazily materializes and caches the concrete client behind a resolved
// index descriptor, the same acquire-once-reuse pattern the Temporal engine
// adapter uses for per-queue worker bundles (runtime/agent/engine/temporal:
// workerForQueue locks a map, returns a cached bundle if present, otherwise
// builds and caches one) — an index descriptor is likewise immutable, so
// its client is built once and shared across every step that references it.
package search

import (
	"context"
	"encoding/json"

	"github.com/bazaarvoice/qtype/types"
)

// Index is the provider-neutral contract the IndexUpsert and Search
// executors depend on (§4.G.4 "converts RAG documents to the index's
// native shape and writes"; §4.G.5 "vector search... a list of
// SearchResult{content, doc_id, score}").
type Index interface {
	// Upsert writes chunks to the index, converting them to its native
	// shape. Called with a full batch (§4.F.2 batch_config).
	Upsert(ctx context.Context, chunks []types.RAGChunk) error

	// Query runs a similarity search against queryVector, returning up to
	// topK results ordered by score (highest first); filter narrows the
	// search when the index provider supports structured predicates.
	Query(ctx context.Context, queryVector []float32, topK int, filter map[string]any) ([]types.SearchResult, error)
}

// Embedder converts text into the dense vectors Query and Upsert need.
// Index providers that store raw vectors (rather than computing them
// server-side) are paired with an Embedder at wiring time.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// decodeConfig round-trips a resolved index's Config map into a typed
// options struct, the same technique exec/steps.decodeFields uses for step
// Fields; no third-party decoder is a dependency anywhere in the example
// pack, so stdlib encoding/json is the stack-consistent choice here too
// (see DESIGN.md).
func decodeConfig(config map[string]any, target any) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
