package search

import (
	"context"
	"encoding/json"
	"fmt"

	mvc "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/bazaarvoice/qtype/types"
)

// milvusRuntime mirrors the subset of the Milvus v2 SDK client required by
// MilvusIndex, matching the real *mvc.grpcClient's method signatures so
// callers can pass either the real client or a fake in tests (the same
// narrowing the Bedrock/OpenAI adapters apply to their SDK clients).
type milvusRuntime interface {
	Insert(ctx context.Context, collName, partitionName string, columns ...entity.Column) (entity.Column, error)
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam,
		opts ...mvc.SearchQueryOptionFunc) ([]mvc.SearchResult, error)
}

// MilvusConfig is the decoded shape of a resolve.Index's Config map for
// provider "milvus" (§3 Index.Config is opaque, provider-specific).
type MilvusConfig struct {
	Collection    string `json:"collection"`
	VectorField   string `json:"vector_field"`
	DocIDField    string `json:"doc_id_field"`
	ChunkIDField  string `json:"chunk_id_field"`
	ContentField  string `json:"content_field"`
	MetadataField string `json:"metadata_field"`
	MetricType    string `json:"metric_type"`
	NProbe        int    `json:"nprobe"`
}

func (c *MilvusConfig) applyDefaults() {
	if c.VectorField == "" {
		c.VectorField = "vector"
	}
	if c.DocIDField == "" {
		c.DocIDField = "doc_id"
	}
	if c.ChunkIDField == "" {
		c.ChunkIDField = "chunk_id"
	}
	if c.ContentField == "" {
		c.ContentField = "content"
	}
	if c.MetadataField == "" {
		c.MetadataField = "metadata"
	}
	if c.MetricType == "" {
		c.MetricType = string(entity.COSINE)
	}
	if c.NProbe <= 0 {
		c.NProbe = 10
	}
}

// MilvusIndex implements Index on top of a Milvus collection (§2, §4.G.4,
// §4.G.5): Upsert writes RAGChunks as one column per field; Query runs a
// single-vector ANN search and translates the result columns back into
// SearchResult.
type MilvusIndex struct {
	runtime milvusRuntime
	cfg     MilvusConfig
	sp      entity.SearchParam
}

// NewMilvusIndex builds a MilvusIndex from a resolved index's raw Config
// map, decoded into MilvusConfig (§4.G.4 "converts RAG documents to the
// index's native shape").
func NewMilvusIndex(runtime milvusRuntime, config map[string]any) (*MilvusIndex, error) {
	var cfg MilvusConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, fmt.Errorf("search/milvus: decode config: %w", err)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("search/milvus: config.collection is required")
	}
	cfg.applyDefaults()

	sp, err := entity.NewIndexIvfFlatSearchParam(cfg.NProbe)
	if err != nil {
		return nil, fmt.Errorf("search/milvus: build search param: %w", err)
	}
	return &MilvusIndex{runtime: runtime, cfg: cfg, sp: sp}, nil
}

// Upsert implements Index.
func (m *MilvusIndex) Upsert(ctx context.Context, chunks []types.RAGChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docIDs := make([]string, len(chunks))
	chunkIDs := make([]string, len(chunks))
	contents := make([]string, len(chunks))
	metadata := make([][]byte, len(chunks))
	vectors := make([][]float32, len(chunks))
	dim := 0
	for i, c := range chunks {
		docIDs[i] = c.DocID
		chunkIDs[i] = c.ChunkID
		contents[i] = c.Content
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("search/milvus: encode metadata for chunk %q: %w", c.ChunkID, err)
		}
		metadata[i] = meta
		vectors[i] = c.Vector
		if len(c.Vector) > dim {
			dim = len(c.Vector)
		}
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(m.cfg.DocIDField, docIDs),
		entity.NewColumnVarChar(m.cfg.ChunkIDField, chunkIDs),
		entity.NewColumnVarChar(m.cfg.ContentField, contents),
		entity.NewColumnJSONBytes(m.cfg.MetadataField, metadata),
		entity.NewColumnFloatVector(m.cfg.VectorField, dim, vectors),
	}
	if _, err := m.runtime.Insert(ctx, m.cfg.Collection, "", columns...); err != nil {
		return fmt.Errorf("search/milvus: insert into %q: %w", m.cfg.Collection, err)
	}
	return nil
}

// Query implements Index. filter, when non-empty, is rendered as a Milvus
// boolean expression of `key == "value"` clauses ANDed together; richer
// predicates are out of scope (§4.G.5 "filters may be attached", no
// expression language is specified).
func (m *MilvusIndex) Query(ctx context.Context, queryVector []float32, topK int, filter map[string]any) ([]types.SearchResult, error) {
	results, err := m.runtime.Search(
		ctx,
		m.cfg.Collection,
		nil,
		renderFilterExpr(filter),
		[]string{m.cfg.DocIDField, m.cfg.ContentField},
		[]entity.Vector{entity.FloatVector(queryVector)},
		m.cfg.VectorField,
		entity.MetricType(m.cfg.MetricType),
		topK,
		m.sp,
	)
	if err != nil {
		return nil, fmt.Errorf("search/milvus: search %q: %w", m.cfg.Collection, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return translateMilvusResult(results[0], m.cfg.DocIDField, m.cfg.ContentField)
}

func renderFilterExpr(filter map[string]any) string {
	expr := ""
	for k, v := range filter {
		if expr != "" {
			expr += " && "
		}
		expr += fmt.Sprintf("%s == %q", k, fmt.Sprint(v))
	}
	return expr
}

func translateMilvusResult(r mvc.SearchResult, docIDField, contentField string) ([]types.SearchResult, error) {
	var docIDs, contents *entity.ColumnVarChar
	for _, col := range r.Fields {
		switch col.Name() {
		case docIDField:
			if c, ok := col.(*entity.ColumnVarChar); ok {
				docIDs = c
			}
		case contentField:
			if c, ok := col.(*entity.ColumnVarChar); ok {
				contents = c
			}
		}
	}

	out := make([]types.SearchResult, 0, r.ResultCount)
	for i := 0; i < r.ResultCount; i++ {
		res := types.SearchResult{}
		if i < len(r.Scores) {
			res.Score = float64(r.Scores[i])
		}
		if docIDs != nil && i < len(docIDs.Data()) {
			res.DocID = docIDs.Data()[i]
		}
		if contents != nil && i < len(contents.Data()) {
			res.Content = contents.Data()[i]
		}
		out = append(out, res)
	}
	return out, nil
}
