package steps

import (
	"github.com/bazaarvoice/qtype/internal/jsonvalue"
	"github.com/bazaarvoice/qtype/types"
)

// ragDocumentFromValue and its siblings below extend the Object-with-
// fixed-keys convention llm_inference.go established for ChatMessage to
// the remaining built-in domain types (§3): a domain-typed variable
// crosses a step boundary as a jsonvalue.Object keyed by the field names
// spec.md names explicitly (e.g. "a list of SearchResult{content, doc_id,
// score}").

func ragDocumentFromValue(obj jsonvalue.Object) types.RAGDocument {
	doc := types.RAGDocument{}
	if v, ok := obj["id"].(jsonvalue.Text); ok {
		doc.ID = string(v)
	}
	if v, ok := obj["content"].(jsonvalue.Text); ok {
		doc.Content = string(v)
	}
	doc.Metadata = stringMapFromValue(obj["metadata"])
	return doc
}

func ragDocumentToValue(doc types.RAGDocument) jsonvalue.Object {
	return jsonvalue.Object{
		"id":       jsonvalue.Text(doc.ID),
		"content":  jsonvalue.Text(doc.Content),
		"metadata": stringMapToValue(doc.Metadata),
	}
}

func ragChunkFromValue(obj jsonvalue.Object) types.RAGChunk {
	chunk := types.RAGChunk{}
	if v, ok := obj["doc_id"].(jsonvalue.Text); ok {
		chunk.DocID = string(v)
	}
	if v, ok := obj["chunk_id"].(jsonvalue.Text); ok {
		chunk.ChunkID = string(v)
	}
	if v, ok := obj["content"].(jsonvalue.Text); ok {
		chunk.Content = string(v)
	}
	chunk.Metadata = stringMapFromValue(obj["metadata"])
	if v, ok := obj["vector"].(jsonvalue.List); ok {
		chunk.Vector = make([]float32, len(v))
		for i, elem := range v {
			if f, ok := elem.(jsonvalue.Float); ok {
				chunk.Vector[i] = float32(f)
			}
		}
	}
	return chunk
}

func ragChunkToValue(chunk types.RAGChunk) jsonvalue.Object {
	vector := make(jsonvalue.List, len(chunk.Vector))
	for i, f := range chunk.Vector {
		vector[i] = jsonvalue.Float(f)
	}
	return jsonvalue.Object{
		"doc_id":   jsonvalue.Text(chunk.DocID),
		"chunk_id": jsonvalue.Text(chunk.ChunkID),
		"content":  jsonvalue.Text(chunk.Content),
		"metadata": stringMapToValue(chunk.Metadata),
		"vector":   vector,
	}
}

func searchResultToValue(r types.SearchResult) jsonvalue.Object {
	return jsonvalue.Object{
		"content": jsonvalue.Text(r.Content),
		"doc_id":  jsonvalue.Text(r.DocID),
		"score":   jsonvalue.Float(r.Score),
	}
}

func stringMapFromValue(v jsonvalue.Value) map[string]string {
	obj, ok := v.(jsonvalue.Object)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, val := range obj {
		if t, ok := val.(jsonvalue.Text); ok {
			out[k] = string(t)
		}
	}
	return out
}

func stringMapToValue(m map[string]string) jsonvalue.Object {
	obj := make(jsonvalue.Object, len(m))
	for k, v := range m {
		obj[k] = jsonvalue.Text(v)
	}
	return obj
}
