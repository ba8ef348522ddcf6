package sources

import (
	"context"
	"fmt"

	"github.com/bazaarvoice/qtype/types"
)

// DocumentReader produces RAG documents from a named source given its
// declared args, e.g. a directory walker, a wiki-space crawler, or a
// vendor-specific document API client. Go has no string-keyed dynamic
// import, so readers are registered ahead of time by name rather than
// resolved by reflection, the same constraint tool_call.go's
// NativeRegistry works around for native tool functions.
type DocumentReader func(ctx context.Context, args map[string]any) ([]types.RAGDocument, error)

// DocumentReaderRegistry looks up a DocumentReader by its reader_module
// key (§4.G.4 "a named reader configured by reader_module + args").
type DocumentReaderRegistry map[string]DocumentReader

// NewFileDocumentReader builds a DocumentReader that treats every row
// ReadRows decodes from args["uri"] (args["format"] optional, args["sheet"]
// optional for Excel) as a RAG document: args["content_field"] names the
// column holding document text (default "content"); every other column
// becomes string metadata, and args["id_field"] (default "id") supplies
// the document id, falling back to a positional id when absent.
func NewFileDocumentReader() DocumentReader {
	return func(_ context.Context, args map[string]any) ([]types.RAGDocument, error) {
		var cfg struct {
			URI          string `json:"uri"`
			Format       string `json:"format"`
			Sheet        string `json:"sheet"`
			ContentField string `json:"content_field"`
			IDField      string `json:"id_field"`
		}
		if err := decodeConfig(args, &cfg); err != nil {
			return nil, err
		}
		if cfg.ContentField == "" {
			cfg.ContentField = "content"
		}
		if cfg.IDField == "" {
			cfg.IDField = "id"
		}

		rows, err := ReadRows(cfg.URI, Format(cfg.Format), cfg.Sheet)
		if err != nil {
			return nil, err
		}

		docs := make([]types.RAGDocument, len(rows))
		for i, row := range rows {
			docs[i] = rowToDocument(row, cfg.ContentField, cfg.IDField, i)
		}
		return docs, nil
	}
}

func rowToDocument(row map[string]any, contentField, idField string, index int) types.RAGDocument {
	doc := types.RAGDocument{Metadata: map[string]string{}}
	if id, ok := row[idField]; ok {
		doc.ID = stringify(id)
	} else {
		doc.ID = stringify(index)
	}
	if content, ok := row[contentField]; ok {
		doc.Content = stringify(content)
	}
	for k, v := range row {
		if k == idField || k == contentField {
			continue
		}
		doc.Metadata[k] = stringify(v)
	}
	return doc
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
