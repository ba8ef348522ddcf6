// Package sources implements the FileSource/FileSink/SQLSource readers and
// writers backing exec/steps' source and sink executors (§4.G.4): format
// auto-detection by URI extension, row-oriented CSV/JSON/JSONL/Excel I/O,
// and a parameterized SQL query path. Every reader/writer here returns or
// consumes rows as []map[string]any, the same row-dict shape the teacher's
// document-parsing tool (teradata-labs-loom) produces from CSV and Excel;
// exec/steps converts each row to a jsonvalue.Object at the step boundary.
package sources

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// Format identifies a tabular file encoding (§4.G.4 "CSV/JSON/JSONL/
// Parquet/Excel"). Parquet has no third-party or stdlib encoder/decoder
// anywhere in the retrieved example pack, so it is declared but left
// unimplemented — DetectFormat still recognizes the extension so a step
// referencing one fails with a clear "unsupported format" error rather
// than a silent misparse (see DESIGN.md Open Question resolution).
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
	FormatExcel   Format = "excel"
	FormatParquet Format = "parquet"
)

// DetectFormat infers a Format from a URI's extension, mirroring the
// teacher's document-parsing tool's detectFormat (extension-keyed
// switch over a fixed set of supported kinds).
func DetectFormat(uri string) Format {
	ext := strings.ToLower(filepath.Ext(uri))
	switch ext {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".xlsx", ".xls":
		return FormatExcel
	case ".parquet":
		return FormatParquet
	default:
		return ""
	}
}

// decodeConfig round-trips a step's raw Fields/Config map into a typed
// options struct, the same technique exec/steps.decodeFields and
// adapters/search.decodeConfig use; see DESIGN.md for why stdlib
// encoding/json is the stack-consistent choice over a third-party
// decoder.
func decodeConfig(fields map[string]any, target any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
