package sources

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// httpFileClient fetches remote file URIs (http/https). No HTTP client
// library is a direct dependency anywhere in the pack for this concern;
// this reuses the same stdlib net/http exception already justified for
// loader/remote.go and exec/steps/tool_call.go (see DESIGN.md).
var httpFileClient = &http.Client{Timeout: 60 * time.Second}

// ReadRows reads uri (a local path or an http(s) URL) in the given
// format, emitting one map[string]any per row (§4.G.4 "emits one output
// message per row with typed columns"). format, when empty, is inferred
// via DetectFormat. sheet selects an Excel worksheet; empty uses the
// workbook's first sheet.
func ReadRows(uri string, format Format, sheet string) ([]map[string]any, error) {
	if format == "" {
		format = DetectFormat(uri)
	}

	body, err := openURI(uri)
	if err != nil {
		return nil, fmt.Errorf("sources: open %q: %w", uri, err)
	}
	defer body.Close()

	switch format {
	case FormatCSV:
		return readCSV(body)
	case FormatJSON:
		return readJSON(body)
	case FormatJSONL:
		return readJSONL(body)
	case FormatExcel:
		return readExcel(body, sheet)
	case FormatParquet:
		return nil, fmt.Errorf("sources: parquet is not supported (no parquet library in the wired dependency set)")
	default:
		return nil, fmt.Errorf("sources: cannot detect format for %q; specify format explicitly", uri)
	}
}

func openURI(uri string) (io.ReadCloser, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		resp, err := httpFileClient.Get(uri)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}
	return os.Open(uri)
}

// readCSV parses headers from the first row, converting every subsequent
// row into a header-keyed map, the same shape the teacher's parseCSV
// builds (headers + row maps), minus the max-row cap; each cell goes
// through coerceCell's numeric/bool parse.
func readCSV(body io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(body)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []map[string]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rows = append(rows, recordToRow(headers, record))
	}
	return rows, nil
}

func recordToRow(headers, record []string) map[string]any {
	row := make(map[string]any, len(headers))
	for i, h := range headers {
		if i >= len(record) {
			continue
		}
		row[h] = coerceCell(record[i])
	}
	return row
}

// coerceCell attempts a numeric parse before falling back to the raw
// string, matching the teacher's Excel parser's "try to parse as number"
// behavior for untyped cell text.
func coerceCell(raw string) any {
	if raw == "" {
		return raw
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// readJSON parses a single JSON array of row objects.
func readJSON(body io.Reader) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.NewDecoder(body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode json array: %w", err)
	}
	return rows, nil
}

// readJSONL parses one JSON object per line.
func readJSONL(body io.Reader) ([]map[string]any, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var rows []map[string]any
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("decode jsonl line: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

// readExcel reads sheet (or the workbook's first sheet when empty),
// treating row 0 as headers, mirroring the teacher's Excel parser.
func readExcel(body io.Reader, sheet string) ([]map[string]any, error) {
	f, err := excelize.OpenReader(body)
	if err != nil {
		return nil, fmt.Errorf("open excel workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	headers := raw[0]
	rows := make([]map[string]any, 0, len(raw)-1)
	for _, record := range raw[1:] {
		rows = append(rows, recordToRow(headers, record))
	}
	return rows, nil
}
