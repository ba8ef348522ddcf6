package sources

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/xuri/excelize/v2"
)

// WriteRows writes rows to uri in the given format (inferred via
// DetectFormat when empty), mirroring ReadRows' reverse direction.
// Parquet is declared but unsupported for the same reason as ReadRows.
func WriteRows(uri string, format Format, rows []map[string]any) error {
	if format == "" {
		format = DetectFormat(uri)
	}

	f, err := os.Create(uri)
	if err != nil {
		return fmt.Errorf("sources: create %q: %w", uri, err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		return writeCSV(f, rows)
	case FormatJSON:
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatJSONL:
		enc := json.NewEncoder(f)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("sources: encode jsonl row: %w", err)
			}
		}
		return nil
	case FormatExcel:
		return writeExcel(uri, rows)
	case FormatParquet:
		return fmt.Errorf("sources: parquet is not supported (no parquet library in the wired dependency set)")
	default:
		return fmt.Errorf("sources: cannot detect format for %q; specify format explicitly", uri)
	}
}

// WriteErrorRows writes the sibling error file a FileSink attaches failed
// rows to when a path is configured (§4.G.4 "writes errors to a sibling
// error file if a path is configured"). Each entry is a row plus the error
// message that rejected it, serialized as JSONL for append-friendly
// streaming consumers.
func WriteErrorRows(uri string, errorRows []map[string]any) error {
	f, err := os.Create(uri)
	if err != nil {
		return fmt.Errorf("sources: create error file %q: %w", uri, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, row := range errorRows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("sources: encode error row: %w", err)
		}
	}
	return nil
}

func sortedColumns(rows []map[string]any) []string {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

func writeCSV(f *os.File, rows []map[string]any) error {
	columns := sortedColumns(rows)
	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(columns); err != nil {
		return fmt.Errorf("sources: write csv header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = stringify(row[col])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("sources: write csv row: %w", err)
		}
	}
	return w.Error()
}

func writeExcel(uri string, rows []map[string]any) error {
	columns := sortedColumns(rows)
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for i, col := range columns {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, row[col]); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(uri)
}
