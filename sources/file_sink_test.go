package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteRowsCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	rows := []map[string]any{
		{"name": "Ada", "age": 36},
		{"name": "Grace", "age": 85},
	}
	if err := WriteRows(path, "", rows); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}

	roundTripped, err := ReadRows(path, "", "")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(roundTripped) != 2 {
		t.Fatalf("len = %d, want 2", len(roundTripped))
	}
	if roundTripped[0]["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", roundTripped[0]["name"])
	}
}

func TestWriteErrorRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "errors.jsonl")
	errRows := []map[string]any{{"row": 1, "error": "boom"}}
	if err := WriteErrorRows(path, errRows); err != nil {
		t.Fatalf("WriteErrorRows: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty error file")
	}
}
