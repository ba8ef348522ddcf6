package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv")
	content := "name,age,active\nAda,36,true\nGrace,85,false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rows, err := ReadRows(path, "", "")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0]["name"] != "Ada" {
		t.Errorf("rows[0][name] = %v, want Ada", rows[0]["name"])
	}
	if rows[0]["age"] != float64(36) {
		t.Errorf("rows[0][age] = %v (%T), want 36", rows[0]["age"], rows[0]["age"])
	}
	if rows[1]["active"] != false {
		t.Errorf("rows[1][active] = %v, want false", rows[1]["active"])
	}
}

func TestReadJSONLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.jsonl")
	content := `{"id":1,"name":"a"}` + "\n" + `{"id":2,"name":"b"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rows, err := ReadRows(path, "", "")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[1]["name"] != "b" {
		t.Errorf("rows[1][name] = %v, want b", rows[1]["name"])
	}
}

func TestReadRowsUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.parquet")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := ReadRows(path, "", ""); err == nil {
		t.Fatal("expected error for parquet format")
	}
}
