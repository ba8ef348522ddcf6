package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFileDocumentReaderBuildsRAGDocuments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.jsonl")
	content := `{"id":"d1","content":"hello world","topic":"greeting"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	reader := NewFileDocumentReader()
	docs, err := reader(context.Background(), map[string]any{"uri": path})
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	if docs[0].ID != "d1" {
		t.Errorf("ID = %q, want d1", docs[0].ID)
	}
	if docs[0].Content != "hello world" {
		t.Errorf("Content = %q, want %q", docs[0].Content, "hello world")
	}
	if docs[0].Metadata["topic"] != "greeting" {
		t.Errorf("Metadata[topic] = %q, want greeting", docs[0].Metadata["topic"])
	}
}

func TestNewFileDocumentReaderFallsBackToPositionalID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.jsonl")
	content := `{"content":"a"}` + "\n" + `{"content":"b"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	reader := NewFileDocumentReader()
	docs, err := reader(context.Background(), map[string]any{"uri": path})
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	if docs[0].ID != "0" || docs[1].ID != "1" {
		t.Errorf("IDs = %q, %q, want 0, 1", docs[0].ID, docs[1].ID)
	}
}
