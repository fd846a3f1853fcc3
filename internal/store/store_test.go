package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/obernety/mindweave/internal/chunk"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "vectors.db"), filepath.Join(dir, "keyword.bleve"), 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustChunk(id string, modality chunk.Modality, sourceFile, content string, vec []float32) *chunk.Chunk {
	return &chunk.Chunk{
		ID: id, Modality: modality, SourceFile: sourceFile, Content: content,
		Embedding: vec, Confidence: 0.8, CreatedAt: time.Now(),
	}
}

func TestAddRejectsMissingEmbedding(t *testing.T) {
	s := openTestStore(t)
	c := &chunk.Chunk{ID: "a", Modality: chunk.Text, SourceFile: "f.txt", Content: "x"}
	if err := s.Add(context.Background(), []*chunk.Chunk{c}); err == nil {
		t.Fatalf("expected error for chunk without embedding")
	}
	if s.Count(context.Background()) != 0 {
		t.Fatalf("expected no partial insert")
	}
}

func TestAddAndSearch(t *testing.T) {
	s := openTestStore(t)
	c1 := mustChunk("a", chunk.Text, "f.txt", "the operating voltage is 220V", []float32{1, 0, 0, 0})
	c2 := mustChunk("b", chunk.Text, "f.txt", "irrelevant content", []float32{0, 1, 0, 0})
	if err := s.Add(context.Background(), []*chunk.Chunk{c1, c2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if s.Count(context.Background()) != 2 {
		t.Fatalf("expected count 2")
	}

	hits, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 1, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.ID != "a" {
		t.Fatalf("expected chunk 'a' top hit, got %+v", hits)
	}
}

func TestDeleteCascadesBySourceFile(t *testing.T) {
	s := openTestStore(t)
	c1 := mustChunk("a", chunk.Text, "f.txt", "one", []float32{1, 0, 0, 0})
	c2 := mustChunk("b", chunk.Text, "g.txt", "two", []float32{0, 1, 0, 0})
	if err := s.Add(context.Background(), []*chunk.Chunk{c1, c2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Delete(context.Background(), Filter{SourceFile: "f.txt"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Count(context.Background()) != 1 {
		t.Fatalf("expected 1 chunk remaining after cascade delete")
	}
}

func TestResetEmptiesStore(t *testing.T) {
	s := openTestStore(t)
	c1 := mustChunk("a", chunk.Text, "f.txt", "one", []float32{1, 0, 0, 0})
	if err := s.Add(context.Background(), []*chunk.Chunk{c1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.Count(context.Background()) != 0 {
		t.Fatalf("expected empty store after reset")
	}
	// store must remain usable after reset.
	c2 := mustChunk("b", chunk.Text, "g.txt", "two", []float32{0, 1, 0, 0})
	if err := s.Add(context.Background(), []*chunk.Chunk{c2}); err != nil {
		t.Fatalf("Add after reset: %v", err)
	}
}

func TestKeywordMatchCounts(t *testing.T) {
	s := openTestStore(t)
	c := mustChunk("a", chunk.Text, "f.txt", "voltage voltage reading", []float32{1, 0, 0, 0})
	if err := s.Add(context.Background(), []*chunk.Chunk{c}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	counts, err := s.KeywordMatchCounts(context.Background(), []string{"a"}, []string{"voltage"})
	if err != nil {
		t.Fatalf("KeywordMatchCounts: %v", err)
	}
	if counts["a"] != 2 {
		t.Fatalf("expected 2 matches, got %d", counts["a"])
	}
}

func TestRejectsDuplicateID(t *testing.T) {
	s := openTestStore(t)
	c := mustChunk("a", chunk.Text, "f.txt", "one", []float32{1, 0, 0, 0})
	if err := s.Add(context.Background(), []*chunk.Chunk{c}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	dup := mustChunk("a", chunk.Text, "f.txt", "two", []float32{0, 1, 0, 0})
	if err := s.Add(context.Background(), []*chunk.Chunk{dup}); err == nil {
		t.Fatalf("expected duplicate id rejection")
	}
}
