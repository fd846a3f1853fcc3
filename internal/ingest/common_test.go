package ingest

import (
	"strings"
	"testing"
)

func TestSplitIntoChunksRespectsSizeBudget(t *testing.T) {
	text := strings.Repeat("This is a sentence. ", 60)
	chunks := splitIntoChunks(text, 200, 30)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long input, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len([]rune(c)) > 260 {
			t.Fatalf("chunk exceeds size budget with overlap allowance: %d runes", len([]rune(c)))
		}
	}
}

func TestSplitIntoChunksEmptyInput(t *testing.T) {
	if chunks := splitIntoChunks("   ", 500, 50); chunks != nil {
		t.Fatalf("expected nil for blank input, got %v", chunks)
	}
}

func TestSplitIntoChunksCarriesOverlap(t *testing.T) {
	text := "Alpha sentence one. Beta sentence two. Gamma sentence three. Delta sentence four."
	chunks := splitIntoChunks(text, 35, 15)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if tail := tailRunes(chunks[0], 15); !strings.HasPrefix(chunks[1], tail) {
		t.Fatalf("expected second chunk to start with the first chunk's tail %q, got %q", tail, chunks[1])
	}
}

func TestClip01Bounds(t *testing.T) {
	if clip01(-1) != 0 {
		t.Fatalf("expected 0")
	}
	if clip01(2) != 1 {
		t.Fatalf("expected 1")
	}
	if clip01(0.5) != 0.5 {
		t.Fatalf("expected 0.5")
	}
}
