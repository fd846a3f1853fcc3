package helpers

import (
	"strings"
	"testing"

	"github.com/obernety/mindweave/internal/chunk"
)

func TestFormatEvidenceLineShape(t *testing.T) {
	ref := chunk.SourceReference{
		SourceFile:     "manual.pdf",
		ContentSnippet: "Reset the device by holding the power button.",
		Modality:       chunk.Text,
		RelevanceScore: 0.82,
		Confidence:     0.9,
	}
	got := FormatEvidenceLine(1, ref)
	want := "[1] source=manual.pdf modality=text content=Reset the device by holding the power button."
	if got != want {
		t.Fatalf("FormatEvidenceLine() = %q, want %q", got, want)
	}
}

func TestFormatEvidenceLineTruncatesContent(t *testing.T) {
	ref := chunk.SourceReference{
		SourceFile:     "manual.pdf",
		ContentSnippet: strings.Repeat("word ", 400),
		Modality:       chunk.Text,
	}
	got := FormatEvidenceLine(1, ref, WithMaxContentLength(20))
	if !strings.Contains(got, "…") {
		t.Fatalf("expected truncated content to end with an ellipsis, got %q", got)
	}
}

func TestFormatEvidenceListNumbersInOrder(t *testing.T) {
	refs := []chunk.SourceReference{
		{SourceFile: "a.txt", ContentSnippet: "first", Modality: chunk.Text},
		{SourceFile: "b.txt", ContentSnippet: "second", Modality: chunk.Text},
	}
	got := FormatEvidenceList(refs)
	if !strings.HasPrefix(got, "[1] source=a.txt") {
		t.Fatalf("expected first line to start with [1], got %q", got)
	}
	lines := strings.Split(got, "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "[2] source=b.txt") {
		t.Fatalf("expected second line to start with [2], got %v", lines)
	}
}

func TestFormatEvidenceListEmpty(t *testing.T) {
	if got := FormatEvidenceList(nil); got != "" {
		t.Fatalf("expected empty string for no references, got %q", got)
	}
}

func TestFormatCitationsBatch(t *testing.T) {
	refs := []chunk.SourceReference{
		{SourceFile: "a.txt", Modality: chunk.Text, RelevanceScore: 0.5, Confidence: 0.9},
		{SourceFile: "b.png", Modality: chunk.Image, RelevanceScore: 0.6, Confidence: 0.8},
	}
	items := FormatCitations(refs)
	if len(items) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(items))
	}
	if !strings.HasPrefix(items[0], "[1] a.txt") {
		t.Fatalf("expected first citation numbered [1], got %q", items[0])
	}
	if !strings.HasPrefix(items[1], "[2] b.png") {
		t.Fatalf("expected second citation numbered [2], got %q", items[1])
	}
}
