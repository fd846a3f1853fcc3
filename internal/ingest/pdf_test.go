package ingest

import (
	"context"
	"testing"

	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/chunk"
)

func newTestPDFProcessor() *PDFProcessor {
	return NewPDFProcessor(500, 50, true, 100, 100, 10, "definitely-not-a-real-pdftotext", "definitely-not-a-real-pdfimages", "definitely-not-a-real-tesseract")
}

func TestChunkPagesSetsPageNumberAndOrder(t *testing.T) {
	p := newTestPDFProcessor()
	pages := []string{
		"Page one has a short introduction sentence.",
		"Page two describes the voltage requirements in detail across several sentences.",
	}
	chunks := p.chunkPages("/tmp/manual.pdf", pages)
	if len(chunks) < 2 {
		t.Fatalf("expected at least one chunk per page, got %d", len(chunks))
	}
	if chunks[0].MetaInt(chunk.MetaPageNumber) != 1 {
		t.Fatalf("expected page_number=1 for first page's chunks")
	}
	lastPage := chunks[len(chunks)-1].MetaInt(chunk.MetaPageNumber)
	if lastPage != 2 {
		t.Fatalf("expected page_number=2 for last page's chunks, got %d", lastPage)
	}
	for i, c := range chunks {
		if got := c.MetaInt(chunk.MetaOrder); got != i {
			t.Fatalf("expected order=%d for chunk %d, got %d", i, i, got)
		}
	}
	if chunks[0].SourceType != chunk.SourcePDFText {
		t.Fatalf("expected pdf_text source type")
	}
}

func TestExtractOCRPortionSplitsDescriptorFromText(t *testing.T) {
	content := "Reset device\n\nimage 300x200, format=png, aspect=landscape"
	if got := extractOCRPortion(content); got != "Reset device" {
		t.Fatalf("expected 'Reset device', got %q", got)
	}
}

func TestExtractOCRPortionNoDescriptorReturnsEmpty(t *testing.T) {
	if got := extractOCRPortion("just a descriptor with no OCR text"); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestPDFImageFilePatternMatchesPageAndIndex(t *testing.T) {
	m := pdfImageFilePattern.FindStringSubmatch("img-003-001.png")
	if m == nil {
		t.Fatalf("expected pattern to match")
	}
	if m[1] != "003" || m[2] != "001" {
		t.Fatalf("expected page=003 index=001, got page=%s index=%s", m[1], m[2])
	}
}

func TestExtractPageTextMissingBinaryIsDependencyMissing(t *testing.T) {
	p := newTestPDFProcessor()
	_, err := p.extractPageText(context.Background(), "/tmp/does-not-matter.pdf")
	pe, ok := err.(*apperr.ProcessingError)
	if !ok {
		t.Fatalf("expected *apperr.ProcessingError, got %v", err)
	}
	if pe.Kind != apperr.DependencyMissing {
		t.Fatalf("expected DependencyMissing, got %s", pe.Kind)
	}
}

func TestProcessPropagatesMissingPDFToTextBinary(t *testing.T) {
	p := newTestPDFProcessor()
	_, err := p.Process(context.Background(), "/tmp/does-not-matter.pdf")
	if err == nil {
		t.Fatalf("expected error when pdftotext binary is unavailable")
	}
}
