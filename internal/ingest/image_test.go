package ingest

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/obernety/mindweave/internal/apperr"
)

func writeFixturePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
}

func TestDecodeImageStats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.png")
	writeFixturePNG(t, path, 640, 480)

	width, height, format, err := decodeImageStats(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if width != 640 || height != 480 {
		t.Fatalf("expected 640x480, got %dx%d", width, height)
	}
	if format != "png" {
		t.Fatalf("expected png format, got %s", format)
	}
}

func TestImageConfidenceBounds(t *testing.T) {
	low := imageConfidence(10, 10, 0)
	if low < 0.5 || low > 1.0 {
		t.Fatalf("expected confidence within [0.5,1.0], got %f", low)
	}
	high := imageConfidence(1920, 1080, 1.0)
	if high != 1.0 {
		t.Fatalf("expected full-resolution strong-OCR confidence to saturate at 1.0, got %f", high)
	}
}

func TestImageDescriptorAspect(t *testing.T) {
	desc := imageDescriptor(1920, 1080, "jpeg")
	if desc == "" {
		t.Fatalf("expected non-empty descriptor")
	}
}

func TestParseTesseractTSV(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t95.5\tReset\n" +
		"5\t1\t1\t1\t1\t2\t70\t10\t50\t20\t-1\t\n" +
		"5\t1\t1\t1\t1\t3\t120\t10\t50\t20\t88.0\tdevice\n"

	text, conf, err := parseTesseractTSV(tsv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Reset device" {
		t.Fatalf("expected 'Reset device', got %q", text)
	}
	expected := (95.5 + 88.0) / 2 / 100.0
	if conf < expected-0.001 || conf > expected+0.001 {
		t.Fatalf("expected confidence ~%f, got %f", expected, conf)
	}
}

func TestRunOCRMissingBinaryIsDependencyMissing(t *testing.T) {
	p := NewImageProcessor("definitely-not-a-real-ocr-binary")
	_, _, err := p.runOCR(context.Background(), "/dev/null")
	var procErr *apperr.ProcessingError
	if pe, ok := err.(*apperr.ProcessingError); !ok {
		t.Fatalf("expected *apperr.ProcessingError, got %v", err)
	} else {
		procErr = pe
	}
	if procErr.Kind != apperr.DependencyMissing {
		t.Fatalf("expected DependencyMissing, got %s", procErr.Kind)
	}
}

func TestProcessFallsBackWhenOCRUnavailable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.png")
	writeFixturePNG(t, path, 300, 200)

	p := NewImageProcessor("definitely-not-a-real-ocr-binary")
	chunks, err := p.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one image chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata["warning"] == nil {
		t.Fatalf("expected warning metadata recorded when OCR binary is unavailable")
	}
}
