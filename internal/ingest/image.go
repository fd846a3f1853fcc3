package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/chunk"
)

// ImageProcessor runs OCR over a raster image via an external tesseract-
// compatible binary and emits one IMAGE chunk per file, per §4.1. No OCR
// engine ships as a Go library in this stack's dependency ecosystem, so the
// binary is invoked the same way the audio processor invokes its decoder
// (§9/§11): os/exec, file path as the argument, output read from stdout.
type ImageProcessor struct {
	OCRBinary string
}

// NewImageProcessor builds an ImageProcessor bound to the configured OCR
// binary name or path.
func NewImageProcessor(ocrBinary string) *ImageProcessor {
	return &ImageProcessor{OCRBinary: ocrBinary}
}

// Process decodes path for its dimensions, runs a single-pass OCR over the
// original (unpreprocessed) image, and returns one IMAGE chunk whose content
// combines any recognized text with a short dimension/format descriptor.
func (p *ImageProcessor) Process(ctx context.Context, path string) ([]*chunk.Chunk, error) {
	width, height, format, err := decodeImageStats(path)
	if err != nil {
		return nil, err
	}

	ocrText, ocrConfidence, ocrErr := p.runOCR(ctx, path)
	if ocrErr != nil {
		// OCR is best-effort for an image file: a missing binary or a
		// failed recognition pass still yields a usable chunk carrying
		// just the descriptor, with the failure noted in metadata.
		ocrText = ""
		ocrConfidence = 0
	}

	descriptor := imageDescriptor(width, height, format)
	content := descriptor
	if ocrText != "" {
		content = ocrText + "\n\n" + descriptor
	}

	confidence := imageConfidence(width, height, ocrConfidence)
	meta := map[string]any{
		chunk.MetaWidth:         width,
		chunk.MetaHeight:        height,
		chunk.MetaFormat:        format,
		chunk.MetaOCRConfidence: ocrConfidence,
		chunk.MetaOCRText:       ocrText,
	}
	if ocrErr != nil {
		meta[chunk.MetaWarning] = ocrErr.Error()
	}

	c := newChunk(chunk.Image, content, path, chunk.SourceUploadedImage, confidence, meta)
	return []*chunk.Chunk{c}, nil
}

func decodeImageStats(path string) (width, height int, format string, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return 0, 0, "", &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "open image", Cause: openErr}
	}
	defer f.Close()

	cfg, fmtName, decodeErr := image.DecodeConfig(f)
	if decodeErr != nil {
		return 0, 0, "", &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "decode image header", Cause: decodeErr}
	}
	return cfg.Width, cfg.Height, fmtName, nil
}

func imageDescriptor(width, height int, format string) string {
	aspect := "unknown"
	if height > 0 {
		ratio := float64(width) / float64(height)
		switch {
		case ratio > 1.3:
			aspect = "landscape"
		case ratio < 0.77:
			aspect = "portrait"
		default:
			aspect = "square-ish"
		}
	}
	return fmt.Sprintf("image %dx%d, format=%s, aspect=%s", width, height, format, aspect)
}

// imageConfidence bounds intrinsic confidence to [0.5, 1.0] as a function of
// resolution (low-resolution images are less reliable evidence) and OCR
// confidence (strong OCR reinforces an image's trustworthiness as a source).
func imageConfidence(width, height int, ocrConfidence float64) float64 {
	resolutionScore := clip01(float64(width*height) / float64(1920*1080))
	base := 0.5 + 0.3*resolutionScore + 0.2*ocrConfidence
	if base > 1.0 {
		base = 1.0
	}
	if base < 0.5 {
		base = 0.5
	}
	return base
}

// runOCR shells out to the configured OCR binary using its TSV output mode
// so a per-word confidence column is available, and averages the positive
// confidence values (tesseract reports -1 for non-text regions).
func (p *ImageProcessor) runOCR(ctx context.Context, path string) (string, float64, error) {
	if _, err := exec.LookPath(p.OCRBinary); err != nil {
		return "", 0, &apperr.ProcessingError{Kind: apperr.DependencyMissing, Detail: fmt.Sprintf("OCR binary %q not found on PATH", p.OCRBinary), Cause: err}
	}

	cmd := exec.CommandContext(ctx, p.OCRBinary, path, "stdout", "tsv")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", 0, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "OCR run failed: " + stderr.String(), Cause: err}
	}

	return parseTesseractTSV(stdout.String())
}

// parseTesseractTSV reads tesseract's --tsv output: a header row followed by
// one row per recognized token with the confidence in column 10 (0-based).
func parseTesseractTSV(tsv string) (string, float64, error) {
	lines := strings.Split(tsv, "\n")
	var words []string
	var confSum float64
	var confCount int

	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		words = append(words, text)
		confSum += conf
		confCount++
	}

	if confCount == 0 {
		return "", 0, nil
	}
	avgConf := (confSum / float64(confCount)) / 100.0
	return strings.Join(words, " "), clip01(avgConf), nil
}
