package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/chunk"
)

// PDFProcessor treats a PDF as a container of per-page text plus embedded
// raster images (§4.1). No PDF-parsing library ships anywhere in this
// stack's dependency ecosystem either, so text and image extraction reuse
// the same external-binary pattern OCR and speech-to-text already use:
// poppler's pdftotext and pdfimages, run via os/exec, never a hand-rolled
// PDF object parser.
type PDFProcessor struct {
	TextChunkSize    int
	TextChunkOverlap int
	ExtractImages    bool
	MinImageWidth    int
	MinImageHeight   int
	MaxImagesPerPage int
	PDFToTextBinary  string
	PDFImagesBinary  string
	ImageOCRBinary   string
}

// NewPDFProcessor builds a PDFProcessor from the ingestion config section.
func NewPDFProcessor(textChunkSize, textChunkOverlap int, extractImages bool, minW, minH, maxPerPage int, pdfToTextBinary, pdfImagesBinary, ocrBinary string) *PDFProcessor {
	return &PDFProcessor{
		TextChunkSize:    textChunkSize,
		TextChunkOverlap: textChunkOverlap,
		ExtractImages:    extractImages,
		MinImageWidth:    minW,
		MinImageHeight:   minH,
		MaxImagesPerPage: maxPerPage,
		PDFToTextBinary:  pdfToTextBinary,
		PDFImagesBinary:  pdfImagesBinary,
		ImageOCRBinary:   ocrBinary,
	}
}

// Process extracts per-page text and, when enabled, embedded images from
// path. If image extraction fails for any reason, it falls back to
// text-only output with a warning recorded on every emitted chunk's
// metadata, per §4.1 — it never fails the whole file over an image step.
func (p *PDFProcessor) Process(ctx context.Context, path string) ([]*chunk.Chunk, error) {
	pages, err := p.extractPageText(ctx, path)
	if err != nil {
		return nil, err
	}

	textChunks := p.chunkPages(path, pages)
	if len(textChunks) == 0 {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "pdf produced no extractable text"}
	}

	if !p.ExtractImages {
		return textChunks, nil
	}

	imageChunks, err := p.extractImageChunks(ctx, path)
	if err != nil {
		warning := fmt.Sprintf("pdf image extraction failed, falling back to text-only: %v", err)
		for _, c := range textChunks {
			c.SetMeta(chunk.MetaWarning, warning)
		}
		return textChunks, nil
	}

	return append(textChunks, imageChunks...), nil
}

// extractPageText runs pdftotext over the whole document; poppler inserts a
// form-feed between pages by default, which is the page boundary this
// method splits on.
func (p *PDFProcessor) extractPageText(ctx context.Context, path string) ([]string, error) {
	if _, err := exec.LookPath(p.PDFToTextBinary); err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.DependencyMissing, Detail: fmt.Sprintf("pdf text binary %q not found on PATH", p.PDFToTextBinary), Cause: err}
	}

	cmd := exec.CommandContext(ctx, p.PDFToTextBinary, "-layout", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "pdftotext run failed: " + stderr.String(), Cause: err}
	}

	pages := strings.Split(stdout.String(), "\f")
	// pdftotext emits a trailing form-feed; drop the empty tail page.
	if len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages, nil
}

func (p *PDFProcessor) chunkPages(path string, pages []string) []*chunk.Chunk {
	var chunks []*chunk.Chunk
	order := 0
	for pageIdx, pageText := range pages {
		pieces := splitIntoChunks(pageText, p.TextChunkSize, p.TextChunkOverlap)
		for _, piece := range pieces {
			c := newChunk(chunk.Text, piece, path, chunk.SourcePDFText, 1.0, map[string]any{
				chunk.MetaPageNumber: pageIdx + 1,
				chunk.MetaOrder:      order,
			})
			chunks = append(chunks, c)
			order++
		}
	}
	return chunks
}

var pdfImageFilePattern = regexp.MustCompile(`-(\d+)-(\d+)\.(png|jpg|jpeg|pbm|ppm)$`)

// extractImageChunks extracts embedded raster images page by page, filters
// by minimum dimensions, caps per page, and produces an IMAGE chunk per
// kept image plus a companion TEXT chunk when OCR on that image yields at
// least 20 characters (§4.1).
func (p *PDFProcessor) extractImageChunks(ctx context.Context, path string) ([]*chunk.Chunk, error) {
	if _, err := exec.LookPath(p.PDFImagesBinary); err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.DependencyMissing, Detail: fmt.Sprintf("pdf image binary %q not found on PATH", p.PDFImagesBinary), Cause: err}
	}

	outDir, err := os.MkdirTemp("", "mindweave-pdfimg-*")
	if err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "create image scratch dir", Cause: err}
	}
	defer os.RemoveAll(outDir)

	prefix := filepath.Join(outDir, "img")
	cmd := exec.CommandContext(ctx, p.PDFImagesBinary, "-p", "-png", path, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "pdfimages run failed: " + stderr.String(), Cause: err}
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "read image scratch dir", Cause: err}
	}

	type extracted struct {
		page     int
		index    int
		fullPath string
	}
	var found []extracted
	for _, e := range entries {
		m := pdfImageFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		page, _ := strconv.Atoi(m[1])
		idx, _ := strconv.Atoi(m[2])
		found = append(found, extracted{page: page, index: idx, fullPath: filepath.Join(outDir, e.Name())})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].page != found[j].page {
			return found[i].page < found[j].page
		}
		return found[i].index < found[j].index
	})

	ocr := NewImageProcessor(p.ImageOCRBinary)
	perPageCount := map[int]int{}
	var chunks []*chunk.Chunk

	for _, img := range found {
		if perPageCount[img.page] >= p.MaxImagesPerPage {
			continue
		}
		width, height, _, err := decodeImageStats(img.fullPath)
		if err != nil {
			continue
		}
		if width < p.MinImageWidth || height < p.MinImageHeight {
			continue
		}
		perPageCount[img.page]++

		imageChunks, err := ocr.Process(ctx, img.fullPath)
		if err != nil || len(imageChunks) == 0 {
			continue
		}
		imgChunk := imageChunks[0]
		imgChunk.SourceFile = path
		imgChunk.SourceType = chunk.SourcePDFImage
		imgChunk.SetMeta(chunk.MetaPageNumber, img.page)
		imgChunk.SetMeta(chunk.MetaImageIndex, img.index)
		ocrText := extractOCRPortion(imgChunk.Content)
		imgChunk.SetMeta(chunk.MetaOCRText, ocrText)
		chunks = append(chunks, imgChunk)

		if len([]rune(ocrText)) >= 20 {
			textChunk := newChunk(chunk.Text, ocrText, path, chunk.SourcePDFImageOCR, imgChunk.Confidence, map[string]any{
				chunk.MetaPageNumber:    img.page,
				chunk.MetaImageIndex:    img.index,
				chunk.MetaParentChunkID: imgChunk.ID,
			})
			chunks = append(chunks, textChunk)
		}
	}

	return chunks, nil
}

// extractOCRPortion recovers the OCR text block the image processor
// prepended to its descriptor line, since the image chunk itself only
// separates them with a blank line.
func extractOCRPortion(content string) string {
	idx := strings.Index(content, "\n\nimage ")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(content[:idx])
}
