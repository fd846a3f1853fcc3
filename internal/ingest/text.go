package ingest

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/chunk"
)

// TextProcessor handles plain text and docx documents (§4.1). It is the
// simplest of the four modality processors: no external binary, no
// sub-chunk fan-out.
type TextProcessor struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewTextProcessor builds a TextProcessor from the ingestion config section.
func NewTextProcessor(chunkSize, chunkOverlap int) *TextProcessor {
	return &TextProcessor{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Process reads path (.txt or .docx) and returns an ordered chunk sequence
// with metadata.order set to each chunk's position in the document.
func (p *TextProcessor) Process(path string) ([]*chunk.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var text string
	var sourceType chunk.SourceType
	var err error

	switch ext {
	case ".txt":
		text, err = readPlainText(path)
		sourceType = chunk.SourceUploadedText
	case ".docx":
		text, err = readDocxText(path)
		sourceType = chunk.SourceDOCXText
	default:
		return nil, &apperr.ProcessingError{Kind: apperr.UnsupportedFormat, Detail: fmt.Sprintf("unsupported text extension %q", ext)}
	}
	if err != nil {
		return nil, err
	}

	pieces := splitIntoChunks(text, p.ChunkSize, p.ChunkOverlap)
	if len(pieces) == 0 {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "no extractable text"}
	}

	chunks := make([]*chunk.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		c := newChunk(chunk.Text, piece, path, sourceType, 1.0, map[string]any{
			chunk.MetaOrder: i,
		})
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func readPlainText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "read text file", Cause: err}
	}
	return string(raw), nil
}

// readDocxText extracts only the body run text from word/document.xml,
// ignoring styling, headers/footers, and embedded objects — a named
// simplification, not a bug (§4.1).
func readDocxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "open docx as zip", Cause: err}
	}
	defer zr.Close()

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "docx missing word/document.xml"}
	}

	rc, err := body.Open()
	if err != nil {
		return "", &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "open docx body part", Cause: err}
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "read docx body part", Cause: err}
	}
	return extractDocxRuns(raw)
}

// docx text runs live at w:p/w:r/w:t in the WordprocessingML namespace.
// Decoding generically by local name (ignoring namespace prefix) avoids
// depending on the exact prefix a given docx writer chose.
func extractDocxRuns(xmlBytes []byte) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(xmlBytes)))
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "parse docx xml", Cause: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
			if t.Name.Local == "p" {
				b.WriteString("\n")
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
