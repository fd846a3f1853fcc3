// Package helpers renders the numbered evidence list the LLM client embeds
// in its user prompt (§4.10) and the source citations a QueryResponse
// returns to its caller, both keyed off chunk.SourceReference.
package helpers

import (
	"fmt"
	"strings"

	"github.com/obernety/mindweave/internal/chunk"
)

// citationConfig controls formatting behaviour.
type citationConfig struct {
	maxContent int
}

// CitationOption configures citation formatting.
type CitationOption func(*citationConfig)

// WithMaxContentLength overrides the per-chunk content cap (default 1200,
// per §4.10's "truncated per-chunk to a cap (≈1200 chars)").
func WithMaxContentLength(n int) CitationOption {
	return func(cfg *citationConfig) {
		if n > 0 {
			cfg.maxContent = n
		}
	}
}

// FormatEvidenceLine renders one numbered evidence entry in the exact shape
// §4.10 specifies: "[n] source=... modality=... content=…".
func FormatEvidenceLine(n int, ref chunk.SourceReference, opts ...CitationOption) string {
	cfg := citationConfig{maxContent: 1200}
	for _, opt := range opts {
		opt(&cfg)
	}

	content := strings.Join(strings.Fields(ref.ContentSnippet), " ")
	if cfg.maxContent > 0 && len(content) > cfg.maxContent {
		content = content[:cfg.maxContent] + "…"
	}

	return fmt.Sprintf("[%d] source=%s modality=%s content=%s", n, ref.SourceFile, ref.Modality, content)
}

// FormatEvidenceList renders every reference in order as the numbered
// evidence block that gets embedded verbatim in the LLM user prompt.
func FormatEvidenceList(refs []chunk.SourceReference, opts ...CitationOption) string {
	if len(refs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(refs))
	for i, ref := range refs {
		lines = append(lines, FormatEvidenceLine(i+1, ref, opts...))
	}
	return strings.Join(lines, "\n")
}

// FormatCitation renders a single citation line for display in a
// QueryResponse, attributing source file, modality, and relevance/intrinsic
// confidence rather than the evidence-prompt's full content.
func FormatCitation(n int, ref chunk.SourceReference) string {
	return fmt.Sprintf("[%d] %s (%s, relevance=%.2f, confidence=%.2f)", n, ref.SourceFile, ref.Modality, ref.RelevanceScore, ref.Confidence)
}

// FormatCitations renders a collection of SourceReferences as one citation
// line each, numbered from 1 in input order — the same numbering the
// evidence list used when the prompt was built, so a caller can cross-
// reference a model's inline "[n]" back to the citation it names.
func FormatCitations(refs []chunk.SourceReference) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for i, ref := range refs {
		out = append(out, FormatCitation(i+1, ref))
	}
	return out
}
