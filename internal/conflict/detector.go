// Package conflict implements cross-source conflict detection (§4.8):
// finding claim-level disagreements between retrieved chunks so the
// response strategist can present them instead of silently picking a side.
package conflict

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/obernety/mindweave/internal/chunk"
)

// Severity classifies how serious a detected conflict is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Perspective is one side of a conflicting claim pair.
type Perspective struct {
	ChunkID    string
	SourceFile string
	Claim      string
	Confidence float64
}

// Conflict is a single detected disagreement between two claims drawn from
// different source files.
type Conflict struct {
	A           Perspective
	B           Perspective
	Severity    Severity
	Description string
	Similarity  float64
}

// Embedder computes a cosine similarity in [-1,1] between two claim
// strings. The detector takes this as an injected dependency rather than
// importing the embedding manager directly, so conflict detection never
// needs to know about providers, caches, or batching — only "how similar
// are these two sentences".
type Embedder interface {
	Similarity(a, b string) float64
}

var sentenceSplit = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?%?`)

var negationWords = map[string]bool{
	"not": true, "no": true, "never": true, "cannot": true, "can't": true,
	"isn't": true, "aren't": true, "wasn't": true, "weren't": true,
	"doesn't": true, "don't": true, "didn't": true, "without": true,
	"none": true, "neither": true,
}

// ExtractClaims splits a chunk's content into candidate claim sentences.
// A claim is any sentence long enough to carry a proposition; very short
// fragments (headers, captions) are not considered claims.
func ExtractClaims(c *chunk.Chunk) []string {
	parts := sentenceSplit.Split(c.Content, -1)
	var claims []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len([]rune(p)) < 15 {
			continue
		}
		claims = append(claims, p)
	}
	return claims
}

// Detect compares every pair of claims drawn from distinct source files
// across chunks, reporting a Conflict for every pair whose topic
// similarity exceeds 0.6 and which additionally disagrees via a numeric
// mismatch or a negation-polarity mismatch. The result is symmetric-free
// and deduplicated: each unordered (chunkA, chunkB) claim pair appears at
// most once.
func Detect(chunks []*chunk.Chunk, embedder Embedder) []Conflict {
	type claimRef struct {
		chunkID    string
		sourceFile string
		text       string
		confidence float64
	}

	var claims []claimRef
	for _, c := range chunks {
		for _, claim := range ExtractClaims(c) {
			claims = append(claims, claimRef{
				chunkID:    c.ID,
				sourceFile: c.SourceFile,
				text:       claim,
				confidence: c.Confidence,
			})
		}
	}

	seen := make(map[[2]string]bool)
	var out []Conflict

	for i := 0; i < len(claims); i++ {
		for j := i + 1; j < len(claims); j++ {
			a, b := claims[i], claims[j]
			if a.sourceFile == b.sourceFile {
				continue
			}
			key := pairKey(a.chunkID, b.chunkID)
			if seen[key] {
				continue
			}

			sim := embedder.Similarity(a.text, b.text)
			if sim <= 0.6 {
				continue
			}

			numericMismatch, numDesc := numbersDisagree(a.text, b.text)
			negationMismatch := negationDisagrees(a.text, b.text)
			if !numericMismatch && !negationMismatch {
				continue
			}

			seen[key] = true

			severity := SeverityLow
			desc := "textual contradiction on a shared topic"
			switch {
			case numericMismatch && a.confidence >= 0.7 && b.confidence >= 0.7:
				severity = SeverityHigh
				desc = "numeric mismatch: " + numDesc
			case negationMismatch:
				severity = SeverityMedium
				desc = "one source affirms, the other negates the same claim"
			case numericMismatch:
				severity = SeverityLow
				desc = "numeric mismatch: " + numDesc
			}

			out = append(out, Conflict{
				A:           Perspective{ChunkID: a.chunkID, SourceFile: a.sourceFile, Claim: a.text, Confidence: a.confidence},
				B:           Perspective{ChunkID: b.chunkID, SourceFile: b.sourceFile, Claim: b.text, Confidence: b.confidence},
				Severity:    severity,
				Description: desc,
				Similarity:  sim,
			})
		}
	}
	return out
}

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// numbersDisagree reports whether a and b each contain a number and some
// pair of their numeric values (one from each) differs by more than 1%
// relative to the value from a, treating that as a factual mismatch
// (e.g. "grew 12%" vs "grew 3%").
func numbersDisagree(a, b string) (bool, string) {
	numsA := numberPattern.FindAllString(a, -1)
	numsB := numberPattern.FindAllString(b, -1)
	if len(numsA) == 0 || len(numsB) == 0 {
		return false, ""
	}
	for _, sa := range numsA {
		va, ok := parseNumber(sa)
		if !ok {
			continue
		}
		for _, sb := range numsB {
			vb, ok := parseNumber(sb)
			if !ok || va == 0 {
				continue
			}
			if diffRatio(va, vb) > 0.01 {
				return true, sa + " vs " + sb
			}
		}
	}
	return false, ""
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func diffRatio(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	base := a
	if base < 0 {
		base = -base
	}
	if base == 0 {
		base = 1
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d / base
}

// negationDisagrees reports whether exactly one of a, b carries a negation
// word, a crude but effective signal for "X happened" vs "X did not happen".
func negationDisagrees(a, b string) bool {
	return hasNegation(a) != hasNegation(b)
}

func hasNegation(s string) bool {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,;:!?\"'")
		if negationWords[word] {
			return true
		}
	}
	return false
}
