package embedding

import (
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/obernety/mindweave/internal/chunk"
)

// Projection maps an image chunk's native visual feature vector into the
// shared text/image/audio embedding space. No vision-embedding model
// exists anywhere in this lineage's dependency graph, so images without
// enough OCR text to embed as text (see Manager.EmbedChunks) fall back to
// this deterministic projection instead: a fixed random matrix, seeded
// once at startup, applied to a native feature vector derived from the
// chunk's text content and dimension metadata. It is not a learned
// embedding and makes no claim of visual similarity beyond "same content
// and dimensions project to the same point" — it exists so image chunks
// without OCR text still occupy a stable point in the shared space rather
// than being silently dropped.
type Projection struct {
	dim     int
	nativeN int
	matrix  [][]float64
}

// NewSeedProjection builds a Projection targeting dim output dimensions
// from a 64-wide native feature vector, using a fixed seed so the mapping
// is stable across process restarts.
func NewSeedProjection(dim int) *Projection {
	const nativeN = 64
	rng := newSplitMix64(0x6d696e6477656176) // "mindweav" in hex-ish, fixed.
	matrix := make([][]float64, dim)
	for i := range matrix {
		row := make([]float64, nativeN)
		for j := range row {
			row[j] = rng.normal()
		}
		matrix[i] = row
	}
	return &Projection{dim: dim, nativeN: nativeN, matrix: matrix}
}

// Project applies the fixed random matrix to a native feature vector,
// producing a unit-normalized output in the shared space.
func (p *Projection) Project(native []float64) []float32 {
	out := make([]float32, p.dim)
	var norm float64
	for i, row := range p.matrix {
		var sum float64
		for j, v := range row {
			if j < len(native) {
				sum += v * native[j]
			}
		}
		out[i] = float32(sum)
		norm += sum * sum
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}

// NativeVisualVector derives a 64-wide native feature vector from an image
// chunk's content and dimension metadata: the SHA-256 digest of the
// content plus width/height/aspect-ratio. Content for image chunks is the
// text the ingest pipeline stored (any OCR text and the image descriptor
// line), not the image's pixel data, so two images with the same
// dimensions, format and OCR text map to the same vector.
func (p *Projection) NativeVisualVector(c *chunk.Chunk) ([]float64, error) {
	if c.Modality != chunk.Image {
		return nil, fmt.Errorf("native visual vector requested for non-image chunk %s", c.ID)
	}
	native := make([]float64, p.nativeN)

	sum := sha256.Sum256([]byte(c.Content))
	for i := 0; i < 32 && i < p.nativeN; i++ {
		native[i] = float64(sum[i])/127.5 - 1
	}

	width := float64(c.MetaInt(chunk.MetaWidth))
	height := float64(c.MetaInt(chunk.MetaHeight))
	if width > 0 && height > 0 && 32 < p.nativeN {
		native[32] = math.Log1p(width) / 10
	}
	if height > 0 && 33 < p.nativeN {
		native[33] = math.Log1p(height) / 10
	}
	if width > 0 && height > 0 && 34 < p.nativeN {
		native[34] = width / height / 4
	}
	return native, nil
}

// splitMix64 is a small deterministic PRNG, used only to fill the fixed
// projection matrix once at startup — not a security primitive.
type splitMix64 struct{ state uint64 }

func newSplitMix64(seed uint64) *splitMix64 { return &splitMix64{state: seed} }

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// normal returns an approximately standard-normal value via the
// Box-Muller transform over two uniform draws.
func (s *splitMix64) normal() float64 {
	u1 := float64(s.next()>>11) / (1 << 53)
	u2 := float64(s.next()>>11) / (1 << 53)
	if u1 <= 0 {
		u1 = 1e-12
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
