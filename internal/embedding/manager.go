// Package embedding implements the embedding manager: the single place
// that turns chunk content or a query string into a vector in the shared
// embedding space, regardless of modality.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/chunk"
	"github.com/obernety/mindweave/internal/llm"
)

// Cache is the optional query-embedding cache (§4.2). A nil Cache, or one
// that always misses, is always correct — caching is an optimization, not
// a dependency.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

// Manager is the embedding manager. It is process-wide, safe for
// concurrent use, and holds no per-request state.
type Manager struct {
	chain      *llm.Chain
	dim        int
	batchSize  int
	cache      Cache
	projection *Projection
}

// New builds a Manager. dim is the shared space's fixed dimension
// (VECTOR_DIM); batchSize bounds how many texts are embedded per provider
// call. cache may be nil.
func New(chain *llm.Chain, dim, batchSize int, cache Cache) *Manager {
	return &Manager{
		chain:      chain,
		dim:        dim,
		batchSize:  batchSize,
		cache:      cache,
		projection: NewSeedProjection(dim),
	}
}

// Dim returns the shared space's fixed dimension.
func (m *Manager) Dim() int { return m.dim }

// EmbedQuery returns a vector for a query string. Queries are always text,
// regardless of which modalities the query analyzer ultimately requests.
func (m *Manager) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if m.cache != nil {
		if vec, ok := m.cache.Get(ctx, text); ok {
			return vec, nil
		}
	}

	vecs, err := m.chain.Embed(ctx, []string{text})
	if err != nil {
		return nil, &apperr.EmbeddingError{BatchSize: 1, Cause: err}
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, &apperr.EmbeddingError{BatchSize: 1, Cause: fmt.Errorf("empty embedding returned")}
	}
	vec := normalizeDim(vecs[0], m.dim)

	if m.cache != nil {
		m.cache.Set(ctx, text, vec)
	}
	return vec, nil
}

// EmbedChunks sets Embedding on every chunk with non-empty textual content,
// per the modality policy in §4.2. It never partially mutates the input:
// on any batch failure it returns an error and leaves every chunk
// untouched.
func (m *Manager) EmbedChunks(ctx context.Context, chunks []*chunk.Chunk) error {
	var textLike []*chunk.Chunk
	var imageOnly []*chunk.Chunk

	for _, c := range chunks {
		switch c.Modality {
		case chunk.Text, chunk.Audio:
			if c.Content != "" {
				textLike = append(textLike, c)
			}
		case chunk.Image:
			if len([]rune(c.Meta(chunk.MetaOCRText))) >= 20 {
				textLike = append(textLike, c)
			} else {
				imageOnly = append(imageOnly, c)
			}
		}
	}

	pending := make(map[*chunk.Chunk][]float32)

	for start := 0; start < len(textLike); start += m.batchSize {
		end := min(start+m.batchSize, len(textLike))
		batch := textLike[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vecs, err := m.chain.Embed(ctx, texts)
		if err != nil {
			return &apperr.EmbeddingError{BatchSize: len(batch), Cause: err}
		}
		if len(vecs) != len(batch) {
			return &apperr.EmbeddingError{BatchSize: len(batch), Cause: fmt.Errorf("provider returned %d vectors for %d inputs", len(vecs), len(batch))}
		}
		for i, c := range batch {
			pending[c] = normalizeDim(vecs[i], m.dim)
		}
	}

	for _, c := range imageOnly {
		native, err := m.projection.NativeVisualVector(c)
		if err != nil {
			return &apperr.EmbeddingError{BatchSize: 1, Cause: err}
		}
		pending[c] = m.projection.Project(native)
	}

	for c, vec := range pending {
		c.Embedding = vec
	}
	return nil
}

// normalizeDim truncates or zero-pads vec to exactly dim entries, guarding
// the invariant that every stored chunk's embedding has the declared
// dimension regardless of the underlying provider's native size.
func normalizeDim(vec []float32, dim int) []float32 {
	if len(vec) == dim {
		return vec
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}

// CosineSimilarity maps two equal-length vectors to a similarity in
// [-1, 1]. Callers needing the [0,1]-mapped relevance score use
// RelevanceFromCosine.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RelevanceFromCosine maps a cosine similarity in [-1,1] to a relevance
// score in [0,1], per §4.6 step 3.
func RelevanceFromCosine(cosine float64) float64 {
	return (cosine + 1) / 2
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
