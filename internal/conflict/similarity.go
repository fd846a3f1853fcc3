package conflict

import (
	"context"

	"github.com/obernety/mindweave/internal/embedding"
)

// ManagerEmbedder adapts an *embedding.Manager into an Embedder by
// embedding each claim on demand and comparing via raw cosine similarity
// (range [-1,1], per §4.8's "embedding cosine similarity ... must exceed
// 0.6" topic gate — not the [0,1]-mapped relevance score). This is the
// production Embedder; detector_test.go uses a cheaper word-overlap stub
// instead so the conflict tests don't depend on a configured provider.
type ManagerEmbedder struct {
	Manager *embedding.Manager
	Ctx     context.Context
}

func (e ManagerEmbedder) Similarity(a, b string) float64 {
	ctx := e.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	va, err := e.Manager.EmbedQuery(ctx, a)
	if err != nil {
		return 0
	}
	vb, err := e.Manager.EmbedQuery(ctx, b)
	if err != nil {
		return 0
	}
	return embedding.CosineSimilarity(va, vb)
}
