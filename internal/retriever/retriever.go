// Package retriever implements the cross-modal retriever (§4.6): a
// per-modality semantic fetch, hybrid keyword boosting, cross-modal
// reinforcement, and a deterministic rerank with guaranteed image
// inclusion.
package retriever

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/obernety/mindweave/internal/analyzer"
	"github.com/obernety/mindweave/internal/chunk"
	"github.com/obernety/mindweave/internal/embedding"
)

const (
	candidateMultiplier  = 2
	escalatedMultiplier  = 3
	imageInclusionFloor  = 0.35
	secondPassFloor      = 0.3
	keywordBoostPerMatch = 0.1
	keywordBoostCap      = 0.5
	crossModalMultiplier = 1.1
)

// Reason names why a candidate's relevance was adjusted or why it was
// included.
type Reason string

const (
	ReasonSemantic     Reason = "semantic"
	ReasonKeywordBoost Reason = "keyword_boost"
	ReasonCrossModal   Reason = "cross_modal_boost"
	ReasonPersonaHint  Reason = "persona_hint"
)

// Result is one ranked retrieval output.
type Result struct {
	Chunk     *chunk.Chunk
	Relevance float64
	Reasons   []Reason
}

// Store is the subset of the vector store's contract the retriever needs.
// Defined here, rather than imported from the store package, so retriever
// depends only on the shapes it actually uses.
type Store interface {
	// SearchModality returns up to k chunks of the given modality ranked by
	// cosine similarity to vector, each paired with that similarity.
	SearchModality(ctx context.Context, vector []float32, modality chunk.Modality, k int) ([]StoreHit, error)
	// KeywordMatchCounts returns, for each chunk id in ids, the number of
	// whole-word case-insensitive keyword hits in that chunk's content.
	KeywordMatchCounts(ctx context.Context, ids []string, keywords []string) (map[string]int, error)
	// SearchKeywordModality runs a keyword-only search scoped to modality,
	// the fallback path when that modality's semantic candidate pool
	// (SearchModality) comes back empty.
	SearchKeywordModality(ctx context.Context, query string, modality chunk.Modality, k int) ([]StoreHit, error)
}

// StoreHit pairs a chunk with its raw cosine similarity to the query.
type StoreHit struct {
	Chunk     *chunk.Chunk
	CosineSim float64
}

// Warning records a non-fatal issue during retrieval, e.g. one modality's
// fetch failing while the others still contributed candidates.
type Warning struct {
	Modality chunk.Modality
	Err      error
}

// Retriever runs the retrieval algorithm against a Store.
type Retriever struct {
	store Store
}

// New builds a Retriever over store.
func New(store Store) *Retriever {
	return &Retriever{store: store}
}

// Retrieve runs §4.6's algorithm for a query already embedded into vector,
// returning up to topK ranked results plus any per-modality fetch
// warnings.
func (r *Retriever) Retrieve(ctx context.Context, q analyzer.AnalyzedQuery, vector []float32, topK int) ([]Result, []Warning, error) {
	if topK <= 0 {
		topK = 5
	}

	results, warnings, err := r.pass(ctx, q, vector, topK, candidateMultiplier)
	if err != nil {
		return nil, warnings, err
	}

	if averageRelevance(results, topK) < secondPassFloor {
		escalated, moreWarnings, err := r.pass(ctx, q, vector, topK, escalatedMultiplier)
		if err == nil {
			results = escalated
			warnings = append(warnings, moreWarnings...)
		}
	}

	return results, warnings, nil
}

// pass executes one full fetch→boost→rerank→guarantee cycle at the given
// candidate multiplier.
func (r *Retriever) pass(ctx context.Context, q analyzer.AnalyzedQuery, vector []float32, topK, multiplier int) ([]Result, []Warning, error) {
	n := topK * multiplier
	candidates, warnings := r.fetchCandidates(ctx, q.Query, q.RequiredModalities, vector, n)
	if len(candidates) == 0 {
		return nil, warnings, nil
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{
			Chunk:     c.Chunk,
			Relevance: embedding.RelevanceFromCosine(c.CosineSim),
			Reasons:   []Reason{ReasonSemantic},
		})
	}

	r.applyKeywordBoost(ctx, results, q.Keywords)
	applyCrossModalBoost(results)

	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}

	results = ensureImageInclusion(results, candidates, topK, requestsImage(q.RequiredModalities))
	return results, warnings, nil
}

// requestsImage reports whether the query analyzer classified this query as
// needing image evidence.
func requestsImage(modalities []chunk.Modality) bool {
	for _, m := range modalities {
		if m == chunk.Image {
			return true
		}
	}
	return false
}

// fetchCandidates runs one goroutine per required modality, fanning the
// per-modality hits into a single deduplicated-by-id slice. A modality
// whose semantic search comes back empty falls back to a keyword-only
// search over the same modality before being counted as empty, per §4.6's
// two-pass escalation. A failure fetching one modality is recorded as a
// Warning and does not abort the others.
func (r *Retriever) fetchCandidates(ctx context.Context, query string, modalities []chunk.Modality, vector []float32, n int) ([]StoreHit, []Warning) {
	type outcome struct {
		hits     []StoreHit
		modality chunk.Modality
		err      error
	}

	outcomes := make([]outcome, len(modalities))
	var wg sync.WaitGroup
	for i, m := range modalities {
		wg.Add(1)
		go func(i int, m chunk.Modality) {
			defer wg.Done()
			hits, err := r.store.SearchModality(ctx, vector, m, n)
			if err == nil && len(hits) == 0 && strings.TrimSpace(query) != "" {
				if kwHits, kwErr := r.store.SearchKeywordModality(ctx, query, m, n); kwErr == nil {
					hits = kwHits
				}
			}
			outcomes[i] = outcome{hits: hits, modality: m, err: err}
		}(i, m)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var merged []StoreHit
	var warnings []Warning
	for _, o := range outcomes {
		if o.err != nil {
			warnings = append(warnings, Warning{Modality: o.modality, Err: o.err})
			continue
		}
		for _, h := range o.hits {
			if seen[h.Chunk.ID] {
				continue
			}
			seen[h.Chunk.ID] = true
			merged = append(merged, h)
		}
	}
	return merged, warnings
}

func (r *Retriever) applyKeywordBoost(ctx context.Context, results []Result, keywords []string) {
	if len(keywords) == 0 {
		return
	}
	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.Chunk.ID
	}
	counts, err := r.store.KeywordMatchCounts(ctx, ids, keywords)
	if err != nil {
		return
	}
	for i := range results {
		matches := counts[results[i].Chunk.ID]
		if matches <= 0 {
			continue
		}
		boost := 1 + minFloat(keywordBoostCap, keywordBoostPerMatch*float64(matches))
		results[i].Relevance *= boost
		results[i].Reasons = append(results[i].Reasons, ReasonKeywordBoost)
	}
}

// applyCrossModalBoost multiplies relevance by 1.1 for any chunk whose
// source_file appears in ≥2 distinct modalities within the candidate pool.
func applyCrossModalBoost(results []Result) {
	modalitiesPerFile := make(map[string]map[chunk.Modality]bool)
	for _, res := range results {
		set, ok := modalitiesPerFile[res.Chunk.SourceFile]
		if !ok {
			set = make(map[chunk.Modality]bool)
			modalitiesPerFile[res.Chunk.SourceFile] = set
		}
		set[res.Chunk.Modality] = true
	}
	for i := range results {
		if len(modalitiesPerFile[results[i].Chunk.SourceFile]) >= 2 {
			results[i].Relevance *= crossModalMultiplier
			results[i].Reasons = append(results[i].Reasons, ReasonCrossModal)
		}
	}
}

// sortResults orders by descending relevance, then by the stable
// tie-break: higher intrinsic confidence first, then alphabetical id.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		if results[i].Chunk.Confidence != results[j].Chunk.Confidence {
			return results[i].Chunk.Confidence > results[j].Chunk.Confidence
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}

// ensureImageInclusion implements §4.6 step 7: when the analyzer requested
// IMAGE, or the single highest-relevance candidate in the pool is an image
// that didn't survive the rerank, and some image candidate clears the
// inclusion floor, the best such candidate is inserted at the last
// position, evicting the current last result. On a purely textual query
// where neither condition holds, a weak image never displaces a stronger
// text result.
func ensureImageInclusion(results []Result, candidates []StoreHit, topK int, imageRequested bool) []Result {
	for _, res := range results {
		if res.Chunk.Modality == chunk.Image {
			return results
		}
	}

	if !imageRequested && !topCandidateIsImage(candidates) {
		return results
	}

	var best *StoreHit
	var bestRelevance float64
	for i := range candidates {
		c := &candidates[i]
		if c.Chunk.Modality != chunk.Image {
			continue
		}
		rel := embedding.RelevanceFromCosine(c.CosineSim)
		if rel > imageInclusionFloor && rel > bestRelevance {
			bestRelevance = rel
			best = c
		}
	}
	if best == nil {
		return results
	}

	inserted := Result{Chunk: best.Chunk, Relevance: bestRelevance, Reasons: []Reason{ReasonSemantic}}
	if len(results) < topK {
		return append(results, inserted)
	}
	results[len(results)-1] = inserted
	return results
}

// topCandidateIsImage reports whether the single candidate with the
// highest raw cosine similarity in the pool is an image, regardless of
// where the rerank placed it.
func topCandidateIsImage(candidates []StoreHit) bool {
	bestSim := -2.0
	isImage := false
	for i := range candidates {
		c := &candidates[i]
		if c.CosineSim > bestSim {
			bestSim = c.CosineSim
			isImage = c.Chunk.Modality == chunk.Image
		}
	}
	return isImage
}

func averageRelevance(results []Result, topK int) float64 {
	if len(results) == 0 {
		return 0
	}
	n := len(results)
	if n > topK {
		n = topK
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += results[i].Relevance
	}
	return sum / float64(n)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// KeywordHighlighted reports whether content contains keyword as a
// whole word, case-insensitively — exposed for callers that need the
// same matching rule outside the store's index (e.g. tests).
func KeywordHighlighted(content, keyword string) bool {
	lower := strings.ToLower(content)
	kw := strings.ToLower(keyword)
	idx := 0
	for {
		pos := strings.Index(lower[idx:], kw)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(kw)
		if isWordBoundary(lower, start-1) && isWordBoundary(lower, end) {
			return true
		}
		idx = start + 1
	}
}

func isWordBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := s[i]
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}
