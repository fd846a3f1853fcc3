package retriever

import (
	"context"
	"testing"

	"github.com/obernety/mindweave/internal/analyzer"
	"github.com/obernety/mindweave/internal/chunk"
	"github.com/obernety/mindweave/internal/llm"
)

type fakeStore struct {
	byModality map[chunk.Modality][]StoreHit
	keyword    map[string]int
}

func (f *fakeStore) SearchModality(ctx context.Context, vector []float32, modality chunk.Modality, k int) ([]StoreHit, error) {
	hits := f.byModality[modality]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeStore) KeywordMatchCounts(ctx context.Context, ids []string, keywords []string) (map[string]int, error) {
	out := make(map[string]int)
	for _, id := range ids {
		out[id] = f.keyword[id]
	}
	return out, nil
}

func (f *fakeStore) SearchKeywordModality(ctx context.Context, query string, modality chunk.Modality, k int) ([]StoreHit, error) {
	return nil, nil
}

func TestRetrieveRanksByRelevance(t *testing.T) {
	store := &fakeStore{
		byModality: map[chunk.Modality][]StoreHit{
			chunk.Text: {
				{Chunk: &chunk.Chunk{ID: "low", Modality: chunk.Text, SourceFile: "a.txt", Content: "irrelevant"}, CosineSim: 0.1},
				{Chunk: &chunk.Chunk{ID: "high", Modality: chunk.Text, SourceFile: "a.txt", Content: "the operating voltage is 220V"}, CosineSim: 0.9},
			},
			chunk.Audio: {},
		},
	}
	r := New(store)
	q := analyzer.Analyze("what is the operating voltage", llm.PersonaStandard)
	q.RequiredModalities = []chunk.Modality{chunk.Text, chunk.Audio}

	results, _, err := r.Retrieve(context.Background(), q, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) == 0 || results[0].Chunk.ID != "high" {
		t.Fatalf("expected 'high' ranked first, got %+v", results)
	}
}

func TestKeywordBoostIncreasesRelevance(t *testing.T) {
	c := &chunk.Chunk{ID: "c1", Modality: chunk.Text, SourceFile: "a.txt", Content: "voltage voltage voltage"}
	store := &fakeStore{
		byModality: map[chunk.Modality][]StoreHit{
			chunk.Text:  {{Chunk: c, CosineSim: 0.5}},
			chunk.Audio: {},
		},
		keyword: map[string]int{"c1": 3},
	}
	r := New(store)
	q := analyzer.AnalyzedQuery{Query: "voltage", Keywords: []string{"voltage"}, RequiredModalities: []chunk.Modality{chunk.Text, chunk.Audio}}

	results, _, err := r.Retrieve(context.Background(), q, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	baseline := 0.75 // RelevanceFromCosine(0.5)
	if results[0].Relevance <= baseline {
		t.Fatalf("expected keyword boost to raise relevance above %f, got %f", baseline, results[0].Relevance)
	}
}

func TestImageBelowInclusionFloorNotForceIncluded(t *testing.T) {
	textHits := make([]StoreHit, 0)
	for i := 0; i < 5; i++ {
		textHits = append(textHits, StoreHit{
			Chunk:     &chunk.Chunk{ID: "t" + string(rune('0'+i)), Modality: chunk.Text, SourceFile: "a.txt", Content: "text"},
			CosineSim: 0.8,
		})
	}
	imageHit := StoreHit{Chunk: &chunk.Chunk{ID: "img1", Modality: chunk.Image, SourceFile: "b.png", Content: "diagram"}, CosineSim: -0.5}

	store := &fakeStore{
		byModality: map[chunk.Modality][]StoreHit{
			chunk.Text:  textHits,
			chunk.Audio: {},
			chunk.Image: {imageHit},
		},
	}
	r := New(store)
	q := analyzer.AnalyzedQuery{Query: "diagram", RequiredModalities: []chunk.Modality{chunk.Text, chunk.Audio, chunk.Image}}

	results, _, err := r.Retrieve(context.Background(), q, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	found := false
	for _, res := range results {
		if res.Chunk.Modality == chunk.Image {
			found = true
		}
	}
	if found {
		t.Fatalf("image below inclusion floor should not have been force-included")
	}
}

func TestEnsureImageInclusionGatesOnRequestOrTopCandidate(t *testing.T) {
	strongText := Result{Chunk: &chunk.Chunk{ID: "t1", Modality: chunk.Text, SourceFile: "a.txt"}, Relevance: 0.9}
	candidates := []StoreHit{
		{Chunk: strongText.Chunk, CosineSim: 0.8},
		{Chunk: &chunk.Chunk{ID: "img1", Modality: chunk.Image, SourceFile: "b.png"}, CosineSim: 0.2}, // relevance 0.6, clears the floor
	}
	results := []Result{strongText}

	out := ensureImageInclusion(results, candidates, 1, false)
	if len(out) != 1 || out[0].Chunk.ID != "t1" {
		t.Fatalf("image should not displace a stronger text result when the analyzer didn't request IMAGE and text is the top candidate, got %+v", out)
	}

	out = ensureImageInclusion(results, candidates, 1, true)
	if len(out) != 1 || out[0].Chunk.ID != "img1" {
		t.Fatalf("expected image to be force-included when the analyzer requested IMAGE, got %+v", out)
	}
}
