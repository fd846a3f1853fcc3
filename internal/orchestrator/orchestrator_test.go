package orchestrator

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/config"
	"github.com/obernety/mindweave/internal/embedding"
	"github.com/obernety/mindweave/internal/ingest"
	"github.com/obernety/mindweave/internal/language"
	"github.com/obernety/mindweave/internal/llm"
	"github.com/obernety/mindweave/internal/reasoning"
	"github.com/obernety/mindweave/internal/retriever"
	"github.com/obernety/mindweave/internal/store"
	"github.com/obernety/mindweave/internal/strategy"
)

const testVectorDim = 16

// fakeProvider is a deterministic bag-of-words Provider: Embed hashes each
// token into one of testVectorDim buckets, so chunks sharing vocabulary
// with a query score higher under cosine similarity without any network
// call. Generate returns a canned answer referencing the first citation.
type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return "According to the evidence, the device requires 220V [1].", nil
}

func (fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashEmbed(text)
	}
	return out, nil
}

func hashEmbed(text string) []float32 {
	vec := make([]float32, testVectorDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(testVectorDim)]++
	}
	return vec
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "vectors.db"), filepath.Join(dir, "keyword.bleve"), testVectorDim)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	chain := llm.NewChain(5*time.Second, fakeProvider{})
	embedder := embedding.New(chain, testVectorDim, 8, nil)

	cfg := &config.Config{
		Ingestion: config.IngestionConfig{TextChunkSize: 500, TextChunkOverlap: 50},
		Store:     config.StoreConfig{SoftQueueLimit: 4},
		Language:  config.LanguageConfig{DetectionFloor: 0.5},
		Retrieval: config.RetrievalConfig{DefaultTopK: 5, MaxTopK: 20, MaxRetrievalIterations: 2},
	}

	return &Orchestrator{
		cfg:             cfg,
		store:           st,
		embedder:        embedder,
		retriever:       retriever.New(st),
		language:        language.New(nil, false),
		llmChain:        chain,
		logger:          reasoning.NewDecisionLogger(),
		metrics:         NewMetrics(prometheus.NewRegistry()),
		textProc:        ingest.NewTextProcessor(500, 50),
		ingestSemaphore: make(chan struct{}, cfg.Store.SoftQueueLimit),
		processing:      make(map[string]*queryStatus),
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	o := newTestOrchestrator(t)
	path := writeTempFile(t, "notes.xyz", "irrelevant")

	_, err := o.Ingest(context.Background(), path)
	if err == nil {
		t.Fatalf("expected an error for an unsupported extension")
	}
	var procErr *apperr.ProcessingError
	if !errors.As(err, &procErr) || procErr.Kind != apperr.UnsupportedFormat {
		t.Fatalf("expected apperr.ProcessingError{Kind: UnsupportedFormat}, got %v", err)
	}
}

func TestIngestBusyWhenQueueFull(t *testing.T) {
	o := newTestOrchestrator(t)
	for i := 0; i < cap(o.ingestSemaphore); i++ {
		o.ingestSemaphore <- struct{}{}
	}

	path := writeTempFile(t, "doc.txt", "hello world")
	_, err := o.Ingest(context.Background(), path)
	var busyErr *apperr.Busy
	if !errors.As(err, &busyErr) {
		t.Fatalf("expected apperr.Busy when the ingest queue is full, got %v", err)
	}
}

func TestIngestTextFileStoresChunksAndReportsCounts(t *testing.T) {
	o := newTestOrchestrator(t)
	path := writeTempFile(t, "manual.txt", "The device requires 220V of supply voltage to operate safely.")

	result, err := o.Ingest(context.Background(), path)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.ChunksByModality["text"] == 0 {
		t.Fatalf("expected at least one text chunk ingested, got %v", result.ChunksByModality)
	}
	if got := o.store.Count(context.Background()); got == 0 {
		t.Fatalf("expected chunks committed to the store, got %d", got)
	}
}

func TestQueryOnEmptyCorpusRefuses(t *testing.T) {
	o := newTestOrchestrator(t)

	resp, err := o.Query(context.Background(), QueryRequest{Query: "what voltage does it need?"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.Strategy != strategy.Refuse {
		t.Fatalf("expected Refuse strategy on an empty corpus, got %s", resp.Strategy)
	}
	if resp.Chain.FinalDecision != reasoning.DecisionRefused {
		t.Fatalf("expected chain final decision refused, got %s", resp.Chain.FinalDecision)
	}
	if resp.StrategyReason != "no evidence retrieved" {
		t.Fatalf("expected refusal reason to name the missing evidence, got %q", resp.StrategyReason)
	}
	if len(resp.Citations) != 0 {
		t.Fatalf("expected no citations on an empty corpus, got %v", resp.Citations)
	}
}

func TestQueryRefusesShortQueryWithoutEmbedding(t *testing.T) {
	o := newTestOrchestrator(t)

	for _, q := range []string{"", "a", "ab"} {
		resp, err := o.Query(context.Background(), QueryRequest{Query: q})
		if err != nil {
			t.Fatalf("Query(%q) error = %v", q, err)
		}
		if resp.Strategy != strategy.Refuse {
			t.Fatalf("Query(%q): expected Refuse strategy for a too-short query, got %s", q, resp.Strategy)
		}
		if resp.Chain.FinalDecision != reasoning.DecisionRefused {
			t.Fatalf("Query(%q): expected chain final decision refused, got %s", q, resp.Chain.FinalDecision)
		}
		if len(resp.Chain.Steps) != 0 {
			t.Fatalf("Query(%q): expected no pipeline steps to have run, got %d", q, len(resp.Chain.Steps))
		}
	}
}

func TestQueryAfterIngestReturnsAnAnsweredOrCaveatedStrategy(t *testing.T) {
	o := newTestOrchestrator(t)
	path := writeTempFile(t, "manual.txt", "The device requires 220V of supply voltage to operate safely. "+
		"Always disconnect power before opening the case. "+strings.Repeat("Additional context filler text. ", 10))

	if _, err := o.Ingest(context.Background(), path); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	resp, err := o.Query(context.Background(), QueryRequest{Query: "what voltage device supply"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.Strategy != strategy.Answer && resp.Strategy != strategy.Caveated {
		t.Fatalf("expected Answer or Caveated strategy, got %s", resp.Strategy)
	}
	if resp.Answer == "" {
		t.Fatalf("expected a non-empty answer")
	}
	if len(resp.Chain.Steps) == 0 {
		t.Fatalf("expected the reasoning chain to record at least one step")
	}
	retrievalStep := resp.Chain.Steps[1]
	if retrievalStep.Type != reasoning.StepRetrieval {
		t.Fatalf("expected the second step to be retrieval, got %s", retrievalStep.Type)
	}
	if len(retrievalStep.SourcesUsed) == 0 {
		t.Fatalf("expected the ingested chunk to surface as a retrieval source")
	}
}

func TestCancelQueryUnknownIDErrors(t *testing.T) {
	o := newTestOrchestrator(t)
	if err := o.CancelQuery("does-not-exist"); err == nil {
		t.Fatalf("expected an error cancelling an unknown query id")
	}
}

func TestStatsReflectsIngestedModalities(t *testing.T) {
	o := newTestOrchestrator(t)
	path := writeTempFile(t, "manual.txt", "Some sample evidence text for the corpus.")
	if _, err := o.Ingest(context.Background(), path); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	stats := o.Stats(context.Background())
	if stats.TotalChunks == 0 {
		t.Fatalf("expected non-zero total chunks after ingest")
	}
	if stats.ChunksByModality["text"] == 0 {
		t.Fatalf("expected text modality to be represented in stats, got %v", stats.ChunksByModality)
	}
}

func TestLanguagesSupportedIncludesEnglish(t *testing.T) {
	o := newTestOrchestrator(t)
	found := false
	for _, l := range o.LanguagesSupported() {
		if l.Code == "en" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected English in the supported-language catalog")
	}
}
