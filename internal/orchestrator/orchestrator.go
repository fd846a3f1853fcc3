// Package orchestrator wires every pipeline component into the linear
// query state machine (Received → LanguageDetected → QueryTranslated? →
// Analyzed → Retrieved → Scored → ConflictChecked → StrategyChosen →
// Generated → AnswerTranslated? → Responded) and the companion ingest
// path, and exposes both as the module's single public entry point.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/obernety/mindweave/internal/analyzer"
	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/chunk"
	"github.com/obernety/mindweave/internal/confidence"
	"github.com/obernety/mindweave/internal/config"
	"github.com/obernety/mindweave/internal/conflict"
	"github.com/obernety/mindweave/internal/embedding"
	"github.com/obernety/mindweave/internal/helpers"
	"github.com/obernety/mindweave/internal/ingest"
	"github.com/obernety/mindweave/internal/language"
	"github.com/obernety/mindweave/internal/llm"
	"github.com/obernety/mindweave/internal/reasoning"
	"github.com/obernety/mindweave/internal/retriever"
	"github.com/obernety/mindweave/internal/store"
	"github.com/obernety/mindweave/internal/strategy"
)

// minQueryLength is the §8 boundary: a query of this many characters or
// fewer is refused outright, before the embedder or retriever ever run.
const minQueryLength = 2

// QueryRequest is the orchestrator's query-side public input.
type QueryRequest struct {
	Query           string
	Persona         llm.Persona
	TopK            int
	DebateRequested bool
}

// QueryResponse is the orchestrator's query-side public output.
type QueryResponse struct {
	Answer           string
	Strategy         strategy.Strategy
	StrategyReason   string
	Confidence       confidence.Breakdown
	Conflicts        []conflict.Conflict
	Citations        []string
	Chain            *reasoning.Chain
	DetectedLanguage string
	Warnings         []string
}

// IngestResult is the orchestrator's ingest-side public output.
type IngestResult struct {
	SourceFile       string
	ChunksByModality map[chunk.Modality]int
	Warnings         []string
}

// Stats is the corpus-wide summary returned by Stats().
type Stats struct {
	TotalChunks      int
	ChunksByModality map[chunk.Modality]int
}

// queryStatus tracks one in-flight query for CancelQuery.
type queryStatus struct {
	startedAt time.Time
	stage     string
	cancel    context.CancelFunc
}

// Orchestrator bundles every pipeline component and drives both the ingest
// and query state machines against them.
type Orchestrator struct {
	cfg *config.Config

	store     *store.Store
	embedder  *embedding.Manager
	retriever *retriever.Retriever
	language  *language.Service
	llmChain  *llm.Chain
	logger    *reasoning.DecisionLogger
	metrics   *Metrics

	textProc  *ingest.TextProcessor
	pdfProc   *ingest.PDFProcessor
	imageProc *ingest.ImageProcessor
	audioProc *ingest.AudioProcessor

	ingestSemaphore chan struct{}

	mu         sync.RWMutex
	processing map[string]*queryStatus
}

// New builds an Orchestrator from cfg, opening the durable store and
// wiring every sub-component to it. reg may be nil to register metrics
// against the default Prometheus registry.
func New(cfg *config.Config, reg prometheus.Registerer) (*Orchestrator, error) {
	st, err := store.Open(
		filepath.Join(cfg.Store.DataDir, cfg.Store.BoltFile),
		filepath.Join(cfg.Store.DataDir, cfg.Store.KeywordIndexDir),
		cfg.Embedding.VectorDim,
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	providers, err := buildProviders(cfg.LLM)
	if err != nil {
		st.Close()
		return nil, err
	}
	chain := llm.NewChain(time.Duration(cfg.LLM.DeadlineMs)*time.Millisecond, providers...)

	var cache embedding.Cache
	if cfg.Embedding.CacheEnabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Embedding.CacheRedisAddr})
		cache = embedding.NewRedisCache(client, cfg.Embedding.CacheTTL)
	}
	embedder := embedding.New(chain, cfg.Embedding.VectorDim, cfg.Embedding.BatchSize, cache)

	var translator language.Translator
	if cfg.Language.TranslationEnabled {
		translator = language.NewRESTTranslator(cfg.Language.TranslationURL, 30*time.Second)
	}
	langSvc := language.New(translator, cfg.Language.TranslationEnabled)

	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		embedder:  embedder,
		retriever: retriever.New(st),
		language:  langSvc,
		llmChain:  chain,
		logger:    reasoning.NewDecisionLogger(),
		metrics:   NewMetrics(reg),

		textProc: ingest.NewTextProcessor(cfg.Ingestion.TextChunkSize, cfg.Ingestion.TextChunkOverlap),
		pdfProc: ingest.NewPDFProcessor(
			cfg.Ingestion.TextChunkSize, cfg.Ingestion.TextChunkOverlap,
			cfg.Ingestion.PDFExtractImages,
			cfg.Ingestion.PDFMinImageWidth, cfg.Ingestion.PDFMinImageHeight, cfg.Ingestion.PDFMaxImagesPerPage,
			cfg.Ingestion.PDFToTextBinary, cfg.Ingestion.PDFImagesBinary, cfg.Ingestion.OCRBinary,
		),
		imageProc: ingest.NewImageProcessor(cfg.Ingestion.OCRBinary),
		audioProc: ingest.NewAudioProcessor(cfg.Ingestion.SpeechToTextBinary),

		ingestSemaphore: make(chan struct{}, cfg.Store.SoftQueueLimit),
		processing:      make(map[string]*queryStatus),
	}, nil
}

func buildProviders(cfg config.LLMConfig) ([]llm.Provider, error) {
	providers := make([]llm.Provider, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		p := cfg.Providers[name]
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		switch p.Type {
		case "openai":
			providers = append(providers, llm.NewOpenAIProvider(name, p.APIKey, p.ChatModel, p.EmbeddingModel, p.BaseURL, timeout))
		case "ollama":
			providers = append(providers, llm.NewOllamaProvider(name, p.BaseURL, p.ChatModel, p.EmbeddingModel, timeout))
		default:
			return nil, fmt.Errorf("llm provider %q: unrecognized type %q", name, p.Type)
		}
	}
	return providers, nil
}

// Close releases the underlying store.
func (o *Orchestrator) Close() error {
	return o.store.Close()
}

// Ingest dispatches path to the modality processor matching its extension,
// embeds the resulting chunks, and commits them to the store. A failure
// processing the file is atomic: nothing is embedded or stored.
func (o *Orchestrator) Ingest(ctx context.Context, path string) (*IngestResult, error) {
	select {
	case o.ingestSemaphore <- struct{}{}:
		defer func() { <-o.ingestSemaphore }()
	default:
		return nil, &apperr.Busy{Queue: "ingestion"}
	}

	started := time.Now()
	defer func() { o.metrics.ingestionDuration.Observe(time.Since(started).Seconds()) }()

	chunks, err := o.processFile(ctx, path)
	if err != nil {
		return nil, err
	}

	var storable []*chunk.Chunk
	var warnings []string
	for _, c := range chunks {
		if c.Meta(chunk.MetaStatus) == "failed" {
			warnings = append(warnings, fmt.Sprintf("chunk from %s could not be processed: %s", path, c.Meta(chunk.MetaWarning)))
			continue
		}
		storable = append(storable, c)
	}

	if len(storable) > 0 {
		if err := o.embedder.EmbedChunks(ctx, storable); err != nil {
			return nil, err
		}
		if err := o.store.Add(ctx, storable); err != nil {
			return nil, err
		}
	}

	counts := make(map[chunk.Modality]int)
	for _, c := range storable {
		counts[c.Modality]++
		o.metrics.chunksIngested.WithLabelValues(string(c.Modality)).Inc()
	}

	return &IngestResult{SourceFile: path, ChunksByModality: counts, Warnings: warnings}, nil
}

func (o *Orchestrator) processFile(ctx context.Context, path string) ([]*chunk.Chunk, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".docx":
		return o.textProc.Process(path)
	case ".pdf":
		return o.pdfProc.Process(ctx, path)
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp":
		return o.imageProc.Process(ctx, path)
	case ".wav", ".mp3", ".m4a", ".flac", ".ogg":
		return o.audioProc.Process(ctx, path)
	default:
		return nil, &apperr.ProcessingError{Kind: apperr.UnsupportedFormat, Detail: "unrecognized extension " + ext}
	}
}

// Reset drops the entire corpus.
func (o *Orchestrator) Reset(ctx context.Context) error {
	return o.store.Reset(ctx)
}

// Stats summarizes the current corpus.
func (o *Orchestrator) Stats(ctx context.Context) Stats {
	return Stats{
		TotalChunks:      o.store.Count(ctx),
		ChunksByModality: o.store.CountByModality(ctx),
	}
}

// LanguagesSupported returns the enumerated supported-language catalog.
func (o *Orchestrator) LanguagesSupported() []language.SupportedLanguage {
	return language.Supported()
}

// CancelQuery cancels an in-flight query by id, if it is still running.
func (o *Orchestrator) CancelQuery(id string) error {
	o.mu.RLock()
	status, ok := o.processing[id]
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("query not found: %s", id)
	}
	status.cancel()
	return nil
}

func (o *Orchestrator) trackQuery(id string, cancel context.CancelFunc) {
	o.mu.Lock()
	o.processing[id] = &queryStatus{startedAt: time.Now(), stage: "received", cancel: cancel}
	o.mu.Unlock()
}

func (o *Orchestrator) setStage(id, stage string) {
	o.mu.Lock()
	if s, ok := o.processing[id]; ok {
		s.stage = stage
	}
	o.mu.Unlock()
}

func (o *Orchestrator) untrackQuery(id string) {
	o.mu.Lock()
	delete(o.processing, id)
	o.mu.Unlock()
}

// Query runs the full query pipeline: language detection, analysis,
// retrieval, confidence scoring, conflict detection, strategy selection,
// and generation, recording every stage on the returned reasoning.Chain.
func (o *Orchestrator) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.trackQuery(id, cancel)
	defer o.untrackQuery(id)

	started := time.Now()
	chainRec := reasoning.NewChain(req.Query)

	if !llm.ValidPersona(req.Persona) {
		req.Persona = llm.PersonaStandard
	}
	topK := req.TopK
	if topK <= 0 {
		topK = o.cfg.Retrieval.DefaultTopK
	}
	if topK > o.cfg.Retrieval.MaxTopK {
		topK = o.cfg.Retrieval.MaxTopK
	}

	if len([]rune(req.Query)) <= minQueryLength {
		return o.refuseTooShort(chainRec, req.Query, started), nil
	}

	o.setStage(id, "language_detected")
	lang, langConfidence := o.language.Detect(req.Query)
	if langConfidence < o.cfg.Language.DetectionFloor {
		lang = "en"
	}

	workingQuery := req.Query
	var warnings []string
	if lang != "en" {
		o.setStage(id, "query_translated")
		translated, err := o.language.Translate(req.Query, lang, "en")
		workingQuery = translated
		o.logger.LogTranslation("query->en", lang, err == nil)
		if err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	if err := ctx.Err(); err != nil {
		return o.cancelled(chainRec, "language_detected", err, started)
	}

	o.setStage(id, "analyzed")
	analysisStep := chainRec.Start(reasoning.StepQueryAnalysis, "Analyze query")
	aq := analyzer.Analyze(workingQuery, req.Persona)
	analysisStep.
		Detail("detected_language", lang).
		Detail("intents", aq.Intents).
		Detail("keywords", aq.Keywords).
		Detail("required_modalities", aq.RequiredModalities).
		Finish(reasoning.StatusCompleted, "classified intent and required modalities")
	o.logger.LogStep(chainRec.Steps[len(chainRec.Steps)-1])

	if err := ctx.Err(); err != nil {
		return o.cancelled(chainRec, "analyzed", err, started)
	}

	o.setStage(id, "retrieved")
	retrievalStep := chainRec.Start(reasoning.StepRetrieval, "Retrieve evidence")
	vector, err := o.embedder.EmbedQuery(ctx, workingQuery)
	if err != nil {
		retrievalStep.Finish(reasoning.StatusError, err.Error())
		o.logger.LogStep(chainRec.Steps[len(chainRec.Steps)-1])
		return o.failed(chainRec, started, err, "The query could not be completed: "+err.Error(), confidence.Breakdown{}, nil, nil, lang, warnings)
	}
	results, retrievalWarnings, err := o.retriever.Retrieve(ctx, aq, vector, topK)
	if err != nil {
		retrievalStep.Finish(reasoning.StatusError, err.Error())
		o.logger.LogStep(chainRec.Steps[len(chainRec.Steps)-1])
		return o.failed(chainRec, started, err, "The query could not be completed: "+err.Error(), confidence.Breakdown{}, nil, nil, lang, warnings)
	}
	status := reasoning.StatusCompleted
	if len(retrievalWarnings) > 0 {
		status = reasoning.StatusWarning
		for _, w := range retrievalWarnings {
			warnings = append(warnings, fmt.Sprintf("retrieval warning for modality %s: %v", w.Modality, w.Err))
		}
	}
	refs := sourceReferences(results)
	retrievalStep.
		Detail("candidate_count", len(results)).
		Sources(refs).
		Finish(status, fmt.Sprintf("retrieved %d candidates", len(results)))
	o.logger.LogStep(chainRec.Steps[len(chainRec.Steps)-1])
	o.logger.LogRetrievalDecision(req.Query, modalityNames(aq.RequiredModalities), topK, "modalities required by query analysis")

	if err := ctx.Err(); err != nil {
		return o.cancelled(chainRec, "retrieved", err, started)
	}

	o.setStage(id, "scored")
	confStep := chainRec.Start(reasoning.StepConfidenceAssess, "Score confidence")
	breakdown := confidence.Score(results, topK)
	confStep.
		Detail("score", breakdown.Score).
		Detail("level", breakdown.Level).
		Finish(reasoning.StatusCompleted, fmt.Sprintf("confidence %s (%.2f)", breakdown.Level, breakdown.Score))
	o.logger.LogStep(chainRec.Steps[len(chainRec.Steps)-1])
	o.logger.LogConfidenceAssessment(breakdown.Score, len(results), string(breakdown.Level))

	if err := ctx.Err(); err != nil {
		return o.cancelled(chainRec, "scored", err, started)
	}

	o.setStage(id, "conflict_checked")
	conflictStep := chainRec.Start(reasoning.StepConflictDetection, "Check for conflicting evidence")
	conflicts := conflict.Detect(chunksOf(results), conflict.ManagerEmbedder{Manager: o.embedder, Ctx: ctx})
	status = reasoning.StatusCompleted
	if len(conflicts) > 0 {
		status = reasoning.StatusWarning
	}
	conflictStep.
		Detail("conflict_count", len(conflicts)).
		Finish(status, fmt.Sprintf("found %d conflict(s)", len(conflicts)))
	o.logger.LogStep(chainRec.Steps[len(chainRec.Steps)-1])
	if len(conflicts) > 0 {
		o.logger.LogConflictDetection(conflictSources(conflicts), conflicts[0].Description)
	}

	if err := ctx.Err(); err != nil {
		return o.cancelled(chainRec, "conflict_checked", err, started)
	}

	o.setStage(id, "strategy_chosen")
	strategyStep := chainRec.Start(reasoning.StepResponseStrategy, "Choose response strategy")
	debate := req.DebateRequested || req.Persona == llm.PersonaDebate
	decision := strategy.Choose(strategy.ConfidenceLevel(breakdown.Level), conflicts, debate)
	strategyStep.
		Detail("strategy", decision.Strategy).
		Detail("reason", decision.Reason).
		Finish(reasoning.StatusCompleted, decision.Reason)
	o.logger.LogStep(chainRec.Steps[len(chainRec.Steps)-1])

	if decision.Strategy == strategy.Refuse {
		refusalReason := decision.Reason
		if len(results) == 0 {
			refusalReason = "no evidence retrieved"
		}
		o.logger.LogRefusal(req.Query, refusalReason, "sufficiently confident or corroborated evidence")
		chainRec.FinalDecision = reasoning.DecisionRefused
		resp := &QueryResponse{
			Answer:           "I don't have sufficiently confident evidence to answer this: " + refusalReason + ".",
			Strategy:         decision.Strategy,
			StrategyReason:   refusalReason,
			Confidence:       breakdown,
			Conflicts:        conflicts,
			Citations:        helpers.FormatCitations(refs),
			Chain:            chainRec,
			DetectedLanguage: lang,
			Warnings:         warnings,
		}
		o.recordQueryMetrics(decision.Strategy, false, started)
		return resp, nil
	}

	if err := ctx.Err(); err != nil {
		return o.cancelled(chainRec, "strategy_chosen", err, started)
	}

	o.setStage(id, "generated")
	genStep := chainRec.Start(reasoning.StepGeneration, "Generate response")
	hint := hintFor(decision.Strategy)
	prompt := llm.SystemPrompt(req.Persona) + "\n\n" + llm.BuildUserPrompt(workingQuery, refs, hint)
	params := llm.ParamsFor(req.Persona)
	answer, err := o.llmChain.Generate(ctx, prompt, params.MaxTokens, params.Temperature)
	if err != nil {
		genStep.Finish(reasoning.StatusError, err.Error())
		o.logger.LogStep(chainRec.Steps[len(chainRec.Steps)-1])
		reason := "the language model backend is unavailable (" + err.Error() + "); the evidence retrieved for this query is attached below"
		return o.failed(chainRec, started, err, "I retrieved evidence for this query but could not generate an answer: "+reason+".", breakdown, conflicts, refs, lang, warnings)
	}
	genStep.
		Detail("persona", req.Persona).
		Detail("strategy", decision.Strategy).
		Finish(reasoning.StatusCompleted, "generated response")
	o.logger.LogStep(chainRec.Steps[len(chainRec.Steps)-1])

	if lang != "en" {
		o.setStage(id, "answer_translated")
		translated, err := o.language.Translate(answer, "en", lang)
		answer = translated
		o.logger.LogTranslation("answer->"+lang, lang, err == nil)
		if err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	o.setStage(id, "responded")
	chainRec.FinalDecision = decisionFor(decision.Strategy)

	resp := &QueryResponse{
		Answer:           answer,
		Strategy:         decision.Strategy,
		StrategyReason:   decision.Reason,
		Confidence:       breakdown,
		Conflicts:        conflicts,
		Citations:        helpers.FormatCitations(refs),
		Chain:            chainRec,
		DetectedLanguage: lang,
		Warnings:         warnings,
	}
	o.recordQueryMetrics(decision.Strategy, false, started)
	return resp, nil
}

// failed finalizes chainRec as refused due to a pipeline error and records
// error metrics. Whatever evidence had already been gathered before the
// failing stage — confidence breakdown, conflicts, citations — is still
// attached to the response, per §7's requirement that a GenerationError
// converts to a refusal without discarding retrieved evidence.
func (o *Orchestrator) failed(chainRec *reasoning.Chain, started time.Time, err error, answer string, breakdown confidence.Breakdown, conflicts []conflict.Conflict, refs []chunk.SourceReference, lang string, warnings []string) (*QueryResponse, error) {
	chainRec.FinalDecision = reasoning.DecisionRefused
	o.recordQueryMetrics(strategy.Refuse, true, started)
	return &QueryResponse{
		Answer:           answer,
		Strategy:         strategy.Refuse,
		Confidence:       breakdown,
		Conflicts:        conflicts,
		Citations:        helpers.FormatCitations(refs),
		Chain:            chainRec,
		DetectedLanguage: lang,
		Warnings:         warnings,
	}, err
}

// refuseTooShort implements the §8 boundary behavior for a query of
// minQueryLength characters or fewer: refused before the embedder or
// retriever ever run, since there is nothing meaningful to analyze.
func (o *Orchestrator) refuseTooShort(chainRec *reasoning.Chain, query string, started time.Time) *QueryResponse {
	reason := "query too short"
	if strings.TrimSpace(query) == "" {
		reason = "query is empty"
	}
	chainRec.FinalDecision = reasoning.DecisionRefused
	o.recordQueryMetrics(strategy.Refuse, false, started)
	return &QueryResponse{
		Answer:         "I can't process this query: " + reason + ".",
		Strategy:       strategy.Refuse,
		StrategyReason: reason,
		Chain:          chainRec,
	}
}

// cancelled finalizes chainRec as refused due to cancellation at stage.
func (o *Orchestrator) cancelled(chainRec *reasoning.Chain, stage string, cause error, started time.Time) (*QueryResponse, error) {
	err := &apperr.CancellationError{Stage: stage, Cause: cause}
	chainRec.FinalDecision = reasoning.DecisionRefused
	o.recordQueryMetrics(strategy.Refuse, true, started)
	return &QueryResponse{
		Answer:   "The query was cancelled during " + stage + ".",
		Strategy: strategy.Refuse,
		Chain:    chainRec,
	}, err
}

func (o *Orchestrator) recordQueryMetrics(s strategy.Strategy, errored bool, started time.Time) {
	label := "false"
	if errored {
		label = "true"
	}
	o.metrics.queriesTotal.WithLabelValues(string(s), label).Inc()
	o.metrics.queryDuration.WithLabelValues(string(s)).Observe(time.Since(started).Seconds())
}

func decisionFor(s strategy.Strategy) reasoning.Decision {
	switch s {
	case strategy.Caveated:
		return reasoning.DecisionCaveated
	case strategy.ConflictPresentation:
		return reasoning.DecisionConflictPresented
	case strategy.Refuse:
		return reasoning.DecisionRefused
	default:
		return reasoning.DecisionAnswered
	}
}

func hintFor(s strategy.Strategy) llm.StrategyHint {
	switch s {
	case strategy.ConflictPresentation:
		return llm.HintConflictPresentation
	case strategy.Caveated:
		return llm.HintCaveated
	default:
		return llm.HintAnswer
	}
}

func sourceReferences(results []retriever.Result) []chunk.SourceReference {
	refs := make([]chunk.SourceReference, 0, len(results))
	for _, r := range results {
		refs = append(refs, chunk.SourceReference{
			ChunkID:        r.Chunk.ID,
			SourceFile:     r.Chunk.SourceFile,
			ContentSnippet: chunk.Snippet(r.Chunk.Content, 1200),
			RelevanceScore: r.Relevance,
			Confidence:     r.Chunk.Confidence,
			Modality:       r.Chunk.Modality,
		})
	}
	return refs
}

func chunksOf(results []retriever.Result) []*chunk.Chunk {
	out := make([]*chunk.Chunk, 0, len(results))
	for _, r := range results {
		out = append(out, r.Chunk)
	}
	return out
}

func modalityNames(modalities []chunk.Modality) []string {
	out := make([]string, len(modalities))
	for i, m := range modalities {
		out[i] = string(m)
	}
	return out
}

func conflictSources(conflicts []conflict.Conflict) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range conflicts {
		for _, f := range []string{c.A.SourceFile, c.B.SourceFile} {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}
