// Package analyzer implements the query analyzer (§4.5): classifying
// intent and required modalities and extracting keywords from a query
// string before retrieval runs.
package analyzer

import (
	"strings"

	"github.com/obernety/mindweave/internal/chunk"
	"github.com/obernety/mindweave/internal/llm"
)

// Intent is one of the recognized query intents.
type Intent string

const (
	IntentExplanation Intent = "explanation"
	IntentProcedural  Intent = "procedural"
	IntentComparison  Intent = "comparison"
	IntentCausal      Intent = "causal"
	IntentVisual      Intent = "visual"
	IntentGeneral     Intent = "general"
)

// AnalyzedQuery is the analyzer's full output.
type AnalyzedQuery struct {
	Query              string
	Intents            []Intent
	RequiredModalities []chunk.Modality
	Keywords           []string
	Persona            llm.Persona
}

var visualWords = []string{"visual", "visuals", "diagram", "diagrams", "chart", "charts", "figure", "figures", "image", "images", "picture", "pictures", "photo", "photos", "screenshot"}
var audioWords = []string{"speech", "recording", "audio", "said", "heard", "spoken", "transcript"}

var procWords = []string{"how to", "steps", "step-by-step", "procedure", "install", "configure", "set up", "setup"}
var compareWords = []string{"versus", "vs", "compare", "comparison", "difference between", "better than"}
var causalWords = []string{"why", "cause", "because", "reason", "led to", "results in"}
var explainWords = []string{"what is", "what are", "explain", "describe", "define", "meaning of"}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"with": true, "by": true, "from": true, "about": true, "as": true, "into": true,
	"this": true, "that": true, "these": true, "those": true, "it": true, "its": true,
	"do": true, "does": true, "did": true, "can": true, "could": true, "will": true,
	"would": true, "should": true, "what": true, "how": true, "why": true, "when": true,
	"where": true, "who": true, "which": true, "you": true, "your": true, "me": true,
}

// Analyze classifies query and extracts the signals the retriever and LLM
// prompt builder need. persona is the caller-requested response style,
// already validated against llm.ValidPersona by the caller.
func Analyze(query string, persona llm.Persona) AnalyzedQuery {
	lower := strings.ToLower(query)

	intents := classifyIntents(lower)
	modalities := []chunk.Modality{chunk.Text, chunk.Audio}
	if containsAny(lower, visualWords) || containsIntent(intents, IntentVisual) {
		modalities = append(modalities, chunk.Image)
	}

	return AnalyzedQuery{
		Query:              query,
		Intents:            intents,
		RequiredModalities: modalities,
		Keywords:           extractKeywords(lower),
		Persona:            persona,
	}
}

func classifyIntents(lower string) []Intent {
	var intents []Intent
	add := func(i Intent) {
		for _, existing := range intents {
			if existing == i {
				return
			}
		}
		intents = append(intents, i)
	}

	if containsAny(lower, visualWords) {
		add(IntentVisual)
	}
	if containsAny(lower, procWords) {
		add(IntentProcedural)
	}
	if containsAny(lower, compareWords) {
		add(IntentComparison)
	}
	if containsAny(lower, causalWords) {
		add(IntentCausal)
	}
	if containsAny(lower, explainWords) {
		add(IntentExplanation)
	}
	if len(intents) == 0 {
		add(IntentGeneral)
	}
	return intents
}

func containsIntent(intents []Intent, target Intent) bool {
	for _, i := range intents {
		if i == target {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func extractKeywords(lower string) []string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	var keywords []string
	seen := make(map[string]bool)
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		keywords = append(keywords, f)
	}
	return keywords
}
