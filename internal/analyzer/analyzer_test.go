package analyzer

import (
	"testing"

	"github.com/obernety/mindweave/internal/chunk"
	"github.com/obernety/mindweave/internal/llm"
)

func hasModality(modalities []chunk.Modality, m chunk.Modality) bool {
	for _, mm := range modalities {
		if mm == m {
			return true
		}
	}
	return false
}

func TestAnalyzeAlwaysIncludesTextAndAudio(t *testing.T) {
	q := Analyze("what is the operating voltage?", llm.PersonaStandard)
	if !hasModality(q.RequiredModalities, chunk.Text) || !hasModality(q.RequiredModalities, chunk.Audio) {
		t.Fatalf("expected TEXT and AUDIO always required, got %v", q.RequiredModalities)
	}
	if hasModality(q.RequiredModalities, chunk.Image) {
		t.Fatalf("did not expect IMAGE for a non-visual query, got %v", q.RequiredModalities)
	}
}

func TestAnalyzeAddsImageForVisualQuery(t *testing.T) {
	q := Analyze("show me the authentication flow diagram", llm.PersonaStandard)
	if !hasModality(q.RequiredModalities, chunk.Image) {
		t.Fatalf("expected IMAGE for a visual query, got %v", q.RequiredModalities)
	}
}

func TestAnalyzeKeywordsDropsStopwordsAndShortTokens(t *testing.T) {
	q := Analyze("what is the operating voltage of it", llm.PersonaStandard)
	for _, kw := range q.Keywords {
		if stopwords[kw] || len(kw) < 3 {
			t.Fatalf("keyword %q should have been filtered", kw)
		}
	}
	found := false
	for _, kw := range q.Keywords {
		if kw == "voltage" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 'voltage' among keywords, got %v", q.Keywords)
	}
}

func TestAnalyzeDefaultsToGeneralIntent(t *testing.T) {
	q := Analyze("xyz", llm.PersonaStandard)
	if len(q.Intents) != 1 || q.Intents[0] != IntentGeneral {
		t.Fatalf("expected [general], got %v", q.Intents)
	}
}
