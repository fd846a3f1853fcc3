package llm

import (
	"fmt"

	"github.com/obernety/mindweave/internal/chunk"
	"github.com/obernety/mindweave/internal/helpers"
)

// StrategyHint narrows the strategist's Strategy type down to the values
// that reach generation (Refuse never does), without llm importing
// internal/strategy (strategy already sits above llm in the dependency
// order: it imports conflict, which imports embedding, which imports llm).
type StrategyHint string

const (
	HintAnswer               StrategyHint = "answer"
	HintCaveated             StrategyHint = "caveated"
	HintConflictPresentation StrategyHint = "conflict_presentation"
)

var personaSystemTemplate = map[Persona]string{
	PersonaStandard:  "You are a helpful assistant that answers strictly from the evidence provided. Be balanced and concise.",
	PersonaAcademic:  "You are an academic assistant. Answer strictly from the evidence provided, using a formal register and citing sources heavily.",
	PersonaExecutive: "You are briefing an executive. Answer strictly from the evidence provided using short bullet points and key takeaways.",
	PersonaELI5:      "You are explaining to a curious beginner. Answer strictly from the evidence provided, using simple language and analogies.",
	PersonaTechnical: "You are a technical assistant. Answer strictly from the evidence provided with precise language; formulas or code are welcome where relevant.",
	PersonaDebate:    "You are presenting a debate. List each distinct perspective found in the evidence with its source attribution. Do not declare a winner.",
	PersonaLegal:     "You are a careful legal assistant. Answer strictly from the evidence provided, hedging any claim the evidence does not fully support.",
	PersonaMedical:   "You are a careful medical information assistant. Answer strictly from the evidence provided, hedging any claim the evidence does not fully support.",
	PersonaCreative:  "You are an expressive assistant. Answer strictly from the evidence provided while varying your language.",
}

// SystemPrompt returns the fixed per-persona system prompt, per §4.10's
// "the system prompt is the persona template".
func SystemPrompt(persona Persona) string {
	if tpl, ok := personaSystemTemplate[persona]; ok {
		return tpl
	}
	return personaSystemTemplate[PersonaStandard]
}

// BuildUserPrompt renders the deterministic user prompt for a given
// (strategy, query, evidence) triple: the query followed by a numbered
// evidence list, with an explicit instruction to cite by [n] and never
// answer beyond the evidence. hint adjusts the closing instruction for the
// CONFLICT_PRESENTATION and CAVEATED strategies without changing the
// evidence formatting itself.
func BuildUserPrompt(query string, refs []chunk.SourceReference, hint StrategyHint) string {
	evidence := helpers.FormatEvidenceList(refs)

	instruction := "Cite every claim using its [n] reference. Do not state anything the evidence does not support."
	switch hint {
	case HintConflictPresentation:
		instruction = "The evidence contains conflicting claims. Present each perspective with its [n] source attribution. Do not pick a winner or resolve the conflict yourself."
	case HintCaveated:
		instruction = "Cite every claim using its [n] reference. The evidence is limited; caveat your answer accordingly and do not state anything the evidence does not support."
	}

	return fmt.Sprintf("Question: %s\n\nEvidence:\n%s\n\n%s", query, evidence, instruction)
}
