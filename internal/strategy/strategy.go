// Package strategy implements the response strategist: the explicit
// decision of what kind of response to produce, decoupled from generation.
package strategy

import "github.com/obernety/mindweave/internal/conflict"

// Strategy is the strategist's output.
type Strategy string

const (
	Answer               Strategy = "answer"
	Caveated             Strategy = "caveated"
	ConflictPresentation Strategy = "conflict_presentation"
	Refuse               Strategy = "refuse"
)

// ConfidenceLevel mirrors the confidence scorer's three-level output
// without importing that package, so strategy depends on conflict but
// not on confidence.
type ConfidenceLevel string

const (
	High   ConfidenceLevel = "High"
	Medium ConfidenceLevel = "Medium"
	Low    ConfidenceLevel = "Low"
)

// Decision is the strategist's full output: the chosen Strategy plus the
// reasoning needed to explain it.
type Decision struct {
	Strategy Strategy
	Reason   string
}

// Choose implements §4.9's decision table. debateRequested forces
// CONFLICT_PRESENTATION regardless of confidence, matching persona=debate
// or an explicit QueryRequest.debate flag. REFUSE's clause is "Low AND no
// conflict pair is high severity" — so a Low-confidence query with only
// low/medium-severity conflicts (or none at all) still refuses; a
// high-severity conflict overrides the refusal into CONFLICT_PRESENTATION
// the same as it would at any other confidence level.
func Choose(level ConfidenceLevel, conflicts []conflict.Conflict, debateRequested bool) Decision {
	if debateRequested {
		return Decision{Strategy: ConflictPresentation, Reason: "debate persona requested"}
	}
	if level == Low && !hasHighSeverityConflict(conflicts) {
		return Decision{Strategy: Refuse, Reason: "evidence confidence is low"}
	}
	if len(conflicts) > 0 {
		return Decision{Strategy: ConflictPresentation, Reason: "conflicting evidence across sources"}
	}
	if level == Medium {
		return Decision{Strategy: Caveated, Reason: "evidence confidence is medium"}
	}
	return Decision{Strategy: Answer, Reason: "evidence confidence is high with no conflicts"}
}

func hasHighSeverityConflict(conflicts []conflict.Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == conflict.SeverityHigh {
			return true
		}
	}
	return false
}
