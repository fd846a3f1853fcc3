package reasoning

import (
	"fmt"
	"log"
	"os"
)

// DecisionLogger wraps a stdlib logger with named methods for the pipeline
// decisions an operator cares about, so a live tail of process stderr shows
// what the engine decided without requiring a returned QueryResponse.
type DecisionLogger struct {
	*log.Logger
}

// NewDecisionLogger returns a DecisionLogger writing to stderr with a
// standard timestamp prefix.
func NewDecisionLogger() *DecisionLogger {
	return &DecisionLogger{Logger: log.New(os.Stderr, "mindweave: ", log.LstdFlags)}
}

func (d *DecisionLogger) LogRetrievalDecision(query string, modalities []string, topK int, reason string) {
	d.Printf("retrieval query=%q modalities=%v top_k=%d reason=%s", query, modalities, topK, reason)
}

func (d *DecisionLogger) LogConfidenceAssessment(score float64, sources int, reason string) {
	d.Printf("confidence score=%.2f sources=%d reason=%s", score, sources, reason)
}

func (d *DecisionLogger) LogConflictDetection(conflictingSources []string, details string) {
	d.Printf("conflict sources=%v details=%s", conflictingSources, details)
}

func (d *DecisionLogger) LogRefusal(query, reason, missing string) {
	d.Printf("refusal query=%q reason=%s missing=%s", query, reason, missing)
}

func (d *DecisionLogger) LogTranslation(direction, lang string, ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	d.Printf("translation direction=%s lang=%s status=%s", direction, lang, status)
}

// LogStep logs a finished Step at a level proportional to its status.
func (d *DecisionLogger) LogStep(s Step) {
	msg := fmt.Sprintf("step #%d type=%s status=%s duration_ms=%d %s", s.StepNumber, s.Type, s.Status, s.DurationMs, s.Description)
	switch s.Status {
	case StatusError:
		d.Printf("ERROR %s", msg)
	case StatusWarning:
		d.Printf("WARN %s", msg)
	default:
		d.Printf("INFO %s", msg)
	}
}
