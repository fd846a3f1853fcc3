// Package reasoning implements the reasoning chain recorder: the
// first-class, auditable record of every stage a query pipeline ran.
package reasoning

import (
	"time"

	"github.com/google/uuid"
	"github.com/obernety/mindweave/internal/chunk"
)

// StepType identifies which pipeline stage produced a step.
type StepType string

const (
	StepQueryAnalysis      StepType = "query_analysis"
	StepRetrieval          StepType = "retrieval"
	StepConfidenceAssess   StepType = "confidence_assessment"
	StepConflictDetection  StepType = "conflict_detection"
	StepResponseStrategy   StepType = "response_strategy"
	StepGeneration         StepType = "generation"
)

// Status is the outcome of a single step.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusWarning   Status = "warning"
	StatusError     Status = "error"
)

// Decision is the final disposition of a query.
type Decision string

const (
	DecisionAnswered          Decision = "answered"
	DecisionCaveated          Decision = "caveated"
	DecisionConflictPresented Decision = "conflict_presented"
	DecisionRefused           Decision = "refused"
)

// Step is one entry in a Chain. StepNumber is assigned by the Chain and is
// strictly increasing within it.
type Step struct {
	StepNumber  int
	Type        StepType
	Title       string
	Description string
	Details     map[string]any
	SourcesUsed []chunk.SourceReference
	DurationMs  int64
	Status      Status
}

// Chain is the ordered, timed record of a single query's pipeline run. It
// is built incrementally via Start/Finish and is returned to the caller
// even when the query ultimately fails.
type Chain struct {
	ChainID         string
	Query           string
	Timestamp       time.Time
	Steps           []Step
	FinalDecision   Decision
	KeyInsights     []string

	next int
}

// NewChain starts a reasoning chain for query.
func NewChain(query string) *Chain {
	return &Chain{
		ChainID:   uuid.NewString(),
		Query:     query,
		Timestamp: time.Now(),
		next:      1,
	}
}

// pending is an in-flight step, returned by Start and closed by Finish.
type pending struct {
	chain     *Chain
	step      Step
	startedAt time.Time
}

// Start opens a new step. The caller must call Finish exactly once.
func (c *Chain) Start(stepType StepType, title string) *pending {
	return &pending{
		chain: c,
		step: Step{
			StepNumber: c.next,
			Type:       stepType,
			Title:      title,
			Details:    make(map[string]any),
		},
		startedAt: time.Now(),
	}
}

// Detail records a key/value pair that will be attached to the step on Finish.
func (p *pending) Detail(key string, val any) *pending {
	p.step.Details[key] = val
	return p
}

// Sources records the SourceReferences this step used.
func (p *pending) Sources(refs []chunk.SourceReference) *pending {
	p.step.SourcesUsed = refs
	return p
}

// Finish closes the step with the given status and description, and
// appends it to the chain.
func (p *pending) Finish(status Status, description string) Step {
	p.step.Status = status
	p.step.Description = description
	p.step.DurationMs = time.Since(p.startedAt).Milliseconds()
	p.chain.next++
	p.chain.Steps = append(p.chain.Steps, p.step)
	return p.step
}

// TotalDurationMs sums every step's duration. Steps run sequentially within
// a query, so this is also the chain's wall-clock span on the happy path.
func (c *Chain) TotalDurationMs() int64 {
	var total int64
	for _, s := range c.Steps {
		total += s.DurationMs
	}
	return total
}

// StepTypes returns the set of step types that actually ran, in order of
// first occurrence. Used by property tests asserting the chain only
// contains steps for stages that ran.
func (c *Chain) StepTypes() []StepType {
	seen := make(map[StepType]bool)
	var out []StepType
	for _, s := range c.Steps {
		if !seen[s.Type] {
			seen[s.Type] = true
			out = append(out, s.Type)
		}
	}
	return out
}

// AddInsight appends a human-readable bullet to KeyInsights.
func (c *Chain) AddInsight(insight string) {
	c.KeyInsights = append(c.KeyInsights, insight)
}
