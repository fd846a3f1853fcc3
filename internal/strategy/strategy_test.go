package strategy

import (
	"testing"

	"github.com/obernety/mindweave/internal/conflict"
)

func TestChooseConflictPresentationWinsOverConfidence(t *testing.T) {
	conflicts := []conflict.Conflict{{Severity: conflict.SeverityLow}}
	d := Choose(High, conflicts, false)
	if d.Strategy != ConflictPresentation {
		t.Fatalf("expected conflict_presentation, got %s", d.Strategy)
	}
}

func TestChooseDebateRequestedForcesConflictPresentation(t *testing.T) {
	d := Choose(High, nil, true)
	if d.Strategy != ConflictPresentation {
		t.Fatalf("expected conflict_presentation, got %s", d.Strategy)
	}
}

func TestChooseRefuseOnLowConfidenceNoConflicts(t *testing.T) {
	d := Choose(Low, nil, false)
	if d.Strategy != Refuse {
		t.Fatalf("expected refuse, got %s", d.Strategy)
	}
}

func TestChooseCaveatedOnMediumConfidence(t *testing.T) {
	d := Choose(Medium, nil, false)
	if d.Strategy != Caveated {
		t.Fatalf("expected caveated, got %s", d.Strategy)
	}
}

func TestChooseAnswerOnHighConfidenceNoConflicts(t *testing.T) {
	d := Choose(High, nil, false)
	if d.Strategy != Answer {
		t.Fatalf("expected answer, got %s", d.Strategy)
	}
}

func TestChooseRefusesOnLowConfidenceWithOnlyLowSeverityConflict(t *testing.T) {
	conflicts := []conflict.Conflict{{Severity: conflict.SeverityLow}, {Severity: conflict.SeverityMedium}}
	d := Choose(Low, conflicts, false)
	if d.Strategy != Refuse {
		t.Fatalf("expected refuse when no conflict is high severity, got %s", d.Strategy)
	}
}

func TestChooseConflictPresentationOverridesLowConfidenceOnHighSeverityConflict(t *testing.T) {
	conflicts := []conflict.Conflict{{Severity: conflict.SeverityHigh}}
	d := Choose(Low, conflicts, false)
	if d.Strategy != ConflictPresentation {
		t.Fatalf("expected conflict_presentation when a high severity conflict exists, got %s", d.Strategy)
	}
}
