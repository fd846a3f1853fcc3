package ingest

import (
	"context"
	"testing"

	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/chunk"
)

func TestTranscriptionConfidenceRange(t *testing.T) {
	c := transcriptionConfidence(-0.1, 0.05)
	if c < 0.1 || c > 1 {
		t.Fatalf("expected confidence in [0.1,1], got %f", c)
	}
	expected := (-0.1 + 1.0) * (1.0 - 0.05)
	if c < expected-0.01 || c > expected+0.01 {
		t.Fatalf("expected ~%f, got %f", expected, c)
	}
}

func TestTranscriptionConfidenceHighNoSpeechFloorsAtPointOne(t *testing.T) {
	c := transcriptionConfidence(-0.05, 0.99)
	if c != 0.1 {
		t.Fatalf("expected confidence floor of 0.1 for near-certain silence, got %f", c)
	}
}

func TestStemOf(t *testing.T) {
	if stemOf("/tmp/recording.wav") != "recording" {
		t.Fatalf("expected 'recording'")
	}
}

func TestProcessMissingBinaryYieldsFailedStatusChunk(t *testing.T) {
	p := NewAudioProcessor("definitely-not-a-real-stt-binary")
	chunks, err := p.Process(context.Background(), "/tmp/does-not-matter.wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one failed-status chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Content != "" {
		t.Fatalf("expected empty content on failure")
	}
	if c.Metadata[chunk.MetaStatus] != "failed" {
		t.Fatalf("expected status=failed, got %v", c.Metadata[chunk.MetaStatus])
	}
	if c.HasEmbedding() {
		t.Fatalf("expected a failed chunk to carry no embedding")
	}
}

func TestTranscribeMissingBinaryIsDependencyMissing(t *testing.T) {
	p := NewAudioProcessor("definitely-not-a-real-stt-binary")
	_, err := p.transcribe(context.Background(), "/tmp/does-not-matter.wav")
	pe, ok := err.(*apperr.ProcessingError)
	if !ok {
		t.Fatalf("expected *apperr.ProcessingError, got %v", err)
	}
	if pe.Kind != apperr.DependencyMissing {
		t.Fatalf("expected DependencyMissing, got %s", pe.Kind)
	}
}
