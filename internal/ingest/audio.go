package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/obernety/mindweave/internal/apperr"
	"github.com/obernety/mindweave/internal/chunk"
)

// AudioProcessor transcribes an audio file via an external speech-to-text
// binary and emits one chunk per transcript segment (§4.1). Like OCR, no
// speech-to-text model ships as a Go library in this stack's dependency
// ecosystem, so the binary is invoked via os/exec with the file path as an
// argument and the transcript read back from a JSON sidecar file, the
// verbose_json shape the reference whisper CLI writes.
type AudioProcessor struct {
	Binary string
}

// NewAudioProcessor builds an AudioProcessor bound to the configured
// speech-to-text binary name or path.
func NewAudioProcessor(binary string) *AudioProcessor {
	return &AudioProcessor{Binary: binary}
}

type whisperSegment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

type whisperTranscript struct {
	Segments []whisperSegment `json:"segments"`
}

// Process runs speech-to-text over path and returns one AUDIO chunk per
// segment. If transcription fails outright, it returns a single AUDIO chunk
// with empty content and metadata.status=failed, per §4.1 — the caller must
// not embed or insert a chunk in that state.
func (p *AudioProcessor) Process(ctx context.Context, path string) ([]*chunk.Chunk, error) {
	transcript, err := p.transcribe(ctx, path)
	if err != nil {
		failed := newChunk(chunk.Audio, "", path, chunk.SourceUploadedAudio, 0, map[string]any{
			chunk.MetaStatus:  "failed",
			chunk.MetaWarning: err.Error(),
		})
		return []*chunk.Chunk{failed}, nil
	}

	if len(transcript.Segments) == 0 {
		failed := newChunk(chunk.Audio, "", path, chunk.SourceUploadedAudio, 0, map[string]any{
			chunk.MetaStatus:  "failed",
			chunk.MetaWarning: "transcription produced no segments",
		})
		return []*chunk.Chunk{failed}, nil
	}

	chunks := make([]*chunk.Chunk, 0, len(transcript.Segments))
	for i, seg := range transcript.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		confidence := transcriptionConfidence(seg.AvgLogprob, seg.NoSpeechProb)
		c := newChunk(chunk.Audio, text, path, chunk.SourceUploadedAudio, confidence, map[string]any{
			chunk.MetaSegmentStart:     seg.Start,
			chunk.MetaSegmentEnd:       seg.End,
			chunk.MetaOrder:            i,
			chunk.MetaTranscConfidence: confidence,
		})
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		failed := newChunk(chunk.Audio, "", path, chunk.SourceUploadedAudio, 0, map[string]any{
			chunk.MetaStatus:  "failed",
			chunk.MetaWarning: "every segment was empty",
		})
		return []*chunk.Chunk{failed}, nil
	}
	return chunks, nil
}

// transcriptionConfidence maps a segment's average log-probability and
// no-speech probability to a confidence bounded to [0.1, 1.0], per §4.1.
func transcriptionConfidence(avgLogprob, noSpeechProb float64) float64 {
	raw := (avgLogprob + 1.0) * (1.0 - noSpeechProb)
	return math.Max(0.1, math.Min(1.0, raw))
}

func (p *AudioProcessor) transcribe(ctx context.Context, path string) (*whisperTranscript, error) {
	if _, err := exec.LookPath(p.Binary); err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.DependencyMissing, Detail: fmt.Sprintf("speech-to-text binary %q not found on PATH", p.Binary), Cause: err}
	}

	outDir, err := os.MkdirTemp("", "mindweave-stt-*")
	if err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "create transcription scratch dir", Cause: err}
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, p.Binary, path, "--output_format", "json", "--output_dir", outDir)
	if err := cmd.Run(); err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "speech-to-text run failed", Cause: err}
	}

	sidecar := filepath.Join(outDir, stemOf(path)+".json")
	raw, err := os.ReadFile(sidecar)
	if err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "read transcription sidecar", Cause: err}
	}

	var transcript whisperTranscript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return nil, &apperr.ProcessingError{Kind: apperr.Corrupt, Detail: "decode transcription sidecar", Cause: err}
	}
	return &transcript, nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
