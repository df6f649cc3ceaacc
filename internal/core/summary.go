package core

import (
	"context"
	"strings"

	"carecompanion/internal/llm"
	"carecompanion/pkg"
)

// Summarizer produces the doctor-facing visit summary from a session
// transcript. On backend failure it returns a fixed fallback text alongside
// the error so callers can decide whether to persist it.
type Summarizer struct {
	llm llm.Client
}

// NewSummarizer constructs a summariser.
func NewSummarizer(client llm.Client) *Summarizer {
	return &Summarizer{llm: client}
}

// Summarize analyses the transcript and produces the summary text. The
// transcript should contain all turns of the session in order.
func (s *Summarizer) Summarize(ctx context.Context, turns []pkg.Turn) (string, error) {
	text, err := s.llm.Complete(ctx, SummaryInstruction, FlattenTranscript(turns))
	if err != nil {
		return FallbackSummary, err
	}
	if strings.TrimSpace(text) == "" {
		return FallbackSummary, nil
	}
	return strings.TrimSpace(text), nil
}
