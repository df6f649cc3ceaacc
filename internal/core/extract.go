package core

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"carecompanion/internal/llm"
	"carecompanion/pkg"
)

// Extractor converts a flattened conversation transcript into a structured
// symptom record via the inference backend. It fails closed: any failure —
// backend unreachable, timeout, malformed output — yields the empty record.
// Callers never learn why extraction produced nothing, only that no
// structured data is available this turn.
type Extractor struct {
	llm llm.Client
	log *zap.Logger
}

// NewExtractor constructs an extractor.
func NewExtractor(client llm.Client, logger *zap.Logger) *Extractor {
	return &Extractor{llm: client, log: logger}
}

// Extract analyses the transcript and returns the structured record. The
// transcript is the entire conversation, recomputed every turn; a previous
// record is never reused.
func (e *Extractor) Extract(ctx context.Context, transcript string) pkg.StructuredRecord {
	if strings.TrimSpace(transcript) == "" {
		return pkg.StructuredRecord{}
	}
	raw, err := e.llm.Complete(ctx, ExtractionInstruction, transcript)
	if err != nil {
		e.log.Warn("structured extraction failed", zap.Error(err))
		return pkg.StructuredRecord{}
	}
	record, err := parseRecord(raw)
	if err != nil {
		e.log.Warn("structured extraction returned malformed output", zap.Error(err))
		return pkg.StructuredRecord{}
	}
	return record
}

// parseRecord decodes the backend's JSON object, tolerating prose around it
// by slicing from the first '{' to the last '}'. Null and empty values are
// dropped so absent fields stay absent.
func parseRecord(raw string) (pkg.StructuredRecord, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return pkg.StructuredRecord{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &m); err != nil {
		return nil, err
	}
	record := pkg.StructuredRecord{}
	for k, v := range m {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if l, ok := v.([]any); ok && len(l) == 0 {
			continue
		}
		record[k] = v
	}
	return record, nil
}

// FlattenTranscript renders turns as "speaker: text" lines, the exact shape
// the extraction and summary prompts expect.
func FlattenTranscript(turns []pkg.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Speaker))
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}
