package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carecompanion/internal/llm"
	"carecompanion/pkg"
)

// fakeLLM scripts the inference backend for tests.
type fakeLLM struct {
	chatReply    string
	chatErr      error
	completeText string
	completeErr  error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return f.chatReply, f.chatErr
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	return f.completeText, f.completeErr
}

func TestExtractParsesBackendJSON(t *testing.T) {
	client := &fakeLLM{completeText: `{"onset":"yesterday","red_flags":["chest pain"],"severity":8}`}
	e := NewExtractor(client, zap.NewNop())

	record := e.Extract(context.Background(), "patient: my chest hurts")
	assert.Equal(t, "yesterday", record["onset"])
	assert.Equal(t, []any{"chest pain"}, record["red_flags"])
}

func TestExtractToleratesProseAroundJSON(t *testing.T) {
	client := &fakeLLM{completeText: "Here is the extraction:\n{\"duration\":\"3 days\"}\nDone."}
	e := NewExtractor(client, zap.NewNop())

	record := e.Extract(context.Background(), "patient: headache")
	assert.Equal(t, "3 days", record["duration"])
}

func TestExtractFailsClosedOnBackendError(t *testing.T) {
	client := &fakeLLM{completeErr: errors.New("backend unavailable")}
	e := NewExtractor(client, zap.NewNop())

	record := e.Extract(context.Background(), "patient: headache")
	require.NotNil(t, record)
	assert.Empty(t, record)
}

func TestExtractFailsClosedOnMalformedOutput(t *testing.T) {
	client := &fakeLLM{completeText: `{"onset": not-json`}
	e := NewExtractor(client, zap.NewNop())

	record := e.Extract(context.Background(), "patient: headache")
	assert.Empty(t, record)
}

func TestExtractDropsNullAndEmptyFields(t *testing.T) {
	client := &fakeLLM{completeText: `{"onset":null,"duration":"","associated_symptoms":[],"severity":"mild"}`}
	e := NewExtractor(client, zap.NewNop())

	record := e.Extract(context.Background(), "patient: mild ache")
	assert.Equal(t, pkg.StructuredRecord{"severity": "mild"}, record)
}

func TestFlattenTranscript(t *testing.T) {
	turns := []pkg.Turn{
		{Speaker: pkg.SpeakerPatient, Text: "I have a cough"},
		{Speaker: pkg.SpeakerDoctor, Text: "How long has it lasted?"},
	}
	assert.Equal(t, "patient: I have a cough\ndoctor: How long has it lasted?", FlattenTranscript(turns))
}
