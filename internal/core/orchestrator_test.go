package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carecompanion/internal/session"
	"carecompanion/internal/triage"
	"carecompanion/pkg"
)

// captureRecorder collects persisted turn records for assertions.
type captureRecorder struct {
	ch chan pkg.TurnRecord
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{ch: make(chan pkg.TurnRecord, 8)}
}

func (r *captureRecorder) Record(ctx context.Context, rec pkg.TurnRecord) error {
	r.ch <- rec
	return nil
}

func (r *captureRecorder) wait(t *testing.T) pkg.TurnRecord {
	t.Helper()
	select {
	case rec := <-r.ch:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for turn record")
		return pkg.TurnRecord{}
	}
}

func newTestOrchestrator(t *testing.T, client *fakeLLM, rec Recorder) (*Orchestrator, session.Store) {
	t.Helper()
	store, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)
	if rec == nil {
		rec = NewLogRecorder(zap.NewNop())
	}
	orch := NewOrchestrator(store, client, NewExtractor(client, zap.NewNop()), triage.NewEvaluator(), nil, rec, zap.NewNop(), time.Second)
	return orch, store
}

func TestHandleTurnHappyPath(t *testing.T) {
	client := &fakeLLM{
		chatReply:    "I'm sorry to hear that. How long has the headache lasted?",
		completeText: `{"associated_symptoms":["headache"]}`,
	}
	rec := newCaptureRecorder()
	orch, store := newTestOrchestrator(t, client, rec)

	result := orch.HandleTurn(context.Background(), "s-1", "I have a headache")
	assert.Equal(t, "s-1", result.SessionID)
	assert.Equal(t, "I'm sorry to hear that. How long has the headache lasted?", result.Reply)
	assert.Equal(t, pkg.LevelRoutine, result.Triage.Level)
	assert.False(t, result.Triage.SeverityFlag)

	turns, err := store.History(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, pkg.SpeakerPatient, turns[0].Speaker)
	assert.Equal(t, pkg.SpeakerDoctor, turns[1].Speaker)

	persisted := rec.wait(t)
	assert.Equal(t, "s-1", persisted.SessionID)
	assert.Len(t, persisted.Turns, 2)
}

func TestHandleTurnFallsBackOnTotalBackendFailure(t *testing.T) {
	client := &fakeLLM{
		chatErr:     errors.New("backend unavailable"),
		completeErr: errors.New("backend unavailable"),
	}
	orch, _ := newTestOrchestrator(t, client, nil)

	result := orch.HandleTurn(context.Background(), "s-2", "I feel unwell")
	assert.Equal(t, FallbackReply, result.Reply)
	assert.Equal(t, pkg.LevelRoutine, result.Triage.Level)
	assert.NotEmpty(t, result.Triage.Reason)
	assert.NotEmpty(t, result.Triage.Color)
	assert.NotEmpty(t, result.Triage.Status)
	assert.False(t, result.Triage.SeverityFlag)
	assert.Empty(t, result.Structured)
}

func TestHandleTurnEmergencyEndToEnd(t *testing.T) {
	client := &fakeLLM{
		chatReply:    "That sounds serious. Please call emergency services now.",
		completeText: `{"red_flags":["chest pain","shortness of breath"]}`,
	}
	rec := newCaptureRecorder()
	orch, _ := newTestOrchestrator(t, client, rec)

	result := orch.HandleTurn(context.Background(), "s-3", "I have chest pain and shortness of breath")
	assert.Equal(t, pkg.LevelEmergency, result.Triage.Level)
	assert.Equal(t, "#e63946", result.Triage.Color)
	assert.Contains(t, result.Triage.Status, "Emergency")
	assert.Contains(t, result.Triage.Reason, "chest pain")

	persisted := rec.wait(t)
	assert.Equal(t, pkg.LevelEmergency, persisted.Triage.Level)
}

func TestHandleTurnCompletionMarkerSetsSeverityFlag(t *testing.T) {
	client := &fakeLLM{
		chatReply:    "Take rest and drink fluids. <END_CONVO>",
		completeText: `{}`,
	}
	orch, _ := newTestOrchestrator(t, client, nil)

	result := orch.HandleTurn(context.Background(), "s-4", "thanks doctor")
	assert.Equal(t, "Take rest and drink fluids.", result.Reply)
	assert.True(t, result.Triage.SeverityFlag)
}

func TestHandleTurnAllocatesClockDerivedSessionID(t *testing.T) {
	client := &fakeLLM{chatReply: "Hello. What brings you in today?", completeText: `{}`}
	orch, store := newTestOrchestrator(t, client, nil)

	result := orch.HandleTurn(context.Background(), "", "hello")
	require.NotEmpty(t, result.SessionID)
	assert.Regexp(t, `^session-\d+$`, result.SessionID)

	turns, err := store.History(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestHandleTurnEmptyBackendReplyUsesFallback(t *testing.T) {
	client := &fakeLLM{chatReply: "", completeText: `{}`}
	orch, _ := newTestOrchestrator(t, client, nil)

	result := orch.HandleTurn(context.Background(), "s-5", "hi")
	assert.Equal(t, FallbackReply, result.Reply)
	assert.False(t, result.Triage.SeverityFlag)
}

func TestHandleTurnMarkerOnlyReplyKeepsCompletion(t *testing.T) {
	// a reply consisting of nothing but the marker shapes to the fallback
	// text but must not drop the completion signal
	client := &fakeLLM{chatReply: "<END_CONVO>", completeText: `{}`}
	orch, _ := newTestOrchestrator(t, client, nil)

	result := orch.HandleTurn(context.Background(), "s-7", "goodbye")
	assert.Equal(t, FallbackReply, result.Reply)
	assert.True(t, result.Triage.SeverityFlag)
}

func TestHandleTurnGuidelineOverrideRaisesLevel(t *testing.T) {
	client := &fakeLLM{
		chatReply:    "Let's keep an eye on that.",
		completeText: `{"associated_symptoms":["slurred speech"]}`,
	}
	store, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)
	guidelines := []triage.GuidelineRule{{
		Name:  "stroke-signs",
		Level: pkg.LevelEmergency,
		Field: "associated_symptoms",
		AnyOf: []string{"slurred speech"},
	}}
	orch := NewOrchestrator(store, client, NewExtractor(client, zap.NewNop()), triage.NewEvaluator(), guidelines, NewLogRecorder(zap.NewNop()), zap.NewNop(), time.Second)

	result := orch.HandleTurn(context.Background(), "s-6", "my speech is slurred")
	assert.Equal(t, pkg.LevelEmergency, result.Triage.Level)
	assert.Contains(t, result.Triage.Reason, "stroke-signs")
}

func TestBuildMessagesClipsPromptWindow(t *testing.T) {
	turns := make([]pkg.Turn, 0, maxPromptTurns+10)
	for i := 0; i < maxPromptTurns+10; i++ {
		turns = append(turns, pkg.Turn{Speaker: pkg.SpeakerPatient, Text: "msg"})
	}
	msgs := buildMessages(turns)
	// system prompt + clipped window
	assert.Len(t, msgs, maxPromptTurns+1)
	assert.Equal(t, "system", msgs[0].Role)
}
