// Package core implements the conversational triage pipeline: reply shaping,
// structured extraction, summarisation and the per-turn orchestrator that
// sequences them with a documented fallback at every stage.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"carecompanion/internal/llm"
	"carecompanion/internal/session"
	"carecompanion/internal/triage"
	"carecompanion/pkg"
)

// Recorder is the persistence collaborator. It is invoked fire-and-forget
// after every turn; a failed write is logged by the orchestrator and never
// propagated to the patient.
type Recorder interface {
	Record(ctx context.Context, rec pkg.TurnRecord) error
}

// maxPromptTurns bounds how much history is replayed to the inference
// backend. The stored transcript itself is unbounded; only the prompt window
// is clipped, oldest turns first.
const maxPromptTurns = 32

// recordTimeout caps the detached persistence write.
const recordTimeout = 10 * time.Second

// Orchestrator drives one consultation turn end to end: append the patient
// message, generate and shape a doctor reply, extract structured symptoms
// from the full transcript, evaluate and verify triage, and hand the turn
// record to the persistence collaborator. Every stage is independently
// fault-tolerant; HandleTurn always returns a reply and a valid display
// verdict, even under total backend failure.
type Orchestrator struct {
	store        session.Store
	llm          llm.Client
	extractor    *Extractor
	evaluator    *triage.Evaluator
	guidelines   []triage.GuidelineRule
	recorder     Recorder
	log          *zap.Logger
	inferTimeout time.Duration
}

// NewOrchestrator constructs the turn orchestrator. guidelines may be empty —
// verification is then a pass-through. inferTimeout bounds each inference and
// extraction call; zero selects the 60s default.
func NewOrchestrator(
	store session.Store,
	client llm.Client,
	extractor *Extractor,
	evaluator *triage.Evaluator,
	guidelines []triage.GuidelineRule,
	recorder Recorder,
	logger *zap.Logger,
	inferTimeout time.Duration,
) *Orchestrator {
	if inferTimeout <= 0 {
		inferTimeout = 60 * time.Second
	}
	return &Orchestrator{
		store:        store,
		llm:          client,
		extractor:    extractor,
		evaluator:    evaluator,
		guidelines:   guidelines,
		recorder:     recorder,
		log:          logger,
		inferTimeout: inferTimeout,
	}
}

// NewSessionID allocates a clock-derived session id for callers that did not
// supply one. Ids for unseen values simply start an empty session, so no
// registration step exists.
func NewSessionID() string {
	return fmt.Sprintf("session-%d", time.Now().Unix())
}

// HandleTurn runs one turn for the given session. An empty sessionID
// allocates a fresh one; the id actually used is returned in the result.
// patientText is recorded as-is, even when empty — the web layer forwards
// whatever the client sent and this is the single forgiving integration
// point.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, patientText string) pkg.TurnResult {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = NewSessionID()
	}

	// Stage 1: append the patient turn. A store failure must not abort the
	// turn; the pipeline continues on a local history for this turn only.
	turns, err := o.store.Append(ctx, sessionID, pkg.Turn{Speaker: pkg.SpeakerPatient, Text: patientText})
	if err != nil {
		o.log.Warn("session append failed", zap.String("session_id", sessionID), zap.Error(err))
		turns = []pkg.Turn{{Speaker: pkg.SpeakerPatient, Text: patientText}}
	}

	// Stage 2: inference, with the fixed apologetic fallback on any failure
	// (timeout and backend error are indistinguishable to the patient).
	reply, complete := o.generateReply(ctx, turns)

	// Stage 3: append the shaped doctor reply.
	if appended, err := o.store.Append(ctx, sessionID, pkg.Turn{Speaker: pkg.SpeakerDoctor, Text: reply}); err != nil {
		o.log.Warn("session append failed", zap.String("session_id", sessionID), zap.Error(err))
		turns = append(turns, pkg.Turn{Speaker: pkg.SpeakerDoctor, Text: reply})
	} else {
		turns = appended
	}

	// Stage 4: structured extraction over the whole transcript. The
	// extractor fails closed to the empty record on its own.
	ectx, cancel := context.WithTimeout(ctx, o.inferTimeout)
	record := o.extractor.Extract(ectx, FlattenTranscript(turns))
	cancel()

	// Stage 5: triage evaluation, with the fixed Routine fallback verdict.
	verdict, err := o.evaluator.Evaluate(record)
	if err != nil {
		o.log.Warn("triage evaluation failed", zap.String("session_id", sessionID), zap.Error(err))
		verdict = pkg.TriageVerdict{Level: pkg.LevelRoutine, Reason: FallbackTriageReason}
	}

	// Stage 6: guideline verification (raise-only; identity on empty ruleset).
	verdict = triage.Verify(verdict, record, o.guidelines)

	// Stage 7: presentation, carrying the completion flag from stage 2.
	display := triage.Present(verdict)
	display.SeverityFlag = complete

	// Stage 8: hand off to the persistence collaborator, fire-and-forget.
	rec := pkg.TurnRecord{
		SessionID:  sessionID,
		Turns:      turns,
		Structured: record,
		Triage:     display,
		Timestamp:  time.Now(),
	}
	go func() {
		rctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := o.recorder.Record(rctx, rec); err != nil {
			o.log.Error("turn record persistence failed", zap.String("session_id", rec.SessionID), zap.Error(err))
		}
	}()

	return pkg.TurnResult{
		SessionID:  sessionID,
		Reply:      reply,
		Triage:     display,
		Structured: record,
	}
}

// generateReply invokes the inference backend with the system prompt plus the
// prompt window of the history, then shapes the raw text. Any failure, empty
// response included, substitutes the fixed fallback reply with completion
// false.
func (o *Orchestrator) generateReply(ctx context.Context, turns []pkg.Turn) (string, bool) {
	ictx, cancel := context.WithTimeout(ctx, o.inferTimeout)
	defer cancel()

	raw, err := o.llm.Chat(ictx, buildMessages(turns))
	if err != nil {
		o.log.Warn("reply generation failed", zap.Error(err))
		return FallbackReply, false
	}
	reply, complete := ShapeReply(raw)
	if reply == "" {
		// a reply that was only the marker still carries a genuine
		// completion signal
		return FallbackReply, complete
	}
	return reply, complete
}

// buildMessages maps the turn history onto backend roles: patient -> user,
// doctor -> assistant, with the physician persona as the leading system
// message. Only the most recent maxPromptTurns turns are included.
func buildMessages(turns []pkg.Turn) []llm.Message {
	if len(turns) > maxPromptTurns {
		turns = turns[len(turns)-maxPromptTurns:]
	}
	msgs := make([]llm.Message, 0, len(turns)+1)
	msgs = append(msgs, llm.Message{Role: "system", Content: SystemPrompt})
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		role := "user"
		if t.Speaker == pkg.SpeakerDoctor {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Text})
	}
	return msgs
}

// logRecorder is the Recorder used when no database is configured: the turn
// record is logged and dropped.
type logRecorder struct {
	log *zap.Logger
}

// NewLogRecorder returns a Recorder that only logs.
func NewLogRecorder(logger *zap.Logger) Recorder {
	return &logRecorder{log: logger}
}

func (r *logRecorder) Record(ctx context.Context, rec pkg.TurnRecord) error {
	r.log.Info("turn record",
		zap.String("session_id", rec.SessionID),
		zap.Int("turns", len(rec.Turns)),
		zap.String("triage_level", string(rec.Triage.Level)),
	)
	return nil
}
