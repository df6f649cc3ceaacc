package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"carecompanion/pkg"
)

// Repository wraps database operations for turn records and visit summaries.
// A single Postgres database backs this implementation. It satisfies the
// orchestrator's Recorder contract.
type Repository struct {
	DB       *sql.DB
	Notifier *Notifier // optional; nil disables emergency alerts
}

// NewRepository constructs a Repository from an existing sql.DB. The caller
// is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB, notifier *Notifier) *Repository {
	return &Repository{DB: db, Notifier: notifier}
}

// Record stores the full turn record for a session. When the verdict is
// Emergency the notifier is pinged so listening dashboards learn about the
// escalation immediately; a notify failure does not fail the write.
func (r *Repository) Record(ctx context.Context, rec pkg.TurnRecord) error {
	turnsJSON, err := json.Marshal(rec.Turns)
	if err != nil {
		return err
	}
	structuredJSON, err := json.Marshal(rec.Structured)
	if err != nil {
		return err
	}
	triageJSON, err := json.Marshal(rec.Triage)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO turn_records (id, session_id, turns, structured, triage, triage_level, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), rec.SessionID, turnsJSON, structuredJSON, triageJSON, string(rec.Triage.Level), rec.Timestamp,
	)
	if err != nil {
		return err
	}

	if rec.Triage.Level == pkg.LevelEmergency && r.Notifier != nil {
		_ = r.Notifier.NotifyEmergency(ctx, rec.SessionID)
	}
	return nil
}

// UpsertSummary stores or replaces the visit summary for a session.
func (r *Repository) UpsertSummary(ctx context.Context, sessionID, summary string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO summaries (session_id, summary, updated_at)
         VALUES ($1, $2, NOW())
         ON CONFLICT (session_id)
         DO UPDATE SET summary = EXCLUDED.summary, updated_at = NOW()`,
		sessionID, summary,
	)
	return err
}

// GetSummary returns the stored summary for a session, or "" when none
// exists yet.
func (r *Repository) GetSummary(ctx context.Context, sessionID string) (string, error) {
	var summary string
	err := r.DB.QueryRowContext(ctx,
		`SELECT summary FROM summaries WHERE session_id = $1`, sessionID,
	).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return summary, nil
}

// LatestRecord returns the most recent turn record for a session, or nil when
// the session has never been persisted.
func (r *Repository) LatestRecord(ctx context.Context, sessionID string) (*pkg.TurnRecord, error) {
	var turnsJSON, structuredJSON, triageJSON []byte
	rec := pkg.TurnRecord{SessionID: sessionID}
	err := r.DB.QueryRowContext(ctx,
		`SELECT turns, structured, triage, created_at
         FROM turn_records
         WHERE session_id = $1
         ORDER BY created_at DESC
         LIMIT 1`, sessionID,
	).Scan(&turnsJSON, &structuredJSON, &triageJSON, &rec.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(turnsJSON, &rec.Turns); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(structuredJSON, &rec.Structured); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(triageJSON, &rec.Triage); err != nil {
		return nil, err
	}
	return &rec, nil
}
