// Package http exposes the caller-facing JSON API around the turn
// orchestrator: the chat endpoint, the patient simulator, and visit summary
// generation.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"carecompanion/internal/core"
	"carecompanion/internal/session"
	"carecompanion/internal/vignette"
	"carecompanion/pkg"
)

// Archive is what the summary endpoints need from the persistence
// collaborator: the stored summary for a session, the most recent persisted
// turn record, and summary upserts. *db.Repository implements it; a nil
// Archive means the service runs without a database.
type Archive interface {
	GetSummary(ctx context.Context, sessionID string) (string, error)
	LatestRecord(ctx context.Context, sessionID string) (*pkg.TurnRecord, error)
	UpsertSummary(ctx context.Context, sessionID, summary string) error
}

// Server bundles together the dependencies required by the HTTP handlers.
type Server struct {
	Orchestrator *core.Orchestrator
	Summarizer   *core.Summarizer
	Store        session.Store
	Repo         Archive // nil when running without a database
	Deck         *vignette.Deck
	Log          *zap.Logger
}

// NewServer constructs a Server.
func NewServer(
	orch *core.Orchestrator,
	summarizer *core.Summarizer,
	store session.Store,
	repo Archive,
	deck *vignette.Deck,
	logger *zap.Logger,
) *Server {
	return &Server{
		Orchestrator: orch,
		Summarizer:   summarizer,
		Store:        store,
		Repo:         repo,
		Deck:         deck,
		Log:          logger,
	}
}

// Router builds the chi router with logging, panic recovery and permissive
// CORS for the browser frontend.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/simulate_patient_chat", s.handleSimulatePatientChat)
		r.Post("/generate_summary", s.handleGenerateSummary)
		r.Get("/summary", s.handleGetSummary)
	})
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleChat runs one consultation turn. Malformed or empty input is accepted
// and recorded as-is; the orchestrator is the forgiving integration point and
// never fails a turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req pkg.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Log.Warn("chat request body unreadable", zap.Error(err))
	}

	result := s.Orchestrator.HandleTurn(r.Context(), req.SessionID, req.Message)

	writeJSON(w, http.StatusOK, pkg.ChatResponse{
		Success:    true,
		SessionID:  result.SessionID,
		Response:   result.Reply,
		Triage:     result.Triage,
		Structured: result.Structured,
	})
}

// handleSimulatePatientChat picks a random vignette and returns a canned
// opening exchange for demo and testing purposes.
func (s *Server) handleSimulatePatientChat(w http.ResponseWriter, r *http.Request) {
	v := s.Deck.Random()
	history := []map[string]string{
		{"role": "patient", "message": v.ChiefComplaint},
		{"role": "doctor", "message": fmt.Sprintf("Can you describe your %s in a bit more detail?", v.SymptomList())},
	}
	reply := fmt.Sprintf("Based on your history (%s), it seems mild. Please rest and monitor your condition.", v.History)

	writeJSON(w, http.StatusOK, map[string]any{
		"patient_name":    v.Name,
		"message_history": history,
		"doctor_reply":    reply,
	})
}

// handleGenerateSummary summarises a session's transcript and, when a
// repository is configured, stores the result.
func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	var req pkg.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}

	turns, err := s.Store.History(r.Context(), req.SessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(turns) < 2 && s.Repo != nil {
		// the live store is empty (e.g. after a restart); fall back to the
		// last persisted turn record
		if rec, err := s.Repo.LatestRecord(r.Context(), req.SessionID); err != nil {
			s.Log.Warn("turn record lookup failed", zap.String("session_id", req.SessionID), zap.Error(err))
		} else if rec != nil {
			turns = rec.Turns
		}
	}
	if len(turns) < 2 {
		writeJSON(w, http.StatusOK, pkg.SummaryResponse{Summary: "No conversation found yet."})
		return
	}

	summary, err := s.Summarizer.Summarize(r.Context(), turns)
	if err != nil {
		s.Log.Warn("summary generation failed", zap.String("session_id", req.SessionID), zap.Error(err))
	}

	saved := false
	if s.Repo != nil {
		if err := s.Repo.UpsertSummary(r.Context(), req.SessionID, summary); err != nil {
			s.Log.Error("summary persistence failed", zap.String("session_id", req.SessionID), zap.Error(err))
		} else {
			saved = true
		}
	}
	writeJSON(w, http.StatusOK, pkg.SummaryResponse{Summary: summary, Saved: saved})
}

// handleGetSummary returns the stored summary for a session without
// regenerating it.
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}
	if s.Repo == nil {
		writeJSON(w, http.StatusOK, pkg.SummaryResponse{Summary: core.FallbackSummary})
		return
	}

	summary, err := s.Repo.GetSummary(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if summary == "" {
		writeJSON(w, http.StatusOK, pkg.SummaryResponse{Summary: core.FallbackSummary})
		return
	}
	writeJSON(w, http.StatusOK, pkg.SummaryResponse{Summary: summary, Saved: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
