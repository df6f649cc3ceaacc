package pkg

import "time"

// Speaker identifies who authored a turn. There are only two roles in a
// consultation: the patient and the assistant acting as doctor.
type Speaker string

const (
	SpeakerPatient Speaker = "patient"
	SpeakerDoctor  Speaker = "doctor"
)

// Turn is one message exchange unit. Turns are immutable once appended to a
// session; their order is conversation order and is replayed verbatim to the
// inference backend.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// StructuredRecord maps symptom field names (onset, duration, severity,
// associated_symptoms, red_flags) to extracted values. Absent fields are
// omitted, never null-filled. An empty record means "insufficient
// information", not an error.
type StructuredRecord map[string]any

// TriageLevel is the closed enumeration of urgency levels, ordered
// Emergency > Urgent > Routine ≈ Normal.
type TriageLevel string

const (
	LevelEmergency TriageLevel = "Emergency"
	LevelUrgent    TriageLevel = "Urgent"
	LevelRoutine   TriageLevel = "Routine"
	LevelNormal    TriageLevel = "Normal"
)

// TriageLevels lists every recognized level. Tables keyed by TriageLevel are
// checked against this slice for completeness at construction time.
var TriageLevels = []TriageLevel{LevelEmergency, LevelUrgent, LevelRoutine, LevelNormal}

// Normalize maps any unrecognized level to Routine, the fail-safe default.
func (l TriageLevel) Normalize() TriageLevel {
	switch l {
	case LevelEmergency, LevelUrgent, LevelRoutine, LevelNormal:
		return l
	}
	return LevelRoutine
}

// TriageVerdict is the evaluator's output, possibly raised by the guideline
// verifier before presentation.
type TriageVerdict struct {
	Level  TriageLevel `json:"level"`
	Reason string      `json:"reason"`
}

// DisplayTriage is the presentation view over a TriageVerdict plus the
// completion flag carried over from reply generation. It is derived fresh
// every turn.
type DisplayTriage struct {
	Level        TriageLevel `json:"level"`
	Reason       string      `json:"reason"`
	Color        string      `json:"color"`
	Status       string      `json:"status"`
	SeverityFlag bool        `json:"severity_flag"`
}

// TurnResult is what one orchestrated turn hands back to the caller.
type TurnResult struct {
	SessionID  string           `json:"session_id"`
	Reply      string           `json:"reply"`
	Triage     DisplayTriage    `json:"triage"`
	Structured StructuredRecord `json:"structured"`
}

// TurnRecord is the payload handed to the persistence collaborator after each
// turn. Persistence is fire-and-forget: a failed write is logged, never
// surfaced to the patient.
type TurnRecord struct {
	SessionID  string           `json:"session_id"`
	Turns      []Turn           `json:"turns"`
	Structured StructuredRecord `json:"structured"`
	Triage     DisplayTriage    `json:"triage"`
	Timestamp  time.Time        `json:"ts"`
}

// ChatRequest is the caller-facing turn API request. SessionID may be empty;
// the orchestrator then allocates a fresh clock-derived id.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse mirrors the response shape the patient frontend consumes.
type ChatResponse struct {
	Success    bool             `json:"success"`
	SessionID  string           `json:"session_id"`
	Response   string           `json:"response"`
	Triage     DisplayTriage    `json:"triage"`
	Structured StructuredRecord `json:"structured"`
}

// SummaryRequest asks for a visit summary over one session's transcript.
type SummaryRequest struct {
	SessionID string `json:"session_id"`
}

// SummaryResponse carries the generated summary and whether it was stored.
type SummaryResponse struct {
	Summary string `json:"summary"`
	Saved   bool   `json:"saved"`
}
