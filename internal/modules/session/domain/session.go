package domain

import (
	"strings"
	"time"

	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/schema"
)

const DocumentName = "current_session"

// DefaultMaxFlashcards caps learner-authored cards per session.
const DefaultMaxFlashcards = 8

type SessionType string

const (
	TypeStandard     SessionType = "standard"
	TypeInterleaving SessionType = "interleaving"
	TypeReview       SessionType = "review"
	TypeCalibration  SessionType = "calibration"
)

func ParseSessionType(raw string) (SessionType, error) {
	switch t := SessionType(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeStandard, TypeInterleaving, TypeReview, TypeCalibration:
		return t, nil
	case "":
		return TypeStandard, nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown session type %q", raw)
	}
}

type TransitionRecord struct {
	From      State          `json:"from"`
	To        State          `json:"to"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// MicroLoop is one read, recall, explain, cards cycle.
type MicroLoop struct {
	LoopID          int        `json:"loop_id"`
	Pages           string     `json:"pages"`
	ChunkType       string     `json:"chunk_type"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	RecallHash      string     `json:"recall_hash,omitempty"`
	ExplanationHash string     `json:"explanation_hash,omitempty"`
	RetrievalScore  *float64   `json:"retrieval_score"`
	Notes           string     `json:"notes,omitempty"`
}

type ContentHashes struct {
	RecallTexts       []string `json:"recall_texts"`
	FeynmanTexts      []string `json:"feynman_texts"`
	FlashcardContents []string `json:"flashcard_contents"`
}

type Misconception struct {
	ID           string     `json:"misconception_id"`
	IdentifiedAt time.Time  `json:"identified_at"`
	DuringLoop   int        `json:"during_loop"`
	Description  string     `json:"description"`
	Source       string     `json:"source"`
	Resolved     bool       `json:"resolved"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	Correction   string     `json:"correction,omitempty"`
}

// Session is the document held in the current-session slot while a session is active.
type Session struct {
	Version                  string             `json:"version"`
	SessionID                string             `json:"session_id"`
	BookID                   string             `json:"book_id"`
	BookTitle                string             `json:"book_title"`
	StartTime                time.Time          `json:"start_time"`
	LastActivity             time.Time          `json:"last_activity"`
	StateEnteredAt           time.Time          `json:"state_entered_at"`
	DurationMinutes          int                `json:"duration_minutes"`
	State                    State              `json:"state"`
	SessionType              SessionType        `json:"session_type"`
	StateHistory             []TransitionRecord `json:"state_history"`
	CuriosityQuestions       []string           `json:"curiosity_questions"`
	MicroLoops               []MicroLoop        `json:"micro_loops"`
	PagesRead                int                `json:"pages_read"`
	FlashcardsCreated        int                `json:"flashcards_created"`
	MaxFlashcards            int                `json:"max_flashcards"`
	GovernanceGatesChecked   bool               `json:"governance_gates_checked"`
	GatesStatus              map[string]string  `json:"gates_status"`
	AIInteractionsCount      int                `json:"ai_interactions_count"`
	TotalRecallTime          int                `json:"total_recall_time"`
	TotalExplanationTime     int                `json:"total_explanation_time"`
	RetrievalScores          []float64          `json:"retrieval_scores"`
	ContentHashes            ContentHashes      `json:"content_hashes"`
	MisconceptionsIdentified []Misconception    `json:"misconceptions_identified"`
	CoachRecorded            bool               `json:"coach_recorded,omitempty"`
	LastMigration            *time.Time         `json:"last_migration,omitempty"`
}

// NewSession opens a session in SESSION_INIT with the initiating transition recorded.
func NewSession(id, bookID, bookTitle string, kind SessionType, maxCards int, now time.Time) Session {
	if maxCards <= 0 {
		maxCards = DefaultMaxFlashcards
	}
	return Session{
		Version:        schema.Current,
		SessionID:      id,
		BookID:         bookID,
		BookTitle:      bookTitle,
		StartTime:      now,
		LastActivity:   now,
		StateEnteredAt: now,
		State:          StateSessionInit,
		SessionType:    kind,
		StateHistory: []TransitionRecord{{
			From:      StateNone,
			To:        StateSessionInit,
			Timestamp: now,
			Context:   map[string]any{"book_id": bookID, "book_title": bookTitle},
		}},
		CuriosityQuestions:       []string{},
		MicroLoops:               []MicroLoop{},
		MaxFlashcards:            maxCards,
		GatesStatus:              map[string]string{},
		RetrievalScores:          []float64{},
		ContentHashes:            ContentHashes{RecallTexts: []string{}, FeynmanTexts: []string{}, FlashcardContents: []string{}},
		MisconceptionsIdentified: []Misconception{},
	}
}

func (s Session) Validate() error {
	if err := schema.Check(s.Version); err != nil {
		return err
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "session id is required")
	}
	if _, err := ParseState(string(s.State)); err != nil {
		return err
	}
	if s.FlashcardsCreated < 0 || s.FlashcardsCreated > s.MaxFlashcards {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "flashcards created %d outside 0..%d", s.FlashcardsCreated, s.MaxFlashcards)
	}
	return nil
}

// CurrentLoop returns the most recent micro-loop, if any.
func (s *Session) CurrentLoop() *MicroLoop {
	if len(s.MicroLoops) == 0 {
		return nil
	}
	return &s.MicroLoops[len(s.MicroLoops)-1]
}

// AverageRetrieval is the mean of the session's retrieval scores.
func (s Session) AverageRetrieval() (float64, bool) {
	if len(s.RetrievalScores) == 0 {
		return 0, false
	}
	total := 0.0
	for _, v := range s.RetrievalScores {
		total += v
	}
	return total / float64(len(s.RetrievalScores)), true
}

// ActiveMisconceptions counts misconceptions not yet resolved.
func (s Session) ActiveMisconceptions() int {
	n := 0
	for _, m := range s.MisconceptionsIdentified {
		if !m.Resolved {
			n++
		}
	}
	return n
}

// AddMisconception appends a new unresolved misconception tied to the current loop.
func (s *Session) AddMisconception(id, description, source string, now time.Time) (Misconception, error) {
	if strings.TrimSpace(description) == "" {
		return Misconception{}, apperrors.Wrap(apperrors.ErrInvalidInput, "misconception description is required")
	}
	if source == "" {
		source = "unknown"
		if loop := s.CurrentLoop(); loop != nil && loop.Pages != "" {
			source = "Page " + loop.Pages
		}
	}
	m := Misconception{
		ID:           id,
		IdentifiedAt: now,
		DuringLoop:   len(s.MicroLoops),
		Description:  description,
		Source:       source,
	}
	s.MisconceptionsIdentified = append(s.MisconceptionsIdentified, m)
	s.LastActivity = now
	return m, nil
}

// ResolveMisconception marks a recorded misconception as corrected.
func (s *Session) ResolveMisconception(id, correction string, now time.Time) (Misconception, error) {
	for i := range s.MisconceptionsIdentified {
		m := &s.MisconceptionsIdentified[i]
		if m.ID != id {
			continue
		}
		if m.Resolved {
			return Misconception{}, apperrors.Wrapf(apperrors.ErrInvalidInput, "misconception %s already resolved", id)
		}
		m.Resolved = true
		m.ResolvedAt = &now
		m.Correction = correction
		s.LastActivity = now
		return *m, nil
	}
	return Misconception{}, apperrors.Wrapf(apperrors.ErrNotFound, "misconception %s", id)
}
