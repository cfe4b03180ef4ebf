package usecase_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	coachout "osl/internal/modules/coach/adapter/out"
	coachdto "osl/internal/modules/coach/dto"
	coachin "osl/internal/modules/coach/port/in"
	coachservice "osl/internal/modules/coach/service"
	coachusecase "osl/internal/modules/coach/usecase"
	governanceservice "osl/internal/modules/governance/service"
	governanceusecase "osl/internal/modules/governance/usecase"
	sessionout "osl/internal/modules/session/adapter/out"
	"osl/internal/modules/session/domain"
	sessiondto "osl/internal/modules/session/dto"
	sessionin "osl/internal/modules/session/port/in"
	sessionservice "osl/internal/modules/session/service"
	"osl/internal/modules/session/usecase"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/id"
)

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.now
	c.now = c.now.Add(c.step)
	return v
}

type harness struct {
	session  sessionin.Usecase
	coach    coachin.Usecase
	stateDir string
	vaultDir string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	root := t.TempDir()
	stateDir := filepath.Join(root, "ai_state")
	vaultDir := filepath.Join(root, "obsidian")
	clk := &stepClock{now: time.Date(2026, 8, 12, 19, 0, 0, 0, time.UTC), step: 10 * time.Second}
	docs := docstore.New(stateDir, nil)

	coachStore := coachout.NewFileStateStore(docs, nil, nil)
	coachUC := coachusecase.NewInteractor(coachservice.NewCoachService(clk, coachStore, nil, coachout.NewDirWorkspace(stateDir, vaultDir), nil))
	governanceUC := governanceusecase.NewInteractor(governanceservice.NewGovernanceService(clk, coachStore, nil))

	index, err := sessionout.NewSQLiteSessionIndex(filepath.Join(stateDir, "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	svc := sessionservice.NewSessionService(clk, id.Static("sess-1"), sessionout.NewFileSessionStore(docs, nil, nil), sessionout.NewVaultNotes(vaultDir), index, nil)
	return harness{
		session:  usecase.NewInteractor(svc, coachUC, governanceUC),
		coach:    coachUC,
		stateDir: stateDir,
		vaultDir: vaultDir,
	}
}

func (h harness) ready(t *testing.T, titles ...string) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.coach.Init(ctx, coachdto.InitInput{}); err != nil {
		t.Fatalf("init: %v", err)
	}
	retrieval, interleaving := 86.0, 2
	if _, err := h.coach.UpdateMetrics(ctx, coachdto.MetricsInput{AvgRetrieval7d: &retrieval, InterleavingSessionsWeek: &interleaving}); err != nil {
		t.Fatalf("metrics: %v", err)
	}
	for _, title := range titles {
		if _, err := h.coach.AddBook(ctx, coachdto.AddBookInput{Title: title, Author: "A", TotalPages: 200}); err != nil {
			t.Fatalf("add book: %v", err)
		}
	}
}

func transition(t *testing.T, uc sessionin.Usecase, to string, input map[string]any) sessiondto.TransitionOutput {
	t.Helper()
	out, err := uc.Transition(context.Background(), sessiondto.TransitionInput{To: to, Context: input})
	if err != nil {
		t.Fatalf("transition %s: %v", to, err)
	}
	if !out.Valid {
		t.Fatalf("transition %s rejected: %s (%s)", to, out.Error, out.Suggestion)
	}
	return out
}

func TestFullStudyLoopArchivesAndUpdatesCoach(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ready(t, "Go in Action")
	ctx := context.Background()

	start, err := h.session.Start(ctx, sessiondto.StartInput{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.BookID != "go_in_action_2026" || start.State != "SESSION_INIT" || start.MaxFlashcards != 8 {
		t.Fatalf("unexpected start %+v", start)
	}
	if len(start.Gates) != 4 || len(start.NextActions) != 2 {
		t.Fatalf("start should report gates and next actions: %+v", start)
	}
	if _, err := h.session.Start(ctx, sessiondto.StartInput{}); !apperrors.Is(err, apperrors.ErrActiveSessionExists) {
		t.Fatalf("second start should fail, got %v", err)
	}

	recall := strings.TrimSpace(strings.Repeat("channels synchronise goroutines ", 20))
	transition(t, h.session, "preview", map[string]any{"curiosity_questions": []any{"why?", "how?", "when?"}})
	transition(t, h.session, "reading", map[string]any{"pages_read": 12, "pages": "1-12"})
	transition(t, h.session, "recall_pending", nil)
	transition(t, h.session, "recall_active", nil)
	transition(t, h.session, "recall_complete", map[string]any{"recall_text": recall, "duration_seconds": 240})
	transition(t, h.session, "feynman_pending", nil)
	transition(t, h.session, "feynman_active", nil)
	transition(t, h.session, "feynman_complete", map[string]any{"explanation_text": "Channels pass values. Sends block. Receives block."})
	transition(t, h.session, "tutor_qa_pending", nil)
	transition(t, h.session, "tutor_qa_active", nil)
	transition(t, h.session, "tutor_qa_complete", map[string]any{"answers": []any{"a"}, "confidence_ratings": []any{8}, "retrieval_score": 90.0})
	transition(t, h.session, "cards_pending", nil)
	transition(t, h.session, "cards_active", nil)
	transition(t, h.session, "cards_complete", map[string]any{"cards_created": 4, "from_misses": 3})
	transition(t, h.session, "notes_pending", nil)
	transition(t, h.session, "notes_active", nil)
	last := transition(t, h.session, "notes_complete", map[string]any{"permanent_notes": []any{"channels-are-queues"}})
	if len(last.NextActions) != 1 || last.NextActions[0].Command != "osl session end" {
		t.Fatalf("only ending should remain: %+v", last.NextActions)
	}

	if _, err := h.session.RecordMisconception(ctx, sessiondto.MisconceptionInput{Description: "closing a channel frees it"}); err != nil {
		t.Fatalf("record misconception: %v", err)
	}

	end, err := h.session.End(ctx, sessiondto.EndInput{})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !end.Valid || end.Forced || end.BookCurrentPage != 12 || end.FlashcardsCreated != 4 {
		t.Fatalf("unexpected end %+v", end)
	}
	if end.GovernanceOverall != "NORMAL" {
		t.Fatalf("gates should still pass after the session, got %s", end.GovernanceOverall)
	}

	info, err := os.Stat(end.ArchivePath)
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if info.Mode().Perm()&0o222 != 0 {
		t.Fatalf("archive should be read-only, mode %v", info.Mode())
	}
	if _, err := os.Stat(filepath.Join(h.stateDir, "current_session.last")); err != nil {
		t.Fatalf("current slot should be moved aside: %v", err)
	}
	if _, err := h.session.GetActive(ctx); !apperrors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("no session should be active after end, got %v", err)
	}
	note, err := os.ReadFile(end.NotePath)
	if err != nil {
		t.Fatalf("session note missing: %v", err)
	}
	if !strings.Contains(string(note), "final_state: ARCHIVED") || !strings.Contains(string(note), "closing a channel frees it") {
		t.Fatalf("session note incomplete:\n%s", note)
	}

	state, err := h.coach.Show(ctx)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	book := state.Books[0]
	if book.SessionsCompleted != 1 || book.AvgRetrievalScore != 90 || book.CurrentPage != 12 {
		t.Fatalf("book not updated: %+v", book)
	}
	if state.Metrics.MisconceptionsActive != 1 || state.Metrics.TotalPermanentNotes != 1 || state.Metrics.CardsCompletedToday != 4 {
		t.Fatalf("metrics not updated: %+v", state.Metrics)
	}

	stats, err := h.session.BookStats(ctx, book.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Sessions != 1 || stats.Flashcards != 4 || stats.AvgRetrieval == nil || *stats.AvgRetrieval != 90 {
		t.Fatalf("index not projected: %+v", stats)
	}
	if n, err := h.session.Reindex(ctx); err != nil || n != 1 {
		t.Fatalf("reindex = %d, %v", n, err)
	}
}

func TestRejectedTransitionLeavesSessionUntouched(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ready(t, "Book")
	ctx := context.Background()
	if _, err := h.session.Start(ctx, sessiondto.StartInput{Book: "book"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	before, err := os.ReadFile(filepath.Join(h.stateDir, "current_session.json"))
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	out, err := h.session.Transition(ctx, sessiondto.TransitionInput{To: "cards_pending"})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if out.Valid || out.State != "SESSION_INIT" || len(out.Allowed) != 2 || out.Suggestion == "" {
		t.Fatalf("expected structured rejection, got %+v", out)
	}
	after, _ := os.ReadFile(filepath.Join(h.stateDir, "current_session.json"))
	if string(before) != string(after) {
		t.Fatalf("rejected transition must not write")
	}

	out, err = h.session.Transition(ctx, sessiondto.TransitionInput{To: "reading"})
	if err != nil || out.Valid {
		t.Fatalf("reading without pages_read must be rejected: %+v %v", out, err)
	}
	if len(out.Missing) != 1 || out.Missing[0] != "pages_read" {
		t.Fatalf("missing inputs not reported: %+v", out.Missing)
	}
}

func TestStartRefusedWhenGovernanceBlocks(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ready(t, "Book")
	ctx := context.Background()
	due := 500
	if _, err := h.coach.UpdateMetrics(ctx, coachdto.MetricsInput{CardsDue: &due}); err != nil {
		t.Fatalf("metrics: %v", err)
	}
	_, err := h.session.Start(ctx, sessiondto.StartInput{})
	if !apperrors.Is(err, apperrors.ErrSessionBlocked) {
		t.Fatalf("expected session blocked, got %v", err)
	}
	if !strings.Contains(err.Error(), "card_debt") {
		t.Fatalf("error should name the failing gate: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(h.stateDir, "current_session.json")); !os.IsNotExist(statErr) {
		t.Fatalf("blocked start must not create a session")
	}
	state, _ := h.coach.Show(ctx)
	if state.Governance.RecoveryState != "BLOCKED" {
		t.Fatalf("recovery state should follow the aggregate, got %s", state.Governance.RecoveryState)
	}
}

func TestEndMidLoopNeedsForce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ready(t, "Book")
	ctx := context.Background()
	if _, err := h.session.Start(ctx, sessiondto.StartInput{Type: "interleaving"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	transition(t, h.session, "reading", map[string]any{"pages_read": 5})

	out, err := h.session.End(ctx, sessiondto.EndInput{})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if out.Valid || out.ArchivePath != "" {
		t.Fatalf("unforced end from READING must be rejected: %+v", out)
	}
	active, err := h.session.GetActive(ctx)
	if err != nil || active.State != string(domain.StateReading) {
		t.Fatalf("session should still be reading: %+v %v", active, err)
	}

	out, err = h.session.End(ctx, sessiondto.EndInput{Force: true})
	if err != nil {
		t.Fatalf("forced end: %v", err)
	}
	if !out.Valid || !out.Forced || out.BookCurrentPage != 5 {
		t.Fatalf("forced end should archive: %+v", out)
	}
	state, _ := h.coach.Show(ctx)
	if state.Metrics.InterleavingSessionsWeek != 3 {
		t.Fatalf("interleaving session should count toward the week, got %d", state.Metrics.InterleavingSessionsWeek)
	}
}

func TestStartBookSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ready(t, "First Book", "Second Book")
	ctx := context.Background()
	if _, err := h.session.Start(ctx, sessiondto.StartInput{}); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("ambiguous selection should fail, got %v", err)
	}
	if _, err := h.session.Start(ctx, sessiondto.StartInput{Book: "missing"}); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unknown book should be not found, got %v", err)
	}
	out, err := h.session.Start(ctx, sessiondto.StartInput{Book: "second book", Type: "review"})
	if err != nil {
		t.Fatalf("start by title: %v", err)
	}
	if out.BookID != "second_book_2026" || out.Type != "review" {
		t.Fatalf("unexpected start %+v", out)
	}
}

func TestEndRetriesRecordSessionOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ready(t, "Book")
	ctx := context.Background()
	if _, err := h.session.Start(ctx, sessiondto.StartInput{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	transition(t, h.session, "reading", map[string]any{"pages_read": 12})

	archiveDir := filepath.Join(h.stateDir, "session_logs")
	archivePath := filepath.Join(archiveDir, "sess-1.json")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	foreign := `{"version":"3.1","session_id":"sess-1","start_time":"2020-01-01T00:00:00Z","state":"ARCHIVED"}`
	if err := os.WriteFile(archivePath, []byte(foreign), 0o444); err != nil {
		t.Fatalf("write foreign archive: %v", err)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if _, err := h.session.End(ctx, sessiondto.EndInput{Force: true}); !apperrors.Is(err, apperrors.ErrArchiveExists) {
			t.Fatalf("attempt %d: a different session under the same id must conflict, got %v", attempt, err)
		}
	}
	book := h.book(t)
	if book.SessionsCompleted != 1 || book.CurrentPage != 12 {
		t.Fatalf("failed ends must count the session once: %+v", book)
	}

	// An archive written by an interrupted end, with the slot never cleared.
	raw, err := os.ReadFile(filepath.Join(h.stateDir, "current_session.json"))
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	var pending domain.Session
	if err := json.Unmarshal(raw, &pending); err != nil {
		t.Fatalf("decode current: %v", err)
	}
	if !pending.CoachRecorded || pending.State != domain.StateSessionEnd {
		t.Fatalf("slot should hold the ended, recorded session: %s %v", pending.State, pending.CoachRecorded)
	}
	pending.State = domain.StateArchived
	sealed, _ := json.Marshal(pending)
	if err := os.Remove(archivePath); err != nil {
		t.Fatalf("remove foreign archive: %v", err)
	}
	if err := os.WriteFile(archivePath, sealed, 0o444); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	end, err := h.session.End(ctx, sessiondto.EndInput{Force: true})
	if err != nil {
		t.Fatalf("end should resume after an interrupted archive: %v", err)
	}
	if !end.Valid || end.ArchivePath != archivePath || end.BookCurrentPage != 12 {
		t.Fatalf("unexpected resumed end %+v", end)
	}
	if book := h.book(t); book.SessionsCompleted != 1 || book.CurrentPage != 12 {
		t.Fatalf("resumed end must not count the session again: %+v", book)
	}
	if _, err := h.session.Start(ctx, sessiondto.StartInput{}); err != nil {
		t.Fatalf("a new session should start once the slot is cleared: %v", err)
	}
}

func (h harness) book(t *testing.T) coachdto.BookOutput {
	t.Helper()
	state, err := h.coach.Show(context.Background())
	if err != nil || len(state.Books) != 1 {
		t.Fatalf("show: %+v %v", state.Books, err)
	}
	return state.Books[0]
}
