package service_test

import (
	"context"
	"math"
	"testing"
	"time"

	coachout "osl/internal/modules/coach/adapter/out"
	"osl/internal/modules/coach/domain"
	"osl/internal/modules/coach/service"
	"osl/internal/platform/clock"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
)

var fixedNow = time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)

type fakePages struct {
	count int
	path  string
}

func (f *fakePages) CountPages(_ context.Context, path string) (int, error) {
	f.path = path
	return f.count, nil
}

type fakeWorkspace struct{ calls int }

func (f *fakeWorkspace) Scaffold(context.Context) ([]string, error) {
	f.calls++
	return []string{"session_logs"}, nil
}

func newService(t *testing.T, pages *fakePages) (*service.CoachService, *fakeWorkspace) {
	t.Helper()
	store := coachout.NewFileStateStore(docstore.New(t.TempDir(), nil), nil, nil)
	ws := &fakeWorkspace{}
	return service.NewCoachService(clock.Fixed(fixedNow), store, pages, ws, nil), ws
}

func initialized(t *testing.T, pages *fakePages) *service.CoachService {
	t.Helper()
	svc, _ := newService(t, pages)
	if _, _, err := svc.Init(context.Background(), false); err != nil {
		t.Fatalf("init: %v", err)
	}
	return svc
}

func TestInitRefusesToOverwriteWithoutForce(t *testing.T) {
	t.Parallel()
	svc, ws := newService(t, nil)
	state, created, err := svc.Init(context.Background(), false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if state.GovernanceThresholds.CalibrationGate.Current != 80 || len(created) != 1 || ws.calls != 1 {
		t.Fatalf("unexpected init result %+v %v", state.GovernanceThresholds, created)
	}
	if _, _, err := svc.Init(context.Background(), false); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("second init without force should fail, got %v", err)
	}
	if _, _, err := svc.Init(context.Background(), true); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}

func TestLoadBeforeInitHintsAtInit(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, nil)
	_, err := svc.Load(context.Background())
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if hints := apperrors.FlattenHints(err); hints != "run 'osl init' first" {
		t.Fatalf("unexpected hint %q", hints)
	}
}

func TestAddBookDerivesIDAndRejectsDuplicates(t *testing.T) {
	t.Parallel()
	svc := initialized(t, nil)
	book, err := svc.AddBook(context.Background(), "The Go Programming Language", "Donovan", 380, 0, "")
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	if book.ID != "the_go_programming_language_2026" || !book.StartDate.Equal(fixedNow) {
		t.Fatalf("unexpected book %+v", book)
	}
	if _, err := svc.AddBook(context.Background(), "The Go Programming Language", "", 380, 0, ""); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("duplicate book should fail, got %v", err)
	}
	if _, err := svc.AddBook(context.Background(), "Overflow", "", 10, 11, ""); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("current page past total should fail, got %v", err)
	}
}

func TestAddBookCountsPDFPages(t *testing.T) {
	t.Parallel()
	pages := &fakePages{count: 212}
	svc := initialized(t, pages)
	book, err := svc.AddBook(context.Background(), "Designing Data-Intensive Applications", "Kleppmann", 0, 0, "/books/ddia.pdf")
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	if book.TotalPages != 212 || pages.path != "/books/ddia.pdf" {
		t.Fatalf("pdf page count not used: %+v", book)
	}
}

func TestTuneThresholdStaysWithinRange(t *testing.T) {
	t.Parallel()
	svc := initialized(t, nil)
	name, tuned, err := svc.TuneThreshold(context.Background(), "calibration", 83)
	if err != nil {
		t.Fatalf("tune: %v", err)
	}
	if name != domain.ThresholdCalibration || tuned.Current != 83 {
		t.Fatalf("unexpected tune result %s %+v", name, tuned)
	}
	if _, _, err := svc.TuneThreshold(context.Background(), "calibration", 90); !apperrors.Is(err, apperrors.ErrThresholdOutOfRange) {
		t.Fatalf("out of range value should fail, got %v", err)
	}
	state, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.GovernanceThresholds.CalibrationGate.Current != 83 {
		t.Fatalf("rejected tune must not be persisted: %+v", state.GovernanceThresholds.CalibrationGate)
	}
}

func TestRecordSessionUpdatesBookAndMetrics(t *testing.T) {
	t.Parallel()
	svc := initialized(t, nil)
	book, err := svc.AddBook(context.Background(), "Concurrency in Go", "Cox-Buday", 100, 90, "")
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	first := 80.0
	if _, err := svc.RecordSession(context.Background(), service.SessionSummary{
		BookID: book.ID, Hours: 1.5, PagesRead: 5, RetrievalAverage: &first, FlashcardsCreated: 6, PermanentNotes: 2,
	}); err != nil {
		t.Fatalf("record first session: %v", err)
	}
	second := 90.0
	updated, err := svc.RecordSession(context.Background(), service.SessionSummary{
		BookID: book.ID, Hours: 0.5, PagesRead: 20, RetrievalAverage: &second, FlashcardsCreated: 2, Interleaving: true,
	})
	if err != nil {
		t.Fatalf("record second session: %v", err)
	}
	if updated.SessionsCompleted != 2 || updated.TotalHours != 2 || updated.CurrentPage != 100 {
		t.Fatalf("book progress not folded in: %+v", updated)
	}
	if math.Abs(updated.AvgRetrievalScore-83) > 1e-9 {
		t.Fatalf("rolling average = %v", updated.AvgRetrievalScore)
	}
	state, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m := state.PerformanceMetrics
	if m.CardsCompletedToday != 8 || m.TotalFlashcards != 8 || m.TotalPermanentNotes != 2 || m.InterleavingSessionsWeek != 1 {
		t.Fatalf("metrics not updated: %+v", m)
	}
	if _, err := svc.RecordSession(context.Background(), service.SessionSummary{BookID: "missing"}); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unknown book should be not found, got %v", err)
	}
}

func TestRecordTransferProjectStampsBookAndMetrics(t *testing.T) {
	t.Parallel()
	svc := initialized(t, nil)
	book, err := svc.AddBook(context.Background(), "SICP", "Abelson", 600, 0, "")
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	updated, err := svc.RecordTransferProject(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("record project: %v", err)
	}
	if updated.LastTransferProject == nil || !updated.LastTransferProject.Equal(fixedNow) {
		t.Fatalf("book not stamped: %+v", updated)
	}
	state, _ := svc.Load(context.Background())
	if state.PerformanceMetrics.LastTransferProject == nil {
		t.Fatalf("global project date not stamped")
	}
}

func TestUpdateMetricsAndMisconceptionCounters(t *testing.T) {
	t.Parallel()
	svc := initialized(t, nil)
	due, throughput := 90, 45
	metrics, err := svc.UpdateMetrics(context.Background(), service.MetricsPatch{CardsDue: &due, DailyReviewThroughput: &throughput})
	if err != nil {
		t.Fatalf("update metrics: %v", err)
	}
	if metrics.CurrentCardDebtRatio != 2 {
		t.Fatalf("debt ratio = %v", metrics.CurrentCardDebtRatio)
	}
	bad := 120.0
	if _, err := svc.UpdateMetrics(context.Background(), service.MetricsPatch{AvgRetrieval7d: &bad}); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("percentage above 100 should fail, got %v", err)
	}

	if _, err := svc.RecordMisconceptions(context.Background(), 2, 0); err != nil {
		t.Fatalf("identify: %v", err)
	}
	metrics, err = svc.RecordMisconceptions(context.Background(), 0, 3)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if metrics.MisconceptionsActive != 0 || metrics.MisconceptionsResolved != 3 {
		t.Fatalf("counters = %d active / %d resolved", metrics.MisconceptionsActive, metrics.MisconceptionsResolved)
	}
}

func TestBookID(t *testing.T) {
	t.Parallel()
	if got := service.BookID("  Clean Code!  ", 2025); got != "clean_code_2025" {
		t.Fatalf("BookID = %q", got)
	}
	if got := service.BookID("???", 2025); got != "untitled_2025" {
		t.Fatalf("symbol-only titles should fall back to untitled, got %q", got)
	}
}
