package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"osl/internal/modules/coach/domain"
	coachout "osl/internal/modules/coach/port/out"
	"osl/internal/platform/clock"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/logging"
	"osl/internal/platform/slug"
)

// retrievalWeight is the share of the previous book average kept when a new session score arrives.
const retrievalWeight = 0.7

type CoachService struct {
	clock     clock.Clock
	store     coachout.StateStore
	pages     coachout.PageCounter
	workspace coachout.Workspace
	logger    *zap.Logger
}

func NewCoachService(clock clock.Clock, store coachout.StateStore, pages coachout.PageCounter, workspace coachout.Workspace, logger *zap.Logger) *CoachService {
	return &CoachService{clock: clock, store: store, pages: pages, workspace: workspace, logger: logging.OrNop(logger)}
}

// Init writes a default coach document, refusing to replace an existing one unless force is set.
func (s *CoachService) Init(ctx context.Context, force bool) (domain.CoachState, []string, error) {
	if s.store.Exists(ctx) && !force {
		return domain.CoachState{}, nil, apperrors.WithHint(
			apperrors.Wrap(apperrors.ErrInvalidInput, "coach state already exists"),
			"pass --force to reset it",
		)
	}
	created := []string{}
	if s.workspace != nil {
		dirs, err := s.workspace.Scaffold(ctx)
		if err != nil {
			return domain.CoachState{}, nil, err
		}
		created = dirs
	}
	state := domain.NewCoachState(s.clock.Now())
	if err := s.store.Save(ctx, state); err != nil {
		return domain.CoachState{}, nil, err
	}
	s.logger.Info("coach state initialized", zap.Bool("force", force), zap.Int("dirs", len(created)))
	return state, created, nil
}

func (s *CoachService) Load(ctx context.Context) (domain.CoachState, error) {
	return s.store.Load(ctx)
}

func (s *CoachService) Book(ctx context.Context, id string) (domain.BookRecord, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return domain.BookRecord{}, err
	}
	book, ok := state.Book(id)
	if !ok {
		return domain.BookRecord{}, apperrors.WithHint(
			apperrors.Wrapf(apperrors.ErrNotFound, "book %s", id),
			"list books with 'osl state'",
		)
	}
	return *book, nil
}

func (s *CoachService) AddBook(ctx context.Context, title, author string, totalPages, currentPage int, pdfPath string) (domain.BookRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.BookRecord{}, apperrors.Wrap(apperrors.ErrInvalidInput, "book title is required")
	}
	if pdfPath != "" && totalPages == 0 {
		if s.pages == nil {
			return domain.BookRecord{}, apperrors.Wrap(apperrors.ErrInvalidInput, "page counting is not configured")
		}
		counted, err := s.pages.CountPages(ctx, pdfPath)
		if err != nil {
			return domain.BookRecord{}, err
		}
		totalPages = counted
	}
	state, err := s.store.Load(ctx)
	if err != nil {
		return domain.BookRecord{}, err
	}
	now := s.clock.Now()
	book := domain.BookRecord{
		ID:          BookID(title, now.Year()),
		Title:       title,
		Author:      strings.TrimSpace(author),
		StartDate:   now,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
	}
	if _, exists := state.Book(book.ID); exists {
		return domain.BookRecord{}, apperrors.Wrapf(apperrors.ErrInvalidInput, "book %s already tracked", book.ID)
	}
	if err := book.Validate(); err != nil {
		return domain.BookRecord{}, apperrors.Mark(err, apperrors.ErrInvalidInput)
	}
	state.ActiveBooks = append(state.ActiveBooks, book)
	state.LastUpdated = now
	if err := s.store.Save(ctx, state); err != nil {
		return domain.BookRecord{}, err
	}
	s.logger.Info("book added", zap.String("book_id", book.ID), zap.Int("pages", book.TotalPages))
	return book, nil
}

// BookID derives the stable identifier of a book from its title and the year tracking started.
func BookID(title string, year int) string {
	return slug.WithSeparator(title, "_") + "_" + strconv.Itoa(year)
}

func (s *CoachService) TuneThreshold(ctx context.Context, rawName string, value float64) (domain.ThresholdName, domain.GovernanceThreshold, error) {
	name, err := domain.ParseThresholdName(rawName)
	if err != nil {
		return "", domain.GovernanceThreshold{}, err
	}
	state, err := s.store.Load(ctx)
	if err != nil {
		return "", domain.GovernanceThreshold{}, err
	}
	current, err := state.GovernanceThresholds.Get(name)
	if err != nil {
		return "", domain.GovernanceThreshold{}, err
	}
	now := s.clock.Now()
	tuned, err := current.Tune(value, now)
	if err != nil {
		return "", domain.GovernanceThreshold{}, err
	}
	previous := current.Current
	*current = tuned
	state.LastUpdated = now
	if err := s.store.Save(ctx, state); err != nil {
		return "", domain.GovernanceThreshold{}, err
	}
	s.logger.Info("threshold tuned", zap.String("name", string(name)), zap.Float64("from", previous), zap.Float64("to", value))
	return name, tuned, nil
}

// MetricsPatch carries the metric fields a caller wants to overwrite.
type MetricsPatch struct {
	AvgRetrieval7d           *float64
	AvgPredictionAccuracy7d  *float64
	DailyReviewThroughput    *int
	CardsDue                 *int
	InterleavingSessionsWeek *int
}

func (s *CoachService) UpdateMetrics(ctx context.Context, patch MetricsPatch) (domain.PerformanceMetrics, error) {
	for _, v := range []*int{patch.DailyReviewThroughput, patch.CardsDue, patch.InterleavingSessionsWeek} {
		if v != nil && *v < 0 {
			return domain.PerformanceMetrics{}, apperrors.Wrap(apperrors.ErrInvalidInput, "metric counts must be non-negative")
		}
	}
	for _, v := range []*float64{patch.AvgRetrieval7d, patch.AvgPredictionAccuracy7d} {
		if v != nil && (*v < 0 || *v > 100) {
			return domain.PerformanceMetrics{}, apperrors.Wrap(apperrors.ErrInvalidInput, "percentages must be within [0, 100]")
		}
	}
	state, err := s.store.Load(ctx)
	if err != nil {
		return domain.PerformanceMetrics{}, err
	}
	m := &state.PerformanceMetrics
	if patch.AvgRetrieval7d != nil {
		m.AvgRetrieval7d = *patch.AvgRetrieval7d
	}
	if patch.AvgPredictionAccuracy7d != nil {
		m.AvgPredictionAccuracy7d = *patch.AvgPredictionAccuracy7d
	}
	if patch.DailyReviewThroughput != nil {
		m.DailyReviewThroughput = *patch.DailyReviewThroughput
	}
	if patch.CardsDue != nil {
		m.CardsDue = *patch.CardsDue
	}
	if patch.InterleavingSessionsWeek != nil {
		m.InterleavingSessionsWeek = *patch.InterleavingSessionsWeek
	}
	m.CurrentCardDebtRatio = m.CardDebtRatio()
	state.LastUpdated = s.clock.Now()
	if err := s.store.Save(ctx, state); err != nil {
		return domain.PerformanceMetrics{}, err
	}
	return state.PerformanceMetrics, nil
}

func (s *CoachService) RecordTransferProject(ctx context.Context, bookID string) (domain.BookRecord, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return domain.BookRecord{}, err
	}
	book, ok := state.Book(bookID)
	if !ok {
		return domain.BookRecord{}, apperrors.Wrapf(apperrors.ErrNotFound, "book %s", bookID)
	}
	now := s.clock.Now()
	book.LastTransferProject = &now
	state.PerformanceMetrics.LastTransferProject = &now
	state.LastUpdated = now
	if err := s.store.Save(ctx, state); err != nil {
		return domain.BookRecord{}, err
	}
	s.logger.Info("transfer project recorded", zap.String("book_id", bookID))
	return *book, nil
}

// SessionSummary is what a finished study session contributes to the coach record.
type SessionSummary struct {
	BookID            string
	Hours             float64
	PagesRead         int
	RetrievalAverage  *float64
	FlashcardsCreated int
	PermanentNotes    int
	Interleaving      bool
}

// RecordSession folds a finished session into its book record and the global metrics.
func (s *CoachService) RecordSession(ctx context.Context, summary SessionSummary) (domain.BookRecord, error) {
	if summary.Hours < 0 || summary.PagesRead < 0 || summary.FlashcardsCreated < 0 || summary.PermanentNotes < 0 {
		return domain.BookRecord{}, apperrors.Wrap(apperrors.ErrInvalidInput, "session summary values must be non-negative")
	}
	state, err := s.store.Load(ctx)
	if err != nil {
		return domain.BookRecord{}, err
	}
	book, ok := state.Book(summary.BookID)
	if !ok {
		return domain.BookRecord{}, apperrors.Wrapf(apperrors.ErrNotFound, "book %s", summary.BookID)
	}
	now := s.clock.Now()
	book.SessionsCompleted++
	book.TotalHours += summary.Hours
	book.LastSession = &now
	book.CurrentPage += summary.PagesRead
	if book.TotalPages > 0 && book.CurrentPage > book.TotalPages {
		book.CurrentPage = book.TotalPages
	}
	if summary.RetrievalAverage != nil {
		score := *summary.RetrievalAverage
		if book.AvgRetrievalScore == 0 {
			book.AvgRetrievalScore = score
		} else {
			book.AvgRetrievalScore = retrievalWeight*book.AvgRetrievalScore + (1-retrievalWeight)*score
		}
	}

	m := &state.PerformanceMetrics
	m.CardsCompletedToday += summary.FlashcardsCreated
	m.TotalFlashcards += summary.FlashcardsCreated
	m.TotalPermanentNotes += summary.PermanentNotes
	if summary.Interleaving {
		m.InterleavingSessionsWeek++
	}
	state.LastUpdated = now
	if err := s.store.Save(ctx, state); err != nil {
		return domain.BookRecord{}, err
	}
	s.logger.Info("session recorded",
		zap.String("book_id", book.ID),
		zap.Int("sessions_completed", book.SessionsCompleted),
		zap.Int("current_page", book.CurrentPage),
	)
	return *book, nil
}

// RecordMisconceptions moves the misconception counters; active never drops below zero.
func (s *CoachService) RecordMisconceptions(ctx context.Context, identified, resolved int) (domain.PerformanceMetrics, error) {
	if identified < 0 || resolved < 0 {
		return domain.PerformanceMetrics{}, apperrors.Wrap(apperrors.ErrInvalidInput, "misconception counts must be non-negative")
	}
	state, err := s.store.Load(ctx)
	if err != nil {
		return domain.PerformanceMetrics{}, err
	}
	m := &state.PerformanceMetrics
	m.MisconceptionsActive += identified - resolved
	if m.MisconceptionsActive < 0 {
		m.MisconceptionsActive = 0
	}
	m.MisconceptionsResolved += resolved
	state.LastUpdated = s.clock.Now()
	if err := s.store.Save(ctx, state); err != nil {
		return domain.PerformanceMetrics{}, err
	}
	return state.PerformanceMetrics, nil
}
