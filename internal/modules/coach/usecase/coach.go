package usecase

import (
	"context"

	"osl/internal/modules/coach/domain"
	"osl/internal/modules/coach/dto"
	coachin "osl/internal/modules/coach/port/in"
	"osl/internal/modules/coach/service"
)

type Interactor struct {
	svc *service.CoachService
}

func NewInteractor(svc *service.CoachService) coachin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Init(ctx context.Context, input dto.InitInput) (dto.InitOutput, error) {
	state, created, err := i.svc.Init(ctx, input.Force)
	if err != nil {
		return dto.InitOutput{}, err
	}
	return dto.InitOutput{Version: state.Version, Created: created}, nil
}

func (i *Interactor) Show(ctx context.Context) (dto.StateOutput, error) {
	state, err := i.svc.Load(ctx)
	if err != nil {
		return dto.StateOutput{}, err
	}
	books := make([]dto.BookOutput, 0, len(state.ActiveBooks))
	for _, book := range state.ActiveBooks {
		books = append(books, toBookOutput(book))
	}
	t := state.GovernanceThresholds
	g := state.GovernanceStatus
	return dto.StateOutput{
		Version:     state.Version,
		LastUpdated: state.LastUpdated,
		Books:       books,
		Thresholds: []dto.ThresholdOutput{
			toThresholdOutput(domain.ThresholdCalibration, t.CalibrationGate),
			toThresholdOutput(domain.ThresholdCardDebt, t.CardDebtMultiplier),
			toThresholdOutput(domain.ThresholdMaxNewCards, t.MaxNewCards),
			toThresholdOutput(domain.ThresholdInterleaving, t.InterleavingPerWeek),
		},
		Governance: dto.GovernanceOutput{
			CalibrationGate:   string(g.CalibrationGate),
			CardDebtGate:      string(g.CardDebtGate),
			TransferGate:      string(g.TransferGate),
			InterleavingGate:  string(g.InterleavingGate),
			OverallState:      string(g.OverallState),
			RecoveryState:     string(g.RecoveryState),
			RemediationActive: g.RemediationActive,
			LastGateTrigger:   g.LastGateTrigger,
		},
		Metrics: toMetricsOutput(state.PerformanceMetrics),
	}, nil
}

func (i *Interactor) GetBook(ctx context.Context, id string) (dto.BookOutput, error) {
	book, err := i.svc.Book(ctx, id)
	if err != nil {
		return dto.BookOutput{}, err
	}
	return toBookOutput(book), nil
}

func (i *Interactor) AddBook(ctx context.Context, input dto.AddBookInput) (dto.BookOutput, error) {
	book, err := i.svc.AddBook(ctx, input.Title, input.Author, input.TotalPages, input.CurrentPage, input.PDFPath)
	if err != nil {
		return dto.BookOutput{}, err
	}
	return toBookOutput(book), nil
}

func (i *Interactor) TuneThreshold(ctx context.Context, input dto.TuneThresholdInput) (dto.ThresholdOutput, error) {
	name, threshold, err := i.svc.TuneThreshold(ctx, input.Name, input.Value)
	if err != nil {
		return dto.ThresholdOutput{}, err
	}
	return toThresholdOutput(name, threshold), nil
}

func (i *Interactor) UpdateMetrics(ctx context.Context, input dto.MetricsInput) (dto.MetricsOutput, error) {
	metrics, err := i.svc.UpdateMetrics(ctx, service.MetricsPatch{
		AvgRetrieval7d:           input.AvgRetrieval7d,
		AvgPredictionAccuracy7d:  input.AvgPredictionAccuracy7d,
		DailyReviewThroughput:    input.DailyReviewThroughput,
		CardsDue:                 input.CardsDue,
		InterleavingSessionsWeek: input.InterleavingSessionsWeek,
	})
	if err != nil {
		return dto.MetricsOutput{}, err
	}
	return toMetricsOutput(metrics), nil
}

func (i *Interactor) RecordTransferProject(ctx context.Context, bookID string) (dto.BookOutput, error) {
	book, err := i.svc.RecordTransferProject(ctx, bookID)
	if err != nil {
		return dto.BookOutput{}, err
	}
	return toBookOutput(book), nil
}

func (i *Interactor) RecordSession(ctx context.Context, input dto.SessionSummaryInput) (dto.BookOutput, error) {
	book, err := i.svc.RecordSession(ctx, service.SessionSummary{
		BookID:            input.BookID,
		Hours:             input.Duration.Hours(),
		PagesRead:         input.PagesRead,
		RetrievalAverage:  input.RetrievalAverage,
		FlashcardsCreated: input.FlashcardsCreated,
		PermanentNotes:    input.PermanentNotes,
		Interleaving:      input.Interleaving,
	})
	if err != nil {
		return dto.BookOutput{}, err
	}
	return toBookOutput(book), nil
}

func (i *Interactor) RecordMisconceptions(ctx context.Context, input dto.MisconceptionDeltaInput) (dto.MetricsOutput, error) {
	metrics, err := i.svc.RecordMisconceptions(ctx, input.Identified, input.Resolved)
	if err != nil {
		return dto.MetricsOutput{}, err
	}
	return toMetricsOutput(metrics), nil
}

func toBookOutput(book domain.BookRecord) dto.BookOutput {
	return dto.BookOutput{
		ID:                  book.ID,
		Title:               book.Title,
		Author:              book.Author,
		CurrentPage:         book.CurrentPage,
		TotalPages:          book.TotalPages,
		Progress:            book.Progress(),
		SessionsCompleted:   book.SessionsCompleted,
		TotalHours:          book.TotalHours,
		AvgRetrievalScore:   book.AvgRetrievalScore,
		LastSession:         book.LastSession,
		LastTransferProject: book.LastTransferProject,
	}
}

func toThresholdOutput(name domain.ThresholdName, t domain.GovernanceThreshold) dto.ThresholdOutput {
	return dto.ThresholdOutput{Name: string(name), Min: t.Min, Current: t.Current, Max: t.Max, LastAdjusted: t.LastAdjusted}
}

func toMetricsOutput(m domain.PerformanceMetrics) dto.MetricsOutput {
	return dto.MetricsOutput{
		AvgRetrieval7d:           m.AvgRetrieval7d,
		AvgPredictionAccuracy7d:  m.AvgPredictionAccuracy7d,
		CardDebtRatio:            m.CardDebtRatio(),
		DailyReviewThroughput:    m.DailyReviewThroughput,
		CardsDue:                 m.CardsDue,
		CardsCompletedToday:      m.CardsCompletedToday,
		InterleavingSessionsWeek: m.InterleavingSessionsWeek,
		TotalPermanentNotes:      m.TotalPermanentNotes,
		TotalFlashcards:          m.TotalFlashcards,
		MisconceptionsActive:     m.MisconceptionsActive,
		MisconceptionsResolved:   m.MisconceptionsResolved,
		LastTransferProject:      m.LastTransferProject,
	}
}
