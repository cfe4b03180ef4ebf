package in

import (
	"context"

	"osl/internal/modules/coach/dto"
)

type Usecase interface {
	Init(ctx context.Context, input dto.InitInput) (dto.InitOutput, error)
	Show(ctx context.Context) (dto.StateOutput, error)
	GetBook(ctx context.Context, id string) (dto.BookOutput, error)
	AddBook(ctx context.Context, input dto.AddBookInput) (dto.BookOutput, error)
	TuneThreshold(ctx context.Context, input dto.TuneThresholdInput) (dto.ThresholdOutput, error)
	UpdateMetrics(ctx context.Context, input dto.MetricsInput) (dto.MetricsOutput, error)
	RecordTransferProject(ctx context.Context, bookID string) (dto.BookOutput, error)
	RecordSession(ctx context.Context, input dto.SessionSummaryInput) (dto.BookOutput, error)
	RecordMisconceptions(ctx context.Context, input dto.MisconceptionDeltaInput) (dto.MetricsOutput, error)
}
