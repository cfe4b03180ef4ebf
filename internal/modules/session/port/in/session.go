package in

import (
	"context"

	"osl/internal/modules/session/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.StartOutput, error)
	GetActive(ctx context.Context) (dto.ActiveSessionOutput, error)
	Transition(ctx context.Context, input dto.TransitionInput) (dto.TransitionOutput, error)
	NextActions(ctx context.Context) (dto.NextActionsOutput, error)
	CheckTimeout(ctx context.Context) (dto.TimeoutOutput, error)
	RecordMisconception(ctx context.Context, input dto.MisconceptionInput) (dto.MisconceptionOutput, error)
	ResolveMisconception(ctx context.Context, input dto.ResolveMisconceptionInput) (dto.MisconceptionOutput, error)
	End(ctx context.Context, input dto.EndInput) (dto.EndOutput, error)
	Reindex(ctx context.Context) (int, error)
	BookStats(ctx context.Context, bookID string) (dto.BookStatsOutput, error)
	Recent(ctx context.Context, limit int) ([]dto.IndexedSessionOutput, error)
}
