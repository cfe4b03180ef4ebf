package in

import (
	"context"

	sessiondto "osl/internal/modules/session/dto"
	sessionin "osl/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, book, sessionType string) (sessiondto.StartOutput, error) {
	return h.usecase.Start(ctx, sessiondto.StartInput{Book: book, Type: sessionType})
}

func (h CLIHandler) GetActive(ctx context.Context) (sessiondto.ActiveSessionOutput, error) {
	return h.usecase.GetActive(ctx)
}

func (h CLIHandler) Transition(ctx context.Context, to string, input map[string]any) (sessiondto.TransitionOutput, error) {
	return h.usecase.Transition(ctx, sessiondto.TransitionInput{To: to, Context: input})
}

func (h CLIHandler) NextActions(ctx context.Context) (sessiondto.NextActionsOutput, error) {
	return h.usecase.NextActions(ctx)
}

func (h CLIHandler) CheckTimeout(ctx context.Context) (sessiondto.TimeoutOutput, error) {
	return h.usecase.CheckTimeout(ctx)
}

func (h CLIHandler) RecordMisconception(ctx context.Context, description, source string) (sessiondto.MisconceptionOutput, error) {
	return h.usecase.RecordMisconception(ctx, sessiondto.MisconceptionInput{Description: description, Source: source})
}

func (h CLIHandler) ResolveMisconception(ctx context.Context, id, correction string) (sessiondto.MisconceptionOutput, error) {
	return h.usecase.ResolveMisconception(ctx, sessiondto.ResolveMisconceptionInput{ID: id, Correction: correction})
}

func (h CLIHandler) End(ctx context.Context, force bool) (sessiondto.EndOutput, error) {
	return h.usecase.End(ctx, sessiondto.EndInput{Force: force})
}

func (h CLIHandler) Reindex(ctx context.Context) (int, error) {
	return h.usecase.Reindex(ctx)
}

func (h CLIHandler) BookStats(ctx context.Context, bookID string) (sessiondto.BookStatsOutput, error) {
	return h.usecase.BookStats(ctx, bookID)
}

func (h CLIHandler) Recent(ctx context.Context, limit int) ([]sessiondto.IndexedSessionOutput, error) {
	return h.usecase.Recent(ctx, limit)
}
