package in

import (
	"context"

	"osl/internal/modules/coach/dto"
	coachin "osl/internal/modules/coach/port/in"
)

type CLIHandler struct {
	usecase coachin.Usecase
}

func NewCLIHandler(usecase coachin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Init(ctx context.Context, force bool) (dto.InitOutput, error) {
	return h.usecase.Init(ctx, dto.InitInput{Force: force})
}

func (h CLIHandler) Show(ctx context.Context) (dto.StateOutput, error) {
	return h.usecase.Show(ctx)
}

func (h CLIHandler) GetBook(ctx context.Context, id string) (dto.BookOutput, error) {
	return h.usecase.GetBook(ctx, id)
}

func (h CLIHandler) AddBook(ctx context.Context, title, author string, pages, currentPage int, pdfPath string) (dto.BookOutput, error) {
	return h.usecase.AddBook(ctx, dto.AddBookInput{
		Title:       title,
		Author:      author,
		TotalPages:  pages,
		CurrentPage: currentPage,
		PDFPath:     pdfPath,
	})
}

func (h CLIHandler) TuneThreshold(ctx context.Context, name string, value float64) (dto.ThresholdOutput, error) {
	return h.usecase.TuneThreshold(ctx, dto.TuneThresholdInput{Name: name, Value: value})
}

func (h CLIHandler) UpdateMetrics(ctx context.Context, input dto.MetricsInput) (dto.MetricsOutput, error) {
	return h.usecase.UpdateMetrics(ctx, input)
}

func (h CLIHandler) RecordTransferProject(ctx context.Context, bookID string) (dto.BookOutput, error) {
	return h.usecase.RecordTransferProject(ctx, bookID)
}
