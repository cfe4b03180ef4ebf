package in

import (
	"context"

	"osl/internal/modules/migration/dto"
	migrationin "osl/internal/modules/migration/port/in"
)

type CLIHandler struct {
	usecase migrationin.Usecase
}

func NewCLIHandler(usecase migrationin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Run(ctx context.Context) (dto.MigrateAllOutput, error) {
	return h.usecase.MigrateAll(ctx)
}

func (h CLIHandler) Pending(ctx context.Context) ([]dto.PendingOutput, error) {
	return h.usecase.Pending(ctx)
}

func (h CLIHandler) Report(ctx context.Context) (dto.ReportOutput, error) {
	return h.usecase.Report(ctx)
}

func (h CLIHandler) File(ctx context.Context, path string) (dto.FileOutput, error) {
	return h.usecase.MigrateFile(ctx, path)
}
