package in

import (
	"context"

	"osl/internal/modules/migration/dto"
)

type Usecase interface {
	MigrateFile(ctx context.Context, path string) (dto.FileOutput, error)
	MigrateAll(ctx context.Context) (dto.MigrateAllOutput, error)
	Pending(ctx context.Context) ([]dto.PendingOutput, error)
	Report(ctx context.Context) (dto.ReportOutput, error)
	EnsureCurrent(ctx context.Context, path string) error
}
