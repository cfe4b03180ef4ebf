package usecase

import (
	"context"
	"sort"

	"osl/internal/modules/migration/domain"
	"osl/internal/modules/migration/dto"
	migrationin "osl/internal/modules/migration/port/in"
	"osl/internal/modules/migration/service"
)

type Interactor struct {
	svc      *service.MigrationService
	stateDir string
}

func NewInteractor(svc *service.MigrationService, stateDir string) migrationin.Usecase {
	return &Interactor{svc: svc, stateDir: stateDir}
}

func (i *Interactor) MigrateFile(ctx context.Context, path string) (dto.FileOutput, error) {
	result := i.svc.MigrateFile(ctx, path)
	return toFileOutput(result), result.Err
}

func (i *Interactor) MigrateAll(ctx context.Context) (dto.MigrateAllOutput, error) {
	results, err := i.svc.MigrateAll(ctx, i.stateDir)
	out := dto.MigrateAllOutput{CurrentVersion: i.svc.Current(), Files: []dto.FileOutput{}}
	for _, path := range service.SortedPaths(results) {
		file := toFileOutput(results[path])
		if file.Error != "" {
			out.Failed++
		}
		out.Files = append(out.Files, file)
	}
	return out, err
}

func (i *Interactor) Pending(ctx context.Context) ([]dto.PendingOutput, error) {
	pending, err := i.svc.Pending(ctx, i.stateDir)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PendingOutput, 0, len(pending))
	for path, version := range pending {
		out = append(out, dto.PendingOutput{Path: path, Version: version})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Path < out[b].Path })
	return out, nil
}

func (i *Interactor) Report(ctx context.Context) (dto.ReportOutput, error) {
	report, err := i.svc.Report(ctx)
	if err != nil {
		return dto.ReportOutput{}, err
	}
	return dto.ReportOutput{
		CurrentVersion: report.CurrentVersion,
		Total:          report.Total,
		Successful:     report.Successful,
		Failed:         report.Failed,
		LastMigration:  report.LastMigration,
		FilesMigrated:  report.FilesMigrated,
		Files:          report.Files,
	}, nil
}

// EnsureCurrent is the load-time hook used by the coach and session stores.
func (i *Interactor) EnsureCurrent(ctx context.Context, path string) error {
	return i.svc.EnsureCurrent(ctx, path)
}

func toFileOutput(result domain.FileResult) dto.FileOutput {
	out := dto.FileOutput{
		Path:        result.Path,
		FromVersion: result.FromVersion,
		ToVersion:   result.ToVersion,
		Migrated:    result.Migrated,
		Backup:      result.Backup,
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	return out
}
