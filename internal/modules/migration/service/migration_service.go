package service

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"osl/internal/modules/migration/domain"
	migrationout "osl/internal/modules/migration/port/out"
	"osl/internal/platform/clock"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/logging"
)

type MigrationService struct {
	clock    clock.Clock
	registry domain.Registry
	files    migrationout.DocumentFiles
	log      migrationout.LogStore
	logger   *zap.Logger
}

func NewMigrationService(clock clock.Clock, registry domain.Registry, files migrationout.DocumentFiles, log migrationout.LogStore, logger *zap.Logger) *MigrationService {
	return &MigrationService{
		clock:    clock,
		registry: registry,
		files:    files,
		log:      log,
		logger:   logging.OrNop(logger).Named("migration"),
	}
}

func (s *MigrationService) Current() string {
	return s.registry.Current()
}

// MigrateFile brings the document at path to the current version. A document that is
// already current is left untouched. Any failure after the backup restores the
// original bytes and is recorded in the migration log.
func (s *MigrationService) MigrateFile(ctx context.Context, path string) domain.FileResult {
	result := domain.FileResult{Path: path, ToVersion: s.registry.Current()}

	raw, err := s.files.Read(path)
	if err != nil {
		result.Err = err
		return result
	}
	doc := domain.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		result.Err = apperrors.Mark(apperrors.Wrapf(err, "decode %s", path), apperrors.ErrValidationFailure)
		s.record(ctx, result)
		return result
	}
	result.FromVersion = domain.VersionOf(doc)
	if !s.registry.NeedsMigration(doc) {
		return result
	}

	backup, err := s.files.Backup(path, result.FromVersion)
	if err != nil {
		result.Err = err
		s.record(ctx, result)
		return result
	}
	result.Backup = backup

	if err := s.apply(path, doc); err != nil {
		result.Err = err
		if restoreErr := s.restore(path, backup, raw); restoreErr != nil {
			result.Err = apperrors.WithDetailf(err, "restore failed: %v", restoreErr)
		}
		s.logger.Error("migration failed",
			zap.String("file", path),
			zap.String("from", result.FromVersion),
			zap.Error(err),
		)
		s.record(ctx, result)
		return result
	}

	result.Migrated = true
	s.logger.Info("document migrated",
		zap.String("file", path),
		zap.String("from", result.FromVersion),
		zap.String("to", result.ToVersion),
		zap.String("backup", backup),
	)
	s.record(ctx, result)
	return result
}

func (s *MigrationService) apply(path string, doc domain.Document) error {
	migrated, err := s.registry.Migrate(doc, "", s.clock.Now())
	if err != nil {
		return apperrors.Wrapf(err, "migrate %s", path)
	}
	payload, err := docstore.Encode(migrated)
	if err != nil {
		return apperrors.Wrapf(err, "encode %s", path)
	}
	return s.files.Write(path, payload)
}

// restore rewrites path from backup only when the visible bytes differ from the original.
func (s *MigrationService) restore(path, backup string, original []byte) error {
	current, err := s.files.Read(path)
	if err == nil && string(current) == string(original) {
		return nil
	}
	return s.files.Restore(backup, path)
}

func (s *MigrationService) record(ctx context.Context, result domain.FileResult) {
	entry := domain.LogEntry{
		Timestamp:   s.clock.Now(),
		File:        result.Path,
		FromVersion: result.FromVersion,
		ToVersion:   result.ToVersion,
		Success:     result.Err == nil,
	}
	if result.Err != nil {
		msg := result.Err.Error()
		entry.Error = &msg
	}
	if err := s.log.Append(ctx, entry); err != nil {
		s.logger.Warn("migration log append failed", zap.String("file", result.Path), zap.Error(err))
	}
}

// MigrateAll migrates every known document under stateDir. One file failing does
// not stop the others.
func (s *MigrationService) MigrateAll(ctx context.Context, stateDir string) (map[string]domain.FileResult, error) {
	paths, err := s.files.Discover(stateDir)
	if err != nil {
		return nil, err
	}
	results := make(map[string]domain.FileResult, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results[path] = s.MigrateFile(ctx, path)
	}
	return results, nil
}

// Pending reports the version of every document under stateDir that is not current.
func (s *MigrationService) Pending(_ context.Context, stateDir string) (map[string]string, error) {
	paths, err := s.files.Discover(stateDir)
	if err != nil {
		return nil, err
	}
	pending := map[string]string{}
	for _, path := range paths {
		raw, err := s.files.Read(path)
		if err != nil {
			return nil, err
		}
		doc := domain.Document{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, apperrors.Wrapf(err, "decode %s", path)
		}
		if s.registry.NeedsMigration(doc) {
			pending[path] = domain.VersionOf(doc)
		}
	}
	return pending, nil
}

// EnsureCurrent migrates path when needed. A missing file is not an error here;
// the caller's own load reports it.
func (s *MigrationService) EnsureCurrent(ctx context.Context, path string) error {
	if !s.files.Exists(path) {
		return nil
	}
	return s.MigrateFile(ctx, path).Err
}

func (s *MigrationService) Report(ctx context.Context) (domain.Report, error) {
	log, err := s.log.Load(ctx)
	if err != nil {
		return domain.Report{}, err
	}
	return domain.BuildReport(log, s.registry.Current()), nil
}

// SortedPaths returns result keys in lexical order for stable output.
func SortedPaths(results map[string]domain.FileResult) []string {
	paths := make([]string, 0, len(results))
	for path := range results {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
