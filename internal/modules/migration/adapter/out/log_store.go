package out

import (
	"context"

	"go.uber.org/zap"

	"osl/internal/modules/migration/domain"
	migrationout "osl/internal/modules/migration/port/out"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/logging"
)

// FileLogStore keeps the append-only migration log as a docstore document.
type FileLogStore struct {
	store   *docstore.Store
	current string
	logger  *zap.Logger
}

func NewFileLogStore(store *docstore.Store, current string, logger *zap.Logger) migrationout.LogStore {
	return &FileLogStore{store: store, current: current, logger: logging.OrNop(logger)}
}

func (s *FileLogStore) Load(_ context.Context) (domain.Log, error) {
	log := domain.Log{}
	if err := s.store.Load(domain.LogDocumentName, &log); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return domain.NewLog(s.current), nil
		}
		return domain.Log{}, err
	}
	if log.Migrations == nil {
		log.Migrations = []domain.LogEntry{}
	}
	return log, nil
}

func (s *FileLogStore) Append(ctx context.Context, entry domain.LogEntry) error {
	log, err := s.Load(ctx)
	if err != nil {
		return err
	}
	log = log.Append(entry)
	log.Version = s.current
	log.CurrentVersion = s.current
	if err := s.store.Save(domain.LogDocumentName, log); err != nil {
		return apperrors.Wrap(err, "append migration log")
	}
	s.logger.Debug("migration logged", zap.String("file", entry.File), zap.Bool("success", entry.Success))
	return nil
}
