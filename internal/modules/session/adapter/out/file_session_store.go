package out

import (
	"context"

	"go.uber.org/zap"

	"osl/internal/modules/session/domain"
	sessionout "osl/internal/modules/session/port/out"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/logging"
)

// FileSessionStore keeps the current session and its archive in the state directory.
type FileSessionStore struct {
	store    *docstore.Store
	migrator sessionout.Migrator
	logger   *zap.Logger
}

func NewFileSessionStore(store *docstore.Store, migrator sessionout.Migrator, logger *zap.Logger) sessionout.SessionStore {
	return &FileSessionStore{store: store, migrator: migrator, logger: logging.OrNop(logger)}
}

func (s *FileSessionStore) HasCurrent(_ context.Context) bool {
	return s.store.Exists(domain.DocumentName)
}

func (s *FileSessionStore) LoadCurrent(ctx context.Context) (domain.Session, error) {
	if err := s.ensureCurrent(ctx, s.store.Path(domain.DocumentName)); err != nil {
		return domain.Session{}, err
	}
	session := domain.Session{}
	if err := s.store.Load(domain.DocumentName, &session); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return domain.Session{}, apperrors.WithHint(
				apperrors.Mark(err, apperrors.ErrNoActiveSession),
				"start one with 'osl session start'",
			)
		}
		return domain.Session{}, err
	}
	if err := session.Validate(); err != nil {
		return domain.Session{}, apperrors.Wrap(err, "current session on disk is invalid")
	}
	return session, nil
}

func (s *FileSessionStore) SaveCurrent(_ context.Context, session domain.Session) error {
	if err := session.Validate(); err != nil {
		return apperrors.Wrap(err, "refusing to save session")
	}
	return s.store.Save(domain.DocumentName, session)
}

// ClearCurrent moves the slot aside rather than deleting it.
func (s *FileSessionStore) ClearCurrent(_ context.Context) error {
	return s.store.Clear(domain.DocumentName)
}

func (s *FileSessionStore) Archive(_ context.Context, session domain.Session) (string, error) {
	if err := session.Validate(); err != nil {
		return "", apperrors.Wrap(err, "refusing to archive session")
	}
	if err := s.store.Archive(session.SessionID, session); err != nil {
		return "", err
	}
	return s.store.ArchivePath(session.SessionID), nil
}

func (s *FileSessionStore) ArchivePath(id string) string {
	return s.store.ArchivePath(id)
}

func (s *FileSessionStore) LoadArchive(ctx context.Context, id string) (domain.Session, error) {
	if err := docstore.ValidateKey(id); err != nil {
		return domain.Session{}, err
	}
	if err := s.ensureCurrent(ctx, s.store.ArchivePath(id)); err != nil {
		return domain.Session{}, err
	}
	session := domain.Session{}
	if err := s.store.LoadArchive(id, &session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

func (s *FileSessionStore) ListArchives(_ context.Context) ([]string, error) {
	return s.store.ListArchives()
}

func (s *FileSessionStore) ensureCurrent(ctx context.Context, path string) error {
	if s.migrator == nil {
		return nil
	}
	if err := s.migrator.EnsureCurrent(ctx, path); err != nil {
		return apperrors.Wrap(err, "migrate session document")
	}
	return nil
}
