package out

import (
	"context"

	"go.uber.org/zap"

	"osl/internal/modules/coach/domain"
	coachout "osl/internal/modules/coach/port/out"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/logging"
)

// FileStateStore keeps the coach document in the state directory.
type FileStateStore struct {
	store    *docstore.Store
	migrator coachout.Migrator
	logger   *zap.Logger
}

func NewFileStateStore(store *docstore.Store, migrator coachout.Migrator, logger *zap.Logger) coachout.StateStore {
	return &FileStateStore{store: store, migrator: migrator, logger: logging.OrNop(logger)}
}

func (s *FileStateStore) Exists(_ context.Context) bool {
	return s.store.Exists(domain.DocumentName)
}

func (s *FileStateStore) Load(ctx context.Context) (domain.CoachState, error) {
	if s.migrator != nil {
		if err := s.migrator.EnsureCurrent(ctx, s.store.Path(domain.DocumentName)); err != nil {
			return domain.CoachState{}, apperrors.Wrap(err, "migrate coach state")
		}
	}
	state := domain.CoachState{}
	if err := s.store.Load(domain.DocumentName, &state); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return domain.CoachState{}, apperrors.NotInitialized(err, "coach state")
		}
		return domain.CoachState{}, err
	}
	if state.ActiveBooks == nil {
		state.ActiveBooks = []domain.BookRecord{}
	}
	if err := state.Validate(); err != nil {
		return domain.CoachState{}, apperrors.Wrap(err, "coach state on disk is invalid")
	}
	return state, nil
}

// Save refuses documents that violate their invariants; nothing invalid reaches disk.
func (s *FileStateStore) Save(_ context.Context, state domain.CoachState) error {
	if err := state.Validate(); err != nil {
		return apperrors.Wrap(err, "refusing to save coach state")
	}
	if err := s.store.Save(domain.DocumentName, state); err != nil {
		return err
	}
	s.logger.Debug("coach state saved", zap.Int("books", len(state.ActiveBooks)), zap.String("overall", string(state.GovernanceStatus.OverallState)))
	return nil
}
