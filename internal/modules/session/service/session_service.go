package service

import (
	"context"

	"go.uber.org/zap"

	"osl/internal/modules/session/domain"
	sessionout "osl/internal/modules/session/port/out"
	"osl/internal/platform/clock"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/id"
	"osl/internal/platform/logging"
)

type SessionService struct {
	clock  clock.Clock
	idGen  id.Generator
	store  sessionout.SessionStore
	notes  sessionout.NoteWriter
	index  sessionout.SessionIndex
	logger *zap.Logger
}

func NewSessionService(clock clock.Clock, idGen id.Generator, store sessionout.SessionStore, notes sessionout.NoteWriter, index sessionout.SessionIndex, logger *zap.Logger) *SessionService {
	return &SessionService{clock: clock, idGen: idGen, store: store, notes: notes, index: index, logger: logging.OrNop(logger)}
}

// StartRequest describes a new session; the caller has already resolved the book and checked governance.
type StartRequest struct {
	BookID        string
	BookTitle     string
	Type          domain.SessionType
	MaxFlashcards int
	GatesStatus   map[string]string
}

func (s *SessionService) HasActive(ctx context.Context) bool {
	return s.store.HasCurrent(ctx)
}

func (s *SessionService) Start(ctx context.Context, req StartRequest) (domain.Session, error) {
	if s.store.HasCurrent(ctx) {
		return domain.Session{}, apperrors.WithHint(apperrors.ErrActiveSessionExists, "run 'osl session end' to close it first")
	}
	if req.BookID == "" {
		return domain.Session{}, apperrors.Wrap(apperrors.ErrInvalidInput, "book id is required")
	}
	session := domain.NewSession(s.idGen.New(), req.BookID, req.BookTitle, req.Type, req.MaxFlashcards, s.clock.Now())
	if req.GatesStatus != nil {
		session.GovernanceGatesChecked = true
		for gate, status := range req.GatesStatus {
			session.GatesStatus[gate] = status
		}
	}
	if err := s.store.SaveCurrent(ctx, session); err != nil {
		return domain.Session{}, err
	}
	s.logger.Info("session started",
		zap.String("session_id", session.SessionID),
		zap.String("book_id", session.BookID),
		zap.String("type", string(session.SessionType)),
		zap.Int("max_flashcards", session.MaxFlashcards),
	)
	return session, nil
}

func (s *SessionService) Current(ctx context.Context) (domain.Session, error) {
	return s.store.LoadCurrent(ctx)
}

// TransitionOutcome carries the validation result and, separately, any timeout overrun of the
// state being left. An overrun never blocks the move.
type TransitionOutcome struct {
	Session domain.Session
	From    domain.State
	Result  domain.Result
	Timeout domain.Result
}

func (s *SessionService) Transition(ctx context.Context, to domain.State, input domain.Context) (TransitionOutcome, error) {
	session, err := s.store.LoadCurrent(ctx)
	if err != nil {
		return TransitionOutcome{}, err
	}
	now := s.clock.Now()
	from := session.State
	outcome := TransitionOutcome{
		From:    from,
		Timeout: domain.ValidateTimeout(from, session.StateEnteredAt, now),
	}
	machine := domain.NewMachine(domain.LimitsFor(session))
	outcome.Result = machine.Transition(&session, to, input, now)
	if !outcome.Result.Valid {
		s.logger.Debug("transition rejected", zap.String("from", string(from)), zap.String("to", string(to)), zap.String("reason", outcome.Result.Error))
		outcome.Session = session
		return outcome, nil
	}
	if err := s.store.SaveCurrent(ctx, session); err != nil {
		return TransitionOutcome{}, err
	}
	if !outcome.Timeout.Valid {
		s.logger.Warn("state ran past its time budget", zap.String("state", string(from)), zap.String("detail", outcome.Timeout.Error))
	}
	s.logger.Info("transition accepted", zap.String("session_id", session.SessionID), zap.String("from", string(from)), zap.String("to", string(to)))
	outcome.Session = session
	return outcome, nil
}

func (s *SessionService) NextActions(ctx context.Context) (domain.Session, []domain.Action, error) {
	session, err := s.store.LoadCurrent(ctx)
	if err != nil {
		return domain.Session{}, nil, err
	}
	return session, domain.NextActions(session.State), nil
}

func (s *SessionService) CheckTimeout(ctx context.Context) (domain.Session, domain.Result, error) {
	session, err := s.store.LoadCurrent(ctx)
	if err != nil {
		return domain.Session{}, domain.Result{}, err
	}
	return session, domain.ValidateTimeout(session.State, session.StateEnteredAt, s.clock.Now()), nil
}

func (s *SessionService) AddMisconception(ctx context.Context, description, source string) (domain.Misconception, error) {
	session, err := s.store.LoadCurrent(ctx)
	if err != nil {
		return domain.Misconception{}, err
	}
	m, err := session.AddMisconception(s.idGen.New(), description, source, s.clock.Now())
	if err != nil {
		return domain.Misconception{}, err
	}
	if err := s.store.SaveCurrent(ctx, session); err != nil {
		return domain.Misconception{}, err
	}
	return m, nil
}

func (s *SessionService) ResolveMisconception(ctx context.Context, id, correction string) (domain.Misconception, error) {
	session, err := s.store.LoadCurrent(ctx)
	if err != nil {
		return domain.Misconception{}, err
	}
	m, err := session.ResolveMisconception(id, correction, s.clock.Now())
	if err != nil {
		return domain.Misconception{}, err
	}
	if err := s.store.SaveCurrent(ctx, session); err != nil {
		return domain.Misconception{}, err
	}
	return m, nil
}

// Close moves the current session to SESSION_END and saves it, leaving it in the slot.
// The returned bool reports whether force was needed.
func (s *SessionService) Close(ctx context.Context, force bool) (domain.Session, domain.Result, bool, error) {
	session, err := s.store.LoadCurrent(ctx)
	if err != nil {
		return domain.Session{}, domain.Result{}, false, err
	}
	machine := domain.NewMachine(domain.LimitsFor(session))
	res, forced := machine.Close(&session, force, s.clock.Now())
	if !res.Valid {
		return session, res, false, nil
	}
	if err := s.store.SaveCurrent(ctx, session); err != nil {
		return domain.Session{}, domain.Result{}, false, err
	}
	if forced {
		s.logger.Warn("session ended by force", zap.String("session_id", session.SessionID))
	}
	return session, res, forced, nil
}

// ArchiveResult locates everything written for a finished session.
type ArchiveResult struct {
	Session     domain.Session
	ArchivePath string
	NotePath    string
	BookNote    string
}

// Archive seals an ended session into the archive, renders its notes, projects it into the
// index and moves the current slot aside. Note and index failures are logged, not fatal:
// the archive is the record of truth and both can be rebuilt from it.
func (s *SessionService) Archive(ctx context.Context, session domain.Session) (ArchiveResult, error) {
	if session.State != domain.StateSessionEnd {
		return ArchiveResult{}, apperrors.Wrapf(apperrors.ErrInvalidInput, "session %s is in %s, not SESSION_END", session.SessionID, session.State)
	}
	machine := domain.NewMachine(domain.LimitsFor(session))
	if res := machine.Seal(&session, s.clock.Now()); !res.Valid {
		return ArchiveResult{}, apperrors.Newf("seal session: %s", res.Error)
	}
	path, err := s.store.Archive(ctx, session)
	if apperrors.Is(err, apperrors.ErrArchiveExists) {
		path, err = s.resumeArchive(ctx, session, err)
	}
	if err != nil {
		return ArchiveResult{}, err
	}
	result := ArchiveResult{Session: session, ArchivePath: path}

	if s.notes != nil {
		if result.NotePath, err = s.notes.WriteSession(ctx, session); err != nil {
			s.logger.Warn("session note not written", zap.String("session_id", session.SessionID), zap.Error(err))
		} else if result.BookNote, err = s.notes.LinkToBook(ctx, session, result.NotePath); err != nil {
			s.logger.Warn("book note not updated", zap.String("book_id", session.BookID), zap.Error(err))
		}
	}
	if s.index != nil {
		if err := s.index.Upsert(ctx, session); err != nil {
			s.logger.Warn("session index not updated", zap.String("session_id", session.SessionID), zap.Error(err))
		}
	}
	if err := s.store.ClearCurrent(ctx); err != nil {
		return ArchiveResult{}, err
	}
	return result, nil
}

// resumeArchive accepts an archive left by an earlier attempt that stopped before clearing the
// current slot. An archive holding a different session is still a conflict.
func (s *SessionService) resumeArchive(ctx context.Context, session domain.Session, cause error) (string, error) {
	existing, err := s.store.LoadArchive(ctx, session.SessionID)
	if err != nil {
		return "", apperrors.Wrapf(cause, "existing archive unreadable: %v", err)
	}
	if existing.SessionID != session.SessionID || existing.StartTime.Unix() != session.StartTime.Unix() {
		return "", cause
	}
	s.logger.Warn("archive already written, resuming", zap.String("session_id", session.SessionID))
	return s.store.ArchivePath(session.SessionID), nil
}

// MarkRecorded saves that the session has been folded into the coach record, so a retried
// end does not count it twice.
func (s *SessionService) MarkRecorded(ctx context.Context, session domain.Session) (domain.Session, error) {
	session.CoachRecorded = true
	if err := s.store.SaveCurrent(ctx, session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// Reindex rebuilds the session index from the archive and returns the number of sessions projected.
func (s *SessionService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, apperrors.New("session index is not configured")
	}
	keys, err := s.store.ListArchives(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.index.Reset(ctx); err != nil {
		return 0, err
	}
	count := 0
	for _, key := range keys {
		session, err := s.store.LoadArchive(ctx, key)
		if err != nil {
			s.logger.Warn("archive skipped during reindex", zap.String("key", key), zap.Error(err))
			continue
		}
		if err := s.index.Upsert(ctx, session); err != nil {
			return count, err
		}
		count++
	}
	s.logger.Info("session index rebuilt", zap.Int("sessions", count), zap.Int("archives", len(keys)))
	return count, nil
}

func (s *SessionService) BookStats(ctx context.Context, bookID string) (domain.BookStats, error) {
	if s.index == nil {
		return domain.BookStats{}, apperrors.New("session index is not configured")
	}
	return s.index.BookStats(ctx, bookID)
}

func (s *SessionService) Recent(ctx context.Context, limit int) ([]domain.IndexedSession, error) {
	if s.index == nil {
		return nil, apperrors.New("session index is not configured")
	}
	return s.index.Recent(ctx, limit)
}
