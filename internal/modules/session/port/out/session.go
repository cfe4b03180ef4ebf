package out

import (
	"context"

	"osl/internal/modules/session/domain"
)

// SessionStore holds the single current session and the archive of finished ones.
type SessionStore interface {
	HasCurrent(ctx context.Context) bool
	LoadCurrent(ctx context.Context) (domain.Session, error)
	SaveCurrent(ctx context.Context, session domain.Session) error
	ClearCurrent(ctx context.Context) error
	Archive(ctx context.Context, session domain.Session) (string, error)
	ArchivePath(id string) string
	LoadArchive(ctx context.Context, id string) (domain.Session, error)
	ListArchives(ctx context.Context) ([]string, error)
}

// NoteWriter renders finished sessions into the markdown vault.
type NoteWriter interface {
	WriteSession(ctx context.Context, session domain.Session) (string, error)
	LinkToBook(ctx context.Context, session domain.Session, notePath string) (string, error)
}

// SessionIndex is a queryable projection of archived sessions.
type SessionIndex interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, session domain.Session) error
	BookStats(ctx context.Context, bookID string) (domain.BookStats, error)
	Recent(ctx context.Context, limit int) ([]domain.IndexedSession, error)
}

type Migrator interface {
	EnsureCurrent(ctx context.Context, path string) error
}
