package out

import (
	"context"

	"osl/internal/modules/coach/domain"
)

type StateStore interface {
	Load(ctx context.Context) (domain.CoachState, error)
	Save(ctx context.Context, state domain.CoachState) error
	Exists(ctx context.Context) bool
}

// Migrator brings a stored document to the current schema before it is decoded.
type Migrator interface {
	EnsureCurrent(ctx context.Context, path string) error
}

type PageCounter interface {
	CountPages(ctx context.Context, path string) (int, error)
}

// Workspace lays out the directories a fresh installation needs.
type Workspace interface {
	Scaffold(ctx context.Context) ([]string, error)
}
