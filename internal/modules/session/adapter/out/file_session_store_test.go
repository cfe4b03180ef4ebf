package out_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	sessionout "osl/internal/modules/session/adapter/out"
	"osl/internal/modules/session/domain"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
)

var started = time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)

func TestCurrentSlotLifecycle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := sessionout.NewFileSessionStore(docstore.New(dir, nil), nil, nil)
	ctx := context.Background()

	if _, err := store.LoadCurrent(ctx); !apperrors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("empty slot should report no active session, got %v", err)
	}
	session := domain.NewSession("s-1", "b", "Book", domain.TypeStandard, 6, started)
	if err := store.SaveCurrent(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !store.HasCurrent(ctx) {
		t.Fatalf("slot should be occupied")
	}
	loaded, err := store.LoadCurrent(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(session, loaded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if err := store.ClearCurrent(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if store.HasCurrent(ctx) {
		t.Fatalf("slot should be empty after clear")
	}
	if _, err := os.Stat(filepath.Join(dir, "current_session.last")); err != nil {
		t.Fatalf("cleared session should be kept aside: %v", err)
	}
}

func TestSaveRefusesInvalidSession(t *testing.T) {
	t.Parallel()
	store := sessionout.NewFileSessionStore(docstore.New(t.TempDir(), nil), nil, nil)
	session := domain.NewSession("s-1", "b", "Book", domain.TypeStandard, 2, started)
	session.FlashcardsCreated = 3
	if err := store.SaveCurrent(context.Background(), session); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("card count past the cap must be refused, got %v", err)
	}
}

func TestArchiveIsImmutable(t *testing.T) {
	t.Parallel()
	store := sessionout.NewFileSessionStore(docstore.New(t.TempDir(), nil), nil, nil)
	ctx := context.Background()
	session := domain.NewSession("s-1", "b", "Book", domain.TypeStandard, 0, started)
	session.State = domain.StateArchived

	path, err := store.Archive(ctx, session)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat archive: %v", err)
	}
	if info.Mode().Perm()&0o222 != 0 {
		t.Fatalf("archive should be read-only, got %v", info.Mode())
	}
	if _, err := store.Archive(ctx, session); !apperrors.Is(err, apperrors.ErrArchiveExists) {
		t.Fatalf("second archive under the same id must fail, got %v", err)
	}
	keys, err := store.ListArchives(ctx)
	if err != nil || len(keys) != 1 || keys[0] != "s-1" {
		t.Fatalf("list archives = %v, %v", keys, err)
	}
	loaded, err := store.LoadArchive(ctx, "s-1")
	if err != nil || loaded.State != domain.StateArchived {
		t.Fatalf("load archive = %+v, %v", loaded, err)
	}
}

type recordingMigrator struct{ paths []string }

func (r *recordingMigrator) EnsureCurrent(_ context.Context, path string) error {
	r.paths = append(r.paths, path)
	return nil
}

func TestLoadsGoThroughMigrator(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	migrator := &recordingMigrator{}
	store := sessionout.NewFileSessionStore(docstore.New(dir, nil), migrator, nil)
	ctx := context.Background()
	if err := store.SaveCurrent(ctx, domain.NewSession("s-1", "b", "Book", domain.TypeStandard, 0, started)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.LoadCurrent(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migrator.paths) != 1 || migrator.paths[0] != filepath.Join(dir, "current_session.json") {
		t.Fatalf("migrator not consulted: %v", migrator.paths)
	}
}

func TestLoadArchiveRejectsPathKeysBeforeMigrating(t *testing.T) {
	t.Parallel()
	migrator := &recordingMigrator{}
	store := sessionout.NewFileSessionStore(docstore.New(t.TempDir(), nil), migrator, nil)
	for _, id := range []string{"../coach_state", "a/b", ""} {
		if _, err := store.LoadArchive(context.Background(), id); !apperrors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("LoadArchive(%q) = %v, want invalid input", id, err)
		}
	}
	if len(migrator.paths) != 0 {
		t.Fatalf("migrator reached for rejected keys: %v", migrator.paths)
	}
}
