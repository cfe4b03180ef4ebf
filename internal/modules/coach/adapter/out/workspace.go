package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	coachout "osl/internal/modules/coach/port/out"
	"osl/internal/platform/docstore"
)

var vaultDirs = []string{"books", "sessions", "permanent", "projects", "reviews"}

// DirWorkspace creates the state and vault directory trees.
type DirWorkspace struct {
	stateDir string
	vaultDir string
}

func NewDirWorkspace(stateDir, vaultDir string) coachout.Workspace {
	return DirWorkspace{stateDir: stateDir, vaultDir: vaultDir}
}

func (w DirWorkspace) Scaffold(_ context.Context) ([]string, error) {
	dirs := []string{w.stateDir, filepath.Join(w.stateDir, docstore.ArchiveDir)}
	for _, d := range vaultDirs {
		dirs = append(dirs, filepath.Join(w.vaultDir, d))
	}
	created := []string{}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("create %s: %w", dir, err)
		}
		created = append(created, dir)
	}
	return created, nil
}
