package out

import (
	"os"
	"path/filepath"
	"sort"

	migrationout "osl/internal/modules/migration/port/out"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
)

// Documents that live at the top of the state directory and are subject to migration.
var rootDocuments = []string{"coach_state", "current_session"}

type FileDocuments struct{}

func NewFileDocuments() migrationout.DocumentFiles {
	return FileDocuments{}
}

func (FileDocuments) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (FileDocuments) Read(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Mark(apperrors.Wrapf(err, "read %s", path), apperrors.ErrNotFound)
		}
		return nil, apperrors.Mark(apperrors.Wrapf(err, "read %s", path), apperrors.ErrIOFailure)
	}
	return raw, nil
}

// Backup copies path to its versioned sibling, replacing an older copy of the same version.
func (FileDocuments) Backup(path, version string) (string, error) {
	backup := docstore.VersionedBackupPath(path, version)
	if err := docstore.CopyFile(path, backup); err != nil {
		return "", apperrors.Mark(apperrors.Wrapf(err, "backup %s", path), apperrors.ErrIOFailure)
	}
	return backup, nil
}

func (FileDocuments) Write(path string, payload []byte) error {
	return docstore.WriteFileAtomic(path, payload)
}

func (FileDocuments) Restore(backup, path string) error {
	return docstore.RestoreFile(backup, path)
}

// Discover lists the coach state, the current session and every archived session
// found under stateDir.
func (FileDocuments) Discover(stateDir string) ([]string, error) {
	paths := []string{}
	for _, name := range rootDocuments {
		path := filepath.Join(stateDir, name+docstore.Ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			paths = append(paths, path)
		}
	}
	archives, err := filepath.Glob(filepath.Join(stateDir, docstore.ArchiveDir, "*"+docstore.Ext))
	if err != nil {
		return nil, apperrors.Wrap(err, "list archived sessions")
	}
	sort.Strings(archives)
	return append(paths, archives...), nil
}
