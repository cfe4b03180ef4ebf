// Package docstore persists named JSON documents with crash-safe writes.
//
// Every save writes a temporary sibling, copies the previous content to a
// backup sibling and renames the temporary file into place, so the visible
// document is always either the old or the new complete content. Nothing is
// cached: each load re-reads the file.
//
// A single process is assumed to mutate a given document at a time; the store
// does not arbitrate between concurrent writers.
package docstore

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/logging"
)

const (
	Ext           = ".json"
	TempSuffix    = ".tmp"
	BackupSuffix  = ".bak"
	ClearedSuffix = ".last"
	ArchiveDir    = "session_logs"
)

type Store struct {
	dir    string
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logging.OrNop(logger).Named("docstore")}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+Ext)
}

func (s *Store) ArchivePath(key string) string {
	return filepath.Join(s.dir, ArchiveDir, key+Ext)
}

func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && !info.IsDir()
}

// Read returns the raw bytes of a document or an ErrNotFound-marked error.
func (s *Store) Read(name string) ([]byte, error) {
	return readFile(s.Path(name), name)
}

func (s *Store) Load(name string, v any) error {
	raw, err := s.Read(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.Wrapf(err, "decode %s", name)
	}
	return nil
}

// LoadDocument decodes a document into its generic representation.
func (s *Store) LoadDocument(name string) (map[string]any, error) {
	doc := map[string]any{}
	if err := s.Load(name, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) Save(name string, v any) error {
	payload, err := Encode(v)
	if err != nil {
		return apperrors.Wrapf(err, "encode %s", name)
	}
	path := s.Path(name)
	if err := WriteFileAtomic(path, payload); err != nil {
		return err
	}
	s.logger.Debug("document saved", zap.String("name", name), zap.Int("bytes", len(payload)))
	return nil
}

// Clear moves the document aside to its ".last" sibling so it can be recovered.
// Clearing an absent document is a no-op.
func (s *Store) Clear(name string) error {
	path := s.Path(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.Mark(apperrors.Wrapf(err, "stat %s", name), apperrors.ErrIOFailure)
	}
	aside := SiblingPath(path, ClearedSuffix)
	if err := os.Rename(path, aside); err != nil {
		return apperrors.Mark(apperrors.Wrapf(err, "move %s aside", name), apperrors.ErrIOFailure)
	}
	s.logger.Debug("document cleared", zap.String("name", name), zap.String("moved_to", aside))
	return nil
}

// Archive writes an immutable copy of v under key. An existing archive is never replaced.
func (s *Store) Archive(key string, v any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	path := s.ArchivePath(key)
	if _, err := os.Stat(path); err == nil {
		return apperrors.Wrapf(apperrors.ErrArchiveExists, "archive %s", key)
	}
	payload, err := Encode(v)
	if err != nil {
		return apperrors.Wrapf(err, "encode archive %s", key)
	}
	if err := WriteFileAtomic(path, payload); err != nil {
		return err
	}
	if err := os.Chmod(path, 0o444); err != nil {
		return apperrors.Mark(apperrors.Wrapf(err, "seal archive %s", key), apperrors.ErrIOFailure)
	}
	s.logger.Info("session archived", zap.String("key", key), zap.String("path", path))
	return nil
}

func (s *Store) LoadArchive(key string, v any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	raw, err := readFile(s.ArchivePath(key), "archive "+key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.Wrapf(err, "decode archive %s", key)
	}
	return nil
}

// ListArchives returns archive keys in lexical order.
func (s *Store) ListArchives() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, ArchiveDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, apperrors.Wrap(err, "list archives")
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != Ext {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, Ext))
	}
	sort.Strings(keys)
	return keys, nil
}

// Encode renders v the way every document is stored on disk.
func Encode(v any) ([]byte, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(payload, '\n'), nil
}

// WriteFileAtomic replaces path with payload via a temporary sibling, keeping the
// previous content in the ".bak" sibling. On failure path is left untouched.
func WriteFileAtomic(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Mark(apperrors.Wrap(err, "create document dir"), apperrors.ErrIOFailure)
	}
	tmp := SiblingPath(path, TempSuffix)
	if err := writeSynced(tmp, payload); err != nil {
		_ = os.Remove(tmp)
		return apperrors.Mark(apperrors.Wrapf(err, "write %s", tmp), apperrors.ErrIOFailure)
	}
	if info, err := os.Stat(path); err == nil {
		if err := CopyFile(path, SiblingPath(path, BackupSuffix)); err != nil {
			_ = os.Remove(tmp)
			return apperrors.Mark(apperrors.Wrap(err, "backup previous document"), apperrors.ErrIOFailure)
		}
		if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
			_ = os.Remove(tmp)
			return apperrors.Mark(apperrors.Wrap(err, "carry document mode"), apperrors.ErrIOFailure)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.Mark(apperrors.Wrapf(err, "rename into %s", path), apperrors.ErrIOFailure)
	}
	syncDir(filepath.Dir(path))
	return nil
}

// CopyFile copies src over dst and leaves dst with the source permissions.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	mode := info.Mode().Perm() | 0o200
	if _, err := os.Stat(dst); err == nil {
		if err := os.Chmod(dst, mode); err != nil {
			return err
		}
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}

// RestoreFile puts the content of backup back at path without touching the
// ".bak" sibling. Used to undo a failed migration.
func RestoreFile(backup, path string) error {
	tmp := SiblingPath(path, TempSuffix)
	if err := CopyFile(backup, tmp); err != nil {
		_ = os.Remove(tmp)
		return apperrors.Mark(apperrors.Wrapf(err, "stage restore of %s", path), apperrors.ErrIOFailure)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.Mark(apperrors.Wrapf(err, "restore %s", path), apperrors.ErrIOFailure)
	}
	syncDir(filepath.Dir(path))
	return nil
}

// SiblingPath swaps the extension of path for suffix: coach_state.json -> coach_state.bak.
func SiblingPath(path, suffix string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix
}

// VersionedBackupPath is the pre-migration backup location for a document at version.
func VersionedBackupPath(path, version string) string {
	return SiblingPath(path, ".v"+version+BackupSuffix)
}

func readFile(path, what string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Mark(apperrors.Wrapf(err, "%s not found at %s", what, path), apperrors.ErrNotFound)
		}
		return nil, apperrors.Mark(apperrors.Wrapf(err, "read %s", what), apperrors.ErrIOFailure)
	}
	return raw, nil
}

func writeSynced(path string, payload []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(payload); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// ValidateKey rejects archive keys that would resolve outside the archive directory.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid archive key %q", key)
	}
	return nil
}
