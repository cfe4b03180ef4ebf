package out

import (
	"context"

	"osl/internal/modules/migration/domain"
)

// DocumentFiles is the file-level access the migration engine needs. Writes must be
// atomic and a restore must reproduce the backup byte for byte.
type DocumentFiles interface {
	Exists(path string) bool
	Read(path string) ([]byte, error)
	Backup(path, version string) (string, error)
	Write(path string, payload []byte) error
	Restore(backup, path string) error
	Discover(stateDir string) ([]string, error)
}

type LogStore interface {
	Load(ctx context.Context) (domain.Log, error)
	Append(ctx context.Context, entry domain.LogEntry) error
}
