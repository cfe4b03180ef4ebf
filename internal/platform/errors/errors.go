// Package apperrors re-exports github.com/cockroachdb/errors and declares the
// sentinel errors shared by every module.
package apperrors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	Mark         = crdb.Mark
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetailf  = crdb.WithDetailf
	Is           = crdb.Is
	As           = crdb.As
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

var (
	ErrInvalidInput        = crdb.New("invalid input")
	ErrNotFound            = crdb.New("not found")
	ErrNoActiveSession     = crdb.New("no active session")
	ErrActiveSessionExists = crdb.New("active session already exists")
	ErrValidationFailure   = crdb.New("validation failure")
	ErrNoMigrationPath     = crdb.New("no migration path")
	ErrUnsupportedVersion  = crdb.New("unsupported schema version")
	ErrArchiveExists       = crdb.New("archive already exists")
	ErrIOFailure           = crdb.New("io failure")
	ErrThresholdOutOfRange = crdb.New("threshold out of range")
	ErrSessionBlocked      = crdb.New("session blocked by governance")
)

// NotInitialized marks err as ErrNotFound and attaches the init hint.
func NotInitialized(err error, what string) error {
	err = crdb.Mark(crdb.Wrapf(err, "%s not found", what), ErrNotFound)
	return crdb.WithHint(err, "run 'osl init' first")
}
