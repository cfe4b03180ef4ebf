package id

import "github.com/google/uuid"

// Generator creates opaque identifiers.
type Generator interface {
	New() string
}

// UUID produces random v4 identifiers.
type UUID struct{}

func (UUID) New() string {
	return uuid.NewString()
}

// Static always returns the same identifier; used by tests and replays.
type Static string

func (s Static) New() string {
	return string(s)
}
