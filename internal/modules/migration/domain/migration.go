// Package domain holds the schema migration chain.
//
// A migration is plain data: a source version, a target version, a transform
// over the generic document representation and a post-condition. Extending the
// chain means appending a record; earlier steps never change.
package domain

import (
	"strings"
	"time"

	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/schema"
)

// Document is the version-agnostic shape every migration works on.
type Document = map[string]any

type Migration struct {
	From      string
	To        string
	Transform func(doc Document, now time.Time) Document
	Validate  func(doc Document) bool
}

type Registry struct {
	current    string
	migrations []Migration
	known      map[string]struct{}
}

func NewRegistry(current string, migrations ...Migration) Registry {
	known := map[string]struct{}{current: {}}
	for _, m := range migrations {
		known[m.From] = struct{}{}
		known[m.To] = struct{}{}
	}
	return Registry{current: current, migrations: migrations, known: known}
}

// DefaultRegistry is the production chain ending at schema.Current.
func DefaultRegistry() Registry {
	return NewRegistry(schema.Current, Chain()...)
}

func (r Registry) Current() string {
	return r.current
}

// Versions lists every version the registry can read, oldest first.
func (r Registry) Versions() []string {
	out := make([]string, 0, len(r.known))
	for v := range r.known {
		out = append(out, v)
	}
	schema.Sort(out)
	return out
}

// VersionOf reads the document version; documents without one predate versioning.
func VersionOf(doc Document) string {
	if v, ok := doc["version"].(string); ok && v != "" {
		return v
	}
	return schema.Legacy
}

func (r Registry) NeedsMigration(doc Document) bool {
	return VersionOf(doc) != r.current
}

// ResolvePath follows From links from one version until to is reached.
func (r Registry) ResolvePath(from, to string) ([]Migration, error) {
	if _, ok := r.known[from]; !ok {
		return nil, r.unsupported("source", from)
	}
	if _, ok := r.known[to]; !ok {
		return nil, r.unsupported("target", to)
	}
	path := []Migration{}
	current := from
	for current != to {
		next, ok := r.from(current)
		if !ok || len(path) >= len(r.migrations) {
			return nil, apperrors.Wrapf(apperrors.ErrNoMigrationPath, "from %s to %s", from, to)
		}
		path = append(path, next)
		current = next.To
	}
	return path, nil
}

func (r Registry) unsupported(role, version string) error {
	err := apperrors.Wrapf(apperrors.ErrUnsupportedVersion, "%s version %q", role, version)
	return apperrors.WithHintf(err, "supported versions: %s", strings.Join(r.Versions(), ", "))
}

func (r Registry) from(version string) (Migration, bool) {
	for _, m := range r.migrations {
		if m.From == version {
			return m, true
		}
	}
	return Migration{}, false
}

// Migrate brings doc to target (the registry's current version when empty).
// The input is never mutated; on failure no document is returned.
func (r Registry) Migrate(doc Document, target string, now time.Time) (Document, error) {
	if target == "" {
		target = r.current
	}
	from := VersionOf(doc)
	if from == target {
		return doc, nil
	}
	path, err := r.ResolvePath(from, target)
	if err != nil {
		return nil, err
	}
	work := copyDocument(doc)
	for _, m := range path {
		work = m.Transform(work, now)
		if work == nil || !m.Validate(work) {
			return nil, apperrors.Wrapf(apperrors.ErrValidationFailure, "migration from %s to %s failed validation", m.From, m.To)
		}
	}
	if got := VersionOf(work); got != target {
		return nil, apperrors.Wrapf(apperrors.ErrValidationFailure, "migrated document reports version %s, want %s", got, target)
	}
	return work, nil
}

func copyDocument(doc Document) Document {
	return copyValue(doc).(Document)
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	default:
		return v
	}
}
