package domain_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"osl/internal/modules/migration/domain"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/schema"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func versions(path []domain.Migration) []string {
	out := []string{}
	for _, m := range path {
		out = append(out, m.From+"->"+m.To)
	}
	return out
}

func TestResolvePath(t *testing.T) {
	t.Parallel()
	reg := domain.DefaultRegistry()

	cases := []struct {
		name string
		from string
		to   string
		want []string
		err  error
	}{
		{name: "full chain", from: "1.0", to: schema.Current, want: []string{"1.0->2.0", "2.0->3.0", "3.0->3.1"}},
		{name: "single step", from: "2.0", to: "3.0", want: []string{"2.0->3.0"}},
		{name: "same version", from: "3.0", to: "3.0", want: []string{}},
		{name: "downgrade", from: "3.1", to: "1.0", err: apperrors.ErrNoMigrationPath},
		{name: "unknown source", from: "0.5", to: "3.1", err: apperrors.ErrUnsupportedVersion},
		{name: "unknown target", from: "1.0", to: "9.0", err: apperrors.ErrUnsupportedVersion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path, err := reg.ResolvePath(tc.from, tc.to)
			if tc.err != nil {
				if !apperrors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if diff := cmp.Diff(tc.want, versions(path)); diff != "" {
				t.Fatalf("path mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnsupportedVersionListsKnownVersions(t *testing.T) {
	t.Parallel()
	reg := domain.DefaultRegistry()
	if diff := cmp.Diff([]string{"1.0", "2.0", "3.0", "3.1"}, reg.Versions()); diff != "" {
		t.Fatalf("versions mismatch (-want +got):\n%s", diff)
	}
	_, err := reg.ResolvePath("0.9", schema.Current)
	if !apperrors.Is(err, apperrors.ErrUnsupportedVersion) {
		t.Fatalf("expected unsupported version, got %v", err)
	}
	if hint := apperrors.FlattenHints(err); hint != "supported versions: 1.0, 2.0, 3.0, 3.1" {
		t.Fatalf("unexpected hint %q", hint)
	}
}

func TestResolvePathDetectsBrokenChainAndCycles(t *testing.T) {
	t.Parallel()
	identity := func(doc domain.Document, _ time.Time) domain.Document { return doc }
	always := func(domain.Document) bool { return true }

	broken := domain.NewRegistry("3.0",
		domain.Migration{From: "1.0", To: "2.0", Transform: identity, Validate: always},
	)
	if _, err := broken.ResolvePath("1.0", "3.0"); !apperrors.Is(err, apperrors.ErrNoMigrationPath) {
		t.Fatalf("expected no path for broken chain, got %v", err)
	}

	cyclic := domain.NewRegistry("3.0",
		domain.Migration{From: "1.0", To: "2.0", Transform: identity, Validate: always},
		domain.Migration{From: "2.0", To: "1.0", Transform: identity, Validate: always},
	)
	if _, err := cyclic.ResolvePath("1.0", "3.0"); !apperrors.Is(err, apperrors.ErrNoMigrationPath) {
		t.Fatalf("expected no path for cycle, got %v", err)
	}
}

func TestMigrateLegacyCoachDocument(t *testing.T) {
	t.Parallel()
	reg := domain.DefaultRegistry()
	legacy := domain.Document{
		"active_books":          []any{},
		"governance_thresholds": map[string]any{"calibration_gate": 80.0},
	}

	migrated, err := reg.Migrate(legacy, "", now)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if domain.VersionOf(migrated) != schema.Current {
		t.Fatalf("expected current version, got %s", domain.VersionOf(migrated))
	}
	if _, ok := legacy["version"]; ok {
		t.Fatalf("input document must not be mutated")
	}

	thresholds := migrated["governance_thresholds"].(map[string]any)
	calibration := thresholds["calibration_gate"].(map[string]any)
	if calibration["current"] != 80.0 || calibration["min"] != 64.0 || calibration["max"] != 96.0 {
		t.Fatalf("scalar threshold not expanded: %v", calibration)
	}
	if _, ok := thresholds["card_debt_multiplier"].(map[string]any); !ok {
		t.Fatalf("missing thresholds should be defaulted: %v", thresholds)
	}
	status := migrated["governance_status"].(map[string]any)
	if status["recovery_state"] != "NORMAL" || status["interleaving_gate"] != "passing" {
		t.Fatalf("3.1 status fields missing: %v", status)
	}
	metrics := migrated["performance_metrics"].(map[string]any)
	if metrics["daily_review_throughput"] != 60.0 {
		t.Fatalf("metrics block missing: %v", metrics)
	}
}

func TestMigrateRewritesZonelessTimestampsAsUTC(t *testing.T) {
	t.Parallel()
	reg := domain.DefaultRegistry()
	cases := []struct {
		name string
		doc  domain.Document
		get  func(domain.Document) any
		want string
	}{
		{
			name: "book start date",
			doc:  domain.Document{"active_books": []any{map[string]any{"id": "b", "start_date": "2024-01-15T10:30:00.123456"}}},
			get:  func(d domain.Document) any { return d["active_books"].([]any)[0].(map[string]any)["start_date"] },
			want: "2024-01-15T10:30:00.123456Z",
		},
		{
			name: "threshold adjustment",
			doc:  domain.Document{"governance_thresholds": map[string]any{"max_new_cards": map[string]any{"min": 4.0, "current": 8.0, "max": 10.0, "last_adjusted": "2024-02-01T08:00:00"}}},
			get:  func(d domain.Document) any { return d["governance_thresholds"].(map[string]any)["max_new_cards"].(map[string]any)["last_adjusted"] },
			want: "2024-02-01T08:00:00Z",
		},
		{
			name: "review schedule",
			doc:  domain.Document{"review_schedule": map[string]any{"next_calibration": "2024-03-04T07:00:00", "daily_review_time": "07:00"}},
			get:  func(d domain.Document) any { return d["review_schedule"].(map[string]any)["next_calibration"] },
			want: "2024-03-04T07:00:00Z",
		},
		{
			name: "session history",
			doc:  domain.Document{"session_id": "s", "start_time": "2024-01-15T10:30:00", "state_history": []any{map[string]any{"from": "SESSION_INIT", "to": "preview", "timestamp": "2024-01-15T10:31:00.5"}}},
			get:  func(d domain.Document) any { return d["state_history"].([]any)[0].(map[string]any)["timestamp"] },
			want: "2024-01-15T10:31:00.5Z",
		},
		{
			name: "zoned values untouched",
			doc:  domain.Document{"session_id": "s", "start_time": "2024-01-15T10:30:00+02:00"},
			get:  func(d domain.Document) any { return d["start_time"] },
			want: "2024-01-15T10:30:00+02:00",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			migrated, err := reg.Migrate(tc.doc, "", now)
			if err != nil {
				t.Fatalf("migrate: %v", err)
			}
			if got := tc.get(migrated); got != tc.want {
				t.Fatalf("got %v, want %s", got, tc.want)
			}
		})
	}
}

func TestMigrateSessionDocument(t *testing.T) {
	t.Parallel()
	reg := domain.DefaultRegistry()
	session := domain.Document{
		"version":       "2.0",
		"session_id":    "s1",
		"last_activity": "2026-03-01T10:00:00Z",
	}
	migrated, err := reg.Migrate(session, schema.Current, now)
	if err != nil {
		t.Fatalf("migrate session: %v", err)
	}
	if _, ok := migrated["misconceptions_identified"].([]any); !ok {
		t.Fatalf("session should declare misconceptions list: %v", migrated)
	}
	if migrated["state_entered_at"] != "2026-03-01T10:00:00Z" {
		t.Fatalf("state_entered_at should default to last_activity: %v", migrated["state_entered_at"])
	}
	if _, ok := migrated["performance_metrics"]; ok {
		t.Fatalf("session documents must not gain coach metrics")
	}
	if _, ok := migrated["state_history"].([]any); !ok {
		t.Fatalf("state history should be declared")
	}
}

func TestMigrateAtTargetReturnsUnchanged(t *testing.T) {
	t.Parallel()
	reg := domain.DefaultRegistry()
	doc := domain.Document{"version": schema.Current, "marker": "x"}
	out, err := reg.Migrate(doc, "", now)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if diff := cmp.Diff(doc, out); diff != "" {
		t.Fatalf("document should be unchanged (-want +got):\n%s", diff)
	}
}

func TestMigrateStopsOnFailedPostCondition(t *testing.T) {
	t.Parallel()
	bump := func(to string) func(domain.Document, time.Time) domain.Document {
		return func(doc domain.Document, _ time.Time) domain.Document {
			doc["version"] = to
			return doc
		}
	}
	secondRan := false
	reg := domain.NewRegistry("3.0",
		domain.Migration{From: "1.0", To: "2.0", Transform: bump("2.0"), Validate: func(domain.Document) bool { return false }},
		domain.Migration{From: "2.0", To: "3.0", Transform: func(doc domain.Document, t time.Time) domain.Document {
			secondRan = true
			return bump("3.0")(doc, t)
		}, Validate: func(domain.Document) bool { return true }},
	)
	out, err := reg.Migrate(domain.Document{"version": "1.0"}, "", now)
	if !apperrors.Is(err, apperrors.ErrValidationFailure) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if out != nil {
		t.Fatalf("failed migration must not return a document")
	}
	if secondRan {
		t.Fatalf("later steps must not run after a failed post-condition")
	}
}

func TestMigrateRejectsVersionMismatchAfterChain(t *testing.T) {
	t.Parallel()
	reg := domain.NewRegistry("2.0",
		domain.Migration{
			From:      "1.0",
			To:        "2.0",
			Transform: func(doc domain.Document, _ time.Time) domain.Document { return doc },
			Validate:  func(domain.Document) bool { return true },
		},
	)
	if _, err := reg.Migrate(domain.Document{"version": "1.0"}, "", now); !apperrors.Is(err, apperrors.ErrValidationFailure) {
		t.Fatalf("expected validation failure for version mismatch, got %v", err)
	}
}

func TestMigrateIsDeterministic(t *testing.T) {
	t.Parallel()
	reg := domain.DefaultRegistry()
	doc := domain.Document{"version": "1.0"}
	a, err := reg.Migrate(doc, "", now)
	if err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	b, err := reg.Migrate(doc, "", now)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("migration should be deterministic (-a +b):\n%s", diff)
	}
}

func TestBuildReport(t *testing.T) {
	t.Parallel()
	errText := "boom"
	log := domain.NewLog(schema.Current).
		Append(domain.LogEntry{Timestamp: now, File: "b.json", FromVersion: "2.0", ToVersion: "3.1", Success: true}).
		Append(domain.LogEntry{Timestamp: now.Add(time.Minute), File: "a.json", FromVersion: "1.0", ToVersion: "3.1", Error: &errText})

	report := domain.BuildReport(log, schema.Current)
	if report.Total != 2 || report.Successful != 1 || report.Failed != 1 {
		t.Fatalf("unexpected totals %+v", report)
	}
	if diff := cmp.Diff([]string{"a.json", "b.json"}, report.Files); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
	if report.LastMigration == nil || !report.LastMigration.Equal(now) {
		t.Fatalf("last migration should track the last success, got %v", report.LastMigration)
	}
}
