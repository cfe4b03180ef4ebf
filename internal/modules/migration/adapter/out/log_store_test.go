package out_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	migrationout "osl/internal/modules/migration/adapter/out"
	"osl/internal/modules/migration/domain"
	"osl/internal/platform/docstore"
	"osl/internal/platform/schema"
)

func TestLogStoreStampsVersion(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// A log written before the file carried its own version.
	old := `{"migrations":[],"last_migration":null,"current_version":"3.0"}`
	if err := os.WriteFile(filepath.Join(dir, "migration_log.json"), []byte(old), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := migrationout.NewFileLogStore(docstore.New(dir, nil), schema.Current, nil)
	entry := domain.LogEntry{Timestamp: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), File: "coach_state.json", FromVersion: "1.0", ToVersion: schema.Current, Success: true}
	if err := store.Append(context.Background(), entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "migration_log.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["version"] != schema.Current || doc["current_version"] != schema.Current {
		t.Fatalf("log not stamped with %s: %v / %v", schema.Current, doc["version"], doc["current_version"])
	}
	if entries, _ := doc["migrations"].([]any); len(entries) != 1 {
		t.Fatalf("expected one entry, got %v", doc["migrations"])
	}
}

func TestEmptyLogCarriesVersion(t *testing.T) {
	t.Parallel()
	store := migrationout.NewFileLogStore(docstore.New(t.TempDir(), nil), schema.Current, nil)
	log, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if log.Version != schema.Current || len(log.Migrations) != 0 {
		t.Fatalf("unexpected empty log %+v", log)
	}
}
