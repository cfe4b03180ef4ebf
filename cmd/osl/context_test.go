package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "osl/internal/platform/errors"
)

func TestParseContextPairs(t *testing.T) {
	t.Parallel()
	got, err := parseContext("", []string{
		"pages_read=12",
		"retrieval_score=82.5",
		"curiosity_questions=[why?, how?]",
		"recall_text=Channels: typed pipes. Goroutines are cheap.",
		"pages=45-50",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]any{
		"pages_read":          12,
		"retrieval_score":     82.5,
		"curiosity_questions": []any{"why?", "how?"},
		"recall_text":         "Channels: typed pipes. Goroutines are cheap.",
		"pages":               "45-50",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("context mismatch (-want +got):\n%s", diff)
	}
}

func TestParseContextFileThenOverrides(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ctx.yaml")
	if err := os.WriteFile(path, []byte("answers: [a, b]\nconfidence_ratings: [3, 4]\npages_read: 5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := parseContext(path, []string{"pages_read=7"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got["pages_read"] != 7 {
		t.Fatalf("pair should override file, got %v", got["pages_read"])
	}
	if diff := cmp.Diff([]any{3, 4}, got["confidence_ratings"]); diff != "" {
		t.Fatalf("file values lost (-want +got):\n%s", diff)
	}
}

func TestParseContextRejectsBarePair(t *testing.T) {
	t.Parallel()
	if _, err := parseContext("", []string{"pages_read"}); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
