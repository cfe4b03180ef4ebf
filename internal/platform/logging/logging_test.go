package logging_test

import (
	"testing"

	"osl/internal/platform/config"
	"osl/internal/platform/logging"
)

func TestNewBuildsBothFormats(t *testing.T) {
	t.Parallel()
	for _, format := range []string{"json", "console"} {
		logger, err := logging.New(config.LogConfig{Level: "info", Format: format})
		if err != nil {
			t.Fatalf("format %s: %v", format, err)
		}
		logger.Debug("discarded")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()
	if _, err := logging.New(config.LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Fatalf("unknown level should fail")
	}
}

func TestOrNop(t *testing.T) {
	t.Parallel()
	if logging.OrNop(nil) == nil {
		t.Fatalf("expected nop logger")
	}
}
