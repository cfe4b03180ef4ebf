package main

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "osl/internal/platform/errors"
)

// parseContext merges an optional YAML or JSON file with key=value pairs; pairs win.
//
// Values are decoded as YAML scalars or sequences so that `pages_read=12` is a number and
// `curiosity_questions=[why?, how?]` is a list. Anything that would decode to a mapping stays
// a plain string, which keeps free text like "Channels: typed pipes" intact.
func parseContext(file string, pairs []string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(file) != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, apperrors.Mark(apperrors.Wrapf(err, "read context file %s", file), apperrors.ErrIOFailure)
		}
		if err := yaml.Unmarshal(raw, &out); err != nil {
			return nil, apperrors.Mark(apperrors.Wrapf(err, "parse context file %s", file), apperrors.ErrInvalidInput)
		}
		if out == nil {
			out = map[string]any{}
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, apperrors.WithHint(
				apperrors.Wrapf(apperrors.ErrInvalidInput, "context entry %q is not key=value", pair),
				"example: --set pages_read=12",
			)
		}
		out[key] = decodeValue(value)
	}
	return out, nil
}

func decodeValue(raw string) any {
	var decoded any
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return raw
	}
	switch decoded.(type) {
	case int, float64, bool, []any:
		return decoded
	default:
		return raw
	}
}
