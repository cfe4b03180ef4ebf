package markdown

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "osl/internal/platform/errors"
)

const separator = "---\n"

// SplitFrontmatter separates a leading YAML block from the note body. Notes without one
// come back with empty metadata.
func SplitFrontmatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, separator) {
		return map[string]any{}, content, nil
	}
	rest := strings.TrimPrefix(content, separator)
	idx := strings.Index(rest, "\n---\n")
	if idx < 0 {
		return nil, "", apperrors.Wrap(apperrors.ErrInvalidInput, "frontmatter is missing its closing separator")
	}
	raw := rest[:idx]
	body := rest[idx+len("\n---\n"):]

	decoded := map[string]any{}
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, "", apperrors.Mark(apperrors.Wrap(err, "unmarshal frontmatter"), apperrors.ErrInvalidInput)
	}
	return decoded, body, nil
}

func RenderFrontmatter(meta map[string]any, body string) (string, error) {
	raw, err := yaml.Marshal(meta)
	if err != nil {
		return "", apperrors.Wrap(err, "marshal frontmatter")
	}
	buf := bytes.Buffer{}
	buf.WriteString(separator)
	buf.Write(raw)
	buf.WriteString(separator)
	if !strings.HasPrefix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString(body)
	return buf.String(), nil
}
