package markdown

import "strings"

// ReplaceManagedBlock swaps the text between the markers for generated, appending a new
// block when the body has none. Text outside the markers is left alone.
func ReplaceManagedBlock(body, startMarker, endMarker, generated string) string {
	start := strings.Index(body, startMarker)
	end := strings.Index(body, endMarker)
	block := startMarker + "\n" + generated + "\n" + endMarker

	if start >= 0 && end > start {
		end += len(endMarker)
		return body[:start] + block + body[end:]
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return block + "\n"
	}
	if strings.HasSuffix(body, "\n") {
		return body + "\n" + block + "\n"
	}
	return body + "\n\n" + block + "\n"
}

// ManagedLines returns the non-blank lines currently inside the block, trimmed.
func ManagedLines(body, startMarker, endMarker string) []string {
	start := strings.Index(body, startMarker)
	end := strings.Index(body, endMarker)
	if start < 0 || end <= start {
		return nil
	}
	lines := []string{}
	for _, line := range strings.Split(body[start+len(startMarker):end], "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
