package slug

import (
	"regexp"
	"strings"
)

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Make turns a title into a dash-separated file name component.
func Make(input string) string {
	return WithSeparator(input, "-")
}

// WithSeparator is Make with a caller-chosen separator; book ids use "_".
func WithSeparator(input, sep string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = nonAlphaNum.ReplaceAllString(s, sep)
	s = strings.Trim(s, sep)
	if s == "" {
		return "untitled"
	}
	return s
}
