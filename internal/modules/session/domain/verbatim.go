package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashText returns the hex SHA-256 digest used to prove learner text was stored verbatim.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether text hashes to expected.
func Verify(text, expected string) bool {
	return expected != "" && HashText(text) == strings.ToLower(strings.TrimSpace(expected))
}

type ModificationKind string

const (
	Unmodified         ModificationKind = "none"
	ModifiedParaphrase ModificationKind = "ai_paraphrase"
	ModifiedWhitespace ModificationKind = "whitespace_only"
	ModifiedTruncation ModificationKind = "truncation"
	ModifiedExpansion  ModificationKind = "expansion"
	ModifiedGeneral    ModificationKind = "general_modification"
)

type Modification struct {
	Modified     bool
	OriginalHash string
	CurrentHash  string
	Kind         ModificationKind
	Details      string
}

var paraphraseMarkers = []string{
	"The user said:",
	"They mentioned:",
	"According to:",
	"In summary,",
	"To summarize,",
	"paraphrased:",
	"In other words:",
}

// DetectModification classifies how current differs from the original learner text.
func DetectModification(original, current string) Modification {
	m := Modification{OriginalHash: HashText(original), CurrentHash: HashText(current), Kind: Unmodified}
	if m.OriginalHash == m.CurrentHash {
		return m
	}
	m.Modified = true
	for _, marker := range paraphraseMarkers {
		if strings.Contains(current, marker) && !strings.Contains(original, marker) {
			m.Kind = ModifiedParaphrase
			m.Details = fmt.Sprintf("paraphrase marker detected: %q", marker)
			return m
		}
	}
	switch {
	case strings.TrimSpace(original) == strings.TrimSpace(current):
		m.Kind = ModifiedWhitespace
		m.Details = "only whitespace differs"
	case strings.Contains(original, current):
		m.Kind = ModifiedTruncation
		m.Details = fmt.Sprintf("truncated from %d to %d characters", len(original), len(current))
	case strings.Contains(current, original):
		m.Kind = ModifiedExpansion
		m.Details = fmt.Sprintf("expanded from %d to %d characters", len(original), len(current))
	default:
		m.Kind = ModifiedGeneral
		m.Details = "content altered"
	}
	return m
}
