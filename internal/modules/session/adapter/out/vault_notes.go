package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"osl/internal/modules/session/domain"
	sessionout "osl/internal/modules/session/port/out"
	"osl/internal/platform/docstore"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/markdown"
	"osl/internal/platform/slug"
)

const (
	sessionLinksStart = "<!-- osl:sessions:start -->"
	sessionLinksEnd   = "<!-- osl:sessions:end -->"
)

// VaultNotes writes session notes and keeps each book note's session list current.
type VaultNotes struct {
	vaultDir string
}

func NewVaultNotes(vaultDir string) sessionout.NoteWriter {
	return &VaultNotes{vaultDir: vaultDir}
}

func (v *VaultNotes) WriteSession(_ context.Context, session domain.Session) (string, error) {
	date := session.StartTime
	dir := filepath.Join(v.vaultDir, "sessions", date.Format("2006"), date.Format("01"), date.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Mark(apperrors.Wrap(err, "create session note dir"), apperrors.ErrIOFailure)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.md", date.Format("150405"), slug.Make(session.BookTitle)))

	meta := map[string]any{
		"schema_version":     session.Version,
		"session_id":         session.SessionID,
		"book_id":            session.BookID,
		"session_type":       string(session.SessionType),
		"started_at":         session.StartTime.Format("2006-01-02T15:04:05Z07:00"),
		"duration_minutes":   session.DurationMinutes,
		"final_state":        string(session.State),
		"micro_loops":        len(session.MicroLoops),
		"pages_read":         session.PagesRead,
		"flashcards_created": session.FlashcardsCreated,
		"permanent_notes":    session.PermanentNotes(),
	}
	if avg, ok := session.AverageRetrieval(); ok {
		meta["avg_retrieval"] = avg
	}
	rendered, err := markdown.RenderFrontmatter(meta, sessionBody(session))
	if err != nil {
		return "", err
	}
	if err := docstore.WriteFileAtomic(path, []byte(rendered)); err != nil {
		return "", err
	}
	return path, nil
}

func sessionBody(session domain.Session) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "# Session %s\n\n", session.SessionID)
	fmt.Fprintf(&b, "- Book: [[%s]]\n- Duration: %d minutes\n- Flashcards: %d/%d\n",
		slug.Make(session.BookTitle), session.DurationMinutes, session.FlashcardsCreated, session.MaxFlashcards)

	if len(session.CuriosityQuestions) > 0 {
		b.WriteString("\n## Curiosity questions\n\n")
		for _, q := range session.CuriosityQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	if len(session.MicroLoops) > 0 {
		b.WriteString("\n## Micro-loops\n\n")
		for _, loop := range session.MicroLoops {
			score := "n/a"
			if loop.RetrievalScore != nil {
				score = fmt.Sprintf("%.1f%%", *loop.RetrievalScore)
			}
			fmt.Fprintf(&b, "%d. %s (retrieval %s)\n", loop.LoopID, loop.Pages, score)
		}
	}
	if len(session.MisconceptionsIdentified) > 0 {
		b.WriteString("\n## Misconceptions\n\n")
		for _, m := range session.MisconceptionsIdentified {
			mark := " "
			if m.Resolved {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s (%s)", mark, m.Description, m.Source)
			if m.Correction != "" {
				fmt.Fprintf(&b, ": %s", m.Correction)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// LinkToBook adds the session note to the managed list in books/<book_id>.md, keeping anything
// the learner wrote outside the managed block.
func (v *VaultNotes) LinkToBook(_ context.Context, session domain.Session, notePath string) (string, error) {
	dir := filepath.Join(v.vaultDir, "books")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Mark(apperrors.Wrap(err, "create book note dir"), apperrors.ErrIOFailure)
	}
	path := filepath.Join(dir, session.BookID+".md")

	meta := map[string]any{}
	body := fmt.Sprintf("# %s\n", session.BookTitle)
	if existing, err := os.ReadFile(path); err == nil {
		parsedMeta, parsedBody, splitErr := markdown.SplitFrontmatter(string(existing))
		if splitErr != nil {
			return "", apperrors.Wrapf(splitErr, "book note %s", path)
		}
		meta, body = parsedMeta, parsedBody
	} else if !os.IsNotExist(err) {
		return "", apperrors.Mark(apperrors.Wrap(err, "read book note"), apperrors.ErrIOFailure)
	}

	link := fmt.Sprintf("- %s [[%s]]", session.StartTime.Format("2006-01-02"), strings.TrimSuffix(filepath.Base(notePath), ".md"))
	links := append(markdown.ManagedLines(body, sessionLinksStart, sessionLinksEnd), link)
	links = dedupe(links)

	meta["book_id"] = session.BookID
	meta["title"] = session.BookTitle
	meta["sessions"] = len(links)
	body = markdown.ReplaceManagedBlock(body, sessionLinksStart, sessionLinksEnd, strings.Join(links, "\n"))
	rendered, err := markdown.RenderFrontmatter(meta, body)
	if err != nil {
		return "", err
	}
	if err := docstore.WriteFileAtomic(path, []byte(rendered)); err != nil {
		return "", err
	}
	return path, nil
}

func dedupe(lines []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	sort.Strings(out)
	return out
}
