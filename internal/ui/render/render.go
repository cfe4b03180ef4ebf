// Package render turns usecase outputs into terminal text for the osl command.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	coachdto "osl/internal/modules/coach/dto"
	governancedto "osl/internal/modules/governance/dto"
	sessiondto "osl/internal/modules/session/dto"
	"osl/internal/ui/theme"
)

const stamp = "2006-01-02 15:04"

// Gates renders one line per gate followed by the aggregate and recovery state.
func Gates(out governancedto.CheckOutput) string {
	width := 0
	for _, v := range out.Verdicts {
		width = max(width, len(v.Gate))
	}
	lines := []string{theme.Title.Render("Governance gates")}
	for _, v := range out.Verdicts {
		mark := theme.Pass.Render("PASS")
		if !v.Passing {
			mark = theme.Fail.Render("FAIL")
			if !v.Critical {
				mark = theme.Hot.Render("WARN")
			}
		}
		line := fmt.Sprintf("%s  %-*s  %s (threshold %s)", mark, width, v.Gate, v.Value, v.Threshold)
		lines = append(lines, line)
		if !v.Passing {
			lines = append(lines, theme.Muted.Render("      "+v.Message))
			if v.Action != "" {
				lines = append(lines, theme.Muted.Render("      action: "+v.Action))
			}
		}
	}
	lines = append(lines, "", fmt.Sprintf("%s %s", theme.Label.Render("overall:"), theme.ForOverall(out.Overall).Render(out.Overall)))
	recovery := out.RecoveryState
	if len(out.RecoverySteps) > 0 {
		recovery = fmt.Sprintf("%s -> %s", out.RecoveryFrom, strings.Join(out.RecoverySteps, " -> "))
	}
	lines = append(lines, fmt.Sprintf("%s %s", theme.Label.Render("recovery:"), recovery))
	return theme.Pane.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Rejection renders a refused state change with what is allowed instead.
func Rejection(from, to, reason, suggestion string, allowed, missing []string) string {
	lines := []string{
		theme.Fail.Render(fmt.Sprintf("rejected %s -> %s", from, to)),
		reason,
	}
	if len(missing) > 0 {
		lines = append(lines, theme.Label.Render("missing: ")+strings.Join(missing, ", "))
	}
	if len(allowed) > 0 {
		lines = append(lines, theme.Label.Render("allowed: ")+strings.Join(allowed, ", "))
	}
	if suggestion != "" {
		lines = append(lines, theme.Muted.Render(suggestion))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Actions lists the commands that move the session forward.
func Actions(actions []sessiondto.ActionOutput) string {
	if len(actions) == 0 {
		return theme.Muted.Render("no further actions")
	}
	lines := []string{theme.Title.Render("Next")}
	for _, a := range actions {
		lines = append(lines, fmt.Sprintf("  %s  %s", theme.Hot.Render(a.State), a.Label))
		if a.Command != "" {
			lines = append(lines, theme.Muted.Render("      "+a.Command))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Session renders the active session summary.
func Session(s sessiondto.ActiveSessionOutput, now time.Time) string {
	retrieval := "n/a"
	if s.AvgRetrieval != nil {
		retrieval = fmt.Sprintf("%.1f%%", *s.AvgRetrieval)
	}
	rows := [][2]string{
		{"session", s.SessionID},
		{"book", fmt.Sprintf("%s (%s)", s.BookTitle, s.BookID)},
		{"type", s.Type},
		{"state", theme.Hot.Render(s.State) + theme.Muted.Render(" for "+now.Sub(s.StateEnteredAt).Round(time.Second).String())},
		{"started", s.StartedAt.Local().Format(stamp)},
		{"micro-loops", fmt.Sprint(s.MicroLoops)},
		{"pages read", fmt.Sprint(s.PagesRead)},
		{"flashcards", fmt.Sprintf("%d/%d", s.FlashcardsCreated, s.MaxFlashcards)},
		{"retrieval", retrieval},
		{"misconceptions", fmt.Sprintf("%d active", s.ActiveMisconceptions)},
	}
	return theme.Pane.Render(keyValues(rows))
}

// State renders the coach dashboard: books, metrics and governance.
func State(s coachdto.StateOutput) string {
	sections := []string{theme.Title.Render("Books")}
	if len(s.Books) == 0 {
		sections = append(sections, theme.Muted.Render("  none yet, add one with 'osl book add'"))
	}
	for _, b := range s.Books {
		sections = append(sections, fmt.Sprintf("  %s  %s  %d/%d (%.0f%%)  %d sessions  retrieval %.1f%%",
			theme.Label.Render(b.ID), b.Title, b.CurrentPage, b.TotalPages, b.Progress, b.SessionsCompleted, b.AvgRetrievalScore))
	}
	m := s.Metrics
	sections = append(sections, "", theme.Title.Render("Metrics"), keyValues([][2]string{
		{"retrieval 7d", fmt.Sprintf("%.1f%%", m.AvgRetrieval7d)},
		{"prediction 7d", fmt.Sprintf("%.1f%%", m.AvgPredictionAccuracy7d)},
		{"cards due", fmt.Sprintf("%d (throughput %d, ratio %.2f)", m.CardsDue, m.DailyReviewThroughput, m.CardDebtRatio)},
		{"interleaving", fmt.Sprintf("%d this week", m.InterleavingSessionsWeek)},
		{"misconceptions", fmt.Sprintf("%d active, %d resolved", m.MisconceptionsActive, m.MisconceptionsResolved)},
	}))
	g := s.Governance
	sections = append(sections, "", theme.Title.Render("Governance"), keyValues([][2]string{
		{"overall", theme.ForOverall(g.OverallState).Render(g.OverallState)},
		{"recovery", g.RecoveryState},
		{"calibration", g.CalibrationGate},
		{"card debt", g.CardDebtGate},
		{"transfer", g.TransferGate},
		{"interleaving", g.InterleavingGate},
	}))
	sections = append(sections, "", theme.Muted.Render(fmt.Sprintf("schema %s, updated %s", s.Version, s.LastUpdated.Local().Format(stamp))))
	return theme.Pane.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// Thresholds renders each threshold with its allowed range.
func Thresholds(ts []coachdto.ThresholdOutput) string {
	rows := make([][2]string, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, [2]string{t.Name, fmt.Sprintf("%g  [%g..%g]", t.Current, t.Min, t.Max)})
	}
	return keyValues(rows)
}

func keyValues(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %s  %s", theme.Label.Render(fmt.Sprintf("%-*s", width, r[0])), r[1]))
	}
	return strings.Join(lines, "\n")
}
