// Package domain evaluates governance gates and models the recovery cycle.
// Nothing here performs I/O; callers persist the results.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	coach "osl/internal/modules/coach/domain"
)

type Gate string

const (
	GateCalibration  Gate = "calibration"
	GateCardDebt     Gate = "card_debt"
	GateTransfer     Gate = "transfer"
	GateInterleaving Gate = "interleaving"
)

// Critical gates block new sessions when failing.
func (g Gate) Critical() bool {
	return g == GateCalibration || g == GateCardDebt
}

const (
	transferProgress = 80.0
	transferWindow   = 30
)

type Verdict struct {
	Gate      Gate
	Passing   bool
	Status    string
	Value     string
	Threshold string
	Message   string
	Action    string
	Offending []string
}

// Evaluation holds one verdict per gate in a fixed order plus the aggregate.
type Evaluation struct {
	Verdicts []Verdict
	Overall  coach.OverallState
}

func (e Evaluation) Verdict(g Gate) (Verdict, bool) {
	for _, v := range e.Verdicts {
		if v.Gate == g {
			return v, true
		}
	}
	return Verdict{}, false
}

func (e Evaluation) Failing() []Gate {
	out := []Gate{}
	for _, v := range e.Verdicts {
		if !v.Passing {
			out = append(out, v.Gate)
		}
	}
	return out
}

// Evaluate maps thresholds, metrics and books to gate verdicts. It is deterministic for a fixed now.
func Evaluate(thresholds coach.GovernanceThresholds, metrics coach.PerformanceMetrics, books []coach.BookRecord, now time.Time) Evaluation {
	verdicts := []Verdict{
		calibration(thresholds.CalibrationGate.Current, metrics.AvgRetrieval7d),
		cardDebt(thresholds.CardDebtMultiplier.Current, metrics.DailyReviewThroughput, metrics.CardsDue),
		transfer(books, metrics.LastTransferProject, now),
		interleaving(thresholds.InterleavingPerWeek.Current, metrics.InterleavingSessionsWeek),
	}
	return Evaluation{Verdicts: verdicts, Overall: aggregate(verdicts)}
}

func aggregate(verdicts []Verdict) coach.OverallState {
	anyFailing := false
	for _, v := range verdicts {
		if v.Passing {
			continue
		}
		if v.Gate.Critical() {
			return coach.OverallBlocked
		}
		anyFailing = true
	}
	if anyFailing {
		return coach.OverallRemediation
	}
	return coach.OverallNormal
}

func calibration(threshold, avg float64) Verdict {
	v := Verdict{
		Gate:      GateCalibration,
		Passing:   avg >= threshold,
		Value:     fmt.Sprintf("%.1f%%", avg),
		Threshold: formatNumber(threshold) + "%",
		Message:   fmt.Sprintf("7-day average retrieval: %.1f%% (threshold: %s%%)", avg, formatNumber(threshold)),
	}
	v.Status = passFail(v.Passing, "Passing", "Failing")
	if !v.Passing {
		v.Action = "Pause new content, focus on review"
	}
	return v
}

func cardDebt(multiplier float64, throughput, due int) Verdict {
	limit := float64(throughput) * multiplier
	v := Verdict{
		Gate:      GateCardDebt,
		Passing:   float64(due) <= limit,
		Value:     fmt.Sprintf("%d cards", due),
		Threshold: fmt.Sprintf("%.0f cards", limit),
		Message:   fmt.Sprintf("Cards due: %d (max: %d × %s = %.0f)", due, throughput, formatNumber(multiplier), limit),
	}
	v.Status = passFail(v.Passing, "Passing", "Failing")
	if !v.Passing {
		v.Action = "Block new card creation"
	}
	return v
}

// transfer fails for every book past 80% progress without a transfer project in the
// last 30 days. A book-level project date wins over the global one.
func transfer(books []coach.BookRecord, globalProject *time.Time, now time.Time) Verdict {
	offending := []string{}
	for _, book := range books {
		if book.Progress() <= transferProgress {
			continue
		}
		last := book.LastTransferProject
		if last == nil {
			last = globalProject
		}
		if last == nil || daysBetween(*last, now) > transferWindow {
			offending = append(offending, book.Title)
		}
	}
	v := Verdict{
		Gate:      GateTransfer,
		Passing:   len(offending) == 0,
		Value:     fmt.Sprintf("%d books", len(offending)),
		Threshold: "0 books",
		Offending: offending,
	}
	v.Status = passFail(v.Passing, "Passing", "Needs Attention")
	if v.Passing {
		v.Message = "All books have transfer projects"
	} else {
		v.Message = "Books needing projects: " + strings.Join(offending, ", ")
		v.Action = "Complete transfer project before new material"
	}
	return v
}

func interleaving(target float64, sessions int) Verdict {
	v := Verdict{
		Gate:      GateInterleaving,
		Passing:   float64(sessions) >= target,
		Value:     fmt.Sprintf("%d sessions", sessions),
		Threshold: formatNumber(target) + " sessions",
		Message:   fmt.Sprintf("Interleaving sessions this week: %d (target: %s)", sessions, formatNumber(target)),
	}
	v.Status = passFail(v.Passing, "On Track", "Below Target")
	if !v.Passing {
		v.Action = "Schedule interleaving session"
	}
	return v
}

// Apply writes an evaluation into the governance fields of a coach document.
// The gate trigger timestamp only moves when something fails.
func Apply(status *coach.GovernanceStatus, eval Evaluation, now time.Time) {
	for _, v := range eval.Verdicts {
		gs := coach.GatePassing
		if !v.Passing {
			gs = coach.GateFailing
		}
		switch v.Gate {
		case GateCalibration:
			status.CalibrationGate = gs
		case GateCardDebt:
			status.CardDebtGate = gs
		case GateTransfer:
			status.TransferGate = gs
		case GateInterleaving:
			status.InterleavingGate = gs
		}
	}
	status.OverallState = eval.Overall
	status.RemediationActive = eval.Overall != coach.OverallNormal
	if eval.Overall != coach.OverallNormal {
		ts := now
		status.LastGateTrigger = &ts
	}
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func passFail(ok bool, pass, fail string) string {
	if ok {
		return pass
	}
	return fail
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
