package domain

import (
	"fmt"
	"sort"
	"time"

	apperrors "osl/internal/platform/errors"
)

type ThresholdName string

const (
	ThresholdCalibration  ThresholdName = "calibration_gate"
	ThresholdCardDebt     ThresholdName = "card_debt_multiplier"
	ThresholdMaxNewCards  ThresholdName = "max_new_cards"
	ThresholdInterleaving ThresholdName = "interleaving_per_week"
)

var thresholdAliases = map[string]ThresholdName{
	"calibration":           ThresholdCalibration,
	"calibration_gate":      ThresholdCalibration,
	"card_debt":             ThresholdCardDebt,
	"card_debt_multiplier":  ThresholdCardDebt,
	"max_cards":             ThresholdMaxNewCards,
	"max_new_cards":         ThresholdMaxNewCards,
	"interleaving":          ThresholdInterleaving,
	"interleaving_per_week": ThresholdInterleaving,
}

// ParseThresholdName accepts both the document keys and the short CLI names.
func ParseThresholdName(raw string) (ThresholdName, error) {
	name, ok := thresholdAliases[raw]
	if !ok {
		known := make([]string, 0, len(thresholdAliases))
		for k := range thresholdAliases {
			known = append(known, k)
		}
		sort.Strings(known)
		return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown threshold %q (known: %v)", raw, known)
	}
	return name, nil
}

// GovernanceThreshold is a tunable value bounded by min <= current <= max.
type GovernanceThreshold struct {
	Min          float64   `json:"min"`
	Current      float64   `json:"current"`
	Max          float64   `json:"max"`
	LastAdjusted time.Time `json:"last_adjusted"`
}

func (t GovernanceThreshold) Validate() error {
	if t.Min > t.Max {
		return apperrors.Wrapf(apperrors.ErrThresholdOutOfRange, "min %g exceeds max %g", t.Min, t.Max)
	}
	if t.Current < t.Min || t.Current > t.Max {
		return apperrors.Wrapf(apperrors.ErrThresholdOutOfRange, "current %g outside [%g, %g]", t.Current, t.Min, t.Max)
	}
	return nil
}

// Tune returns the threshold with current set to value, or an error if value leaves the range.
func (t GovernanceThreshold) Tune(value float64, now time.Time) (GovernanceThreshold, error) {
	if value < t.Min || value > t.Max {
		return t, apperrors.WithHintf(
			apperrors.Wrapf(apperrors.ErrThresholdOutOfRange, "value %g outside [%g, %g]", value, t.Min, t.Max),
			"choose a value between %g and %g", t.Min, t.Max,
		)
	}
	t.Current = value
	t.LastAdjusted = now
	return t, nil
}

type GovernanceThresholds struct {
	CalibrationGate     GovernanceThreshold `json:"calibration_gate"`
	CardDebtMultiplier  GovernanceThreshold `json:"card_debt_multiplier"`
	MaxNewCards         GovernanceThreshold `json:"max_new_cards"`
	InterleavingPerWeek GovernanceThreshold `json:"interleaving_per_week"`
}

func DefaultThresholds(now time.Time) GovernanceThresholds {
	return GovernanceThresholds{
		CalibrationGate:     GovernanceThreshold{Min: 75, Current: 80, Max: 85, LastAdjusted: now},
		CardDebtMultiplier:  GovernanceThreshold{Min: 1.5, Current: 2.0, Max: 2.5, LastAdjusted: now},
		MaxNewCards:         GovernanceThreshold{Min: 4, Current: 8, Max: 10, LastAdjusted: now},
		InterleavingPerWeek: GovernanceThreshold{Min: 1, Current: 2, Max: 3, LastAdjusted: now},
	}
}

// Get returns a pointer to the named threshold.
func (g *GovernanceThresholds) Get(name ThresholdName) (*GovernanceThreshold, error) {
	switch name {
	case ThresholdCalibration:
		return &g.CalibrationGate, nil
	case ThresholdCardDebt:
		return &g.CardDebtMultiplier, nil
	case ThresholdMaxNewCards:
		return &g.MaxNewCards, nil
	case ThresholdInterleaving:
		return &g.InterleavingPerWeek, nil
	default:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown threshold %q", name)
	}
}

func (g GovernanceThresholds) Validate() error {
	named := []struct {
		name ThresholdName
		t    GovernanceThreshold
	}{
		{ThresholdCalibration, g.CalibrationGate},
		{ThresholdCardDebt, g.CardDebtMultiplier},
		{ThresholdMaxNewCards, g.MaxNewCards},
		{ThresholdInterleaving, g.InterleavingPerWeek},
	}
	for _, n := range named {
		if err := n.t.Validate(); err != nil {
			return apperrors.Wrap(err, fmt.Sprintf("threshold %s", n.name))
		}
	}
	return nil
}

// RecoveryState is the position in the governance remediation cycle.
type RecoveryState string

const (
	RecoveryNormal      RecoveryState = "NORMAL"
	RecoveryWarning     RecoveryState = "WARNING"
	RecoveryBlocked     RecoveryState = "BLOCKED"
	RecoveryRemediation RecoveryState = "REMEDIATION"
	RecoveryRecovery    RecoveryState = "RECOVERY"
)

func ParseRecoveryState(raw string) (RecoveryState, error) {
	switch s := RecoveryState(raw); s {
	case RecoveryNormal, RecoveryWarning, RecoveryBlocked, RecoveryRemediation, RecoveryRecovery:
		return s, nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown governance state %q", raw)
	}
}
