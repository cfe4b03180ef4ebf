package domain

import (
	"fmt"

	coach "osl/internal/modules/coach/domain"
)

var recoveryTransitions = map[coach.RecoveryState][]coach.RecoveryState{
	coach.RecoveryNormal:      {coach.RecoveryWarning, coach.RecoveryBlocked},
	coach.RecoveryWarning:     {coach.RecoveryNormal, coach.RecoveryBlocked},
	coach.RecoveryBlocked:     {coach.RecoveryRemediation},
	coach.RecoveryRemediation: {coach.RecoveryRecovery},
	coach.RecoveryRecovery:    {coach.RecoveryNormal, coach.RecoveryWarning},
}

// Result is the outcome of a recovery transition check.
type Result struct {
	Valid      bool
	Error      string
	Suggestion string
	Allowed    []coach.RecoveryState
}

func AllowedRecovery(from coach.RecoveryState) []coach.RecoveryState {
	next := recoveryTransitions[from]
	out := make([]coach.RecoveryState, len(next))
	copy(out, next)
	return out
}

// ValidateRecovery checks a move in the remediation cycle. Rejections carry the allowed set.
func ValidateRecovery(from, to coach.RecoveryState) Result {
	for _, s := range recoveryTransitions[from] {
		if s == to {
			return Result{Valid: true}
		}
	}
	return Result{
		Error:      fmt.Sprintf("Invalid governance transition: %s -> %s", from, to),
		Allowed:    AllowedRecovery(from),
		Suggestion: recoverySuggestion(from, to),
	}
}

func recoverySuggestion(from, to coach.RecoveryState) string {
	switch {
	case from == coach.RecoveryBlocked && to == coach.RecoveryNormal:
		return "Must enter REMEDIATION first to address gate failures"
	case from == coach.RecoveryRemediation && to == coach.RecoveryNormal:
		return "Complete remediation activities and enter RECOVERY first"
	default:
		return "Follow the governance recovery process"
	}
}

// recoveryPlan maps the current recovery state and the latest gate aggregate to the
// moves taken automatically after an evaluation. Leaving BLOCKED always takes an
// explicit move into REMEDIATION; a plan never skips that step.
var recoveryPlan = map[coach.RecoveryState]map[coach.OverallState][]coach.RecoveryState{
	coach.RecoveryNormal: {
		coach.OverallRemediation: {coach.RecoveryWarning},
		coach.OverallBlocked:     {coach.RecoveryBlocked},
	},
	coach.RecoveryWarning: {
		coach.OverallNormal:  {coach.RecoveryNormal},
		coach.OverallBlocked: {coach.RecoveryBlocked},
	},
	coach.RecoveryBlocked: {},
	coach.RecoveryRemediation: {
		coach.OverallNormal:      {coach.RecoveryRecovery},
		coach.OverallRemediation: {coach.RecoveryRecovery},
	},
	coach.RecoveryRecovery: {
		coach.OverallNormal:      {coach.RecoveryNormal},
		coach.OverallRemediation: {coach.RecoveryWarning},
		coach.OverallBlocked:     {coach.RecoveryWarning, coach.RecoveryBlocked},
	},
}

// Plan returns the legal steps from current toward the state the aggregate calls for.
// An empty plan means the recovery state stays where it is.
func Plan(current coach.RecoveryState, overall coach.OverallState) []coach.RecoveryState {
	steps := recoveryPlan[current][overall]
	out := make([]coach.RecoveryState, len(steps))
	copy(out, steps)
	return out
}

// TargetFor is where Plan ends up.
func TargetFor(current coach.RecoveryState, overall coach.OverallState) coach.RecoveryState {
	steps := recoveryPlan[current][overall]
	if len(steps) == 0 {
		return current
	}
	return steps[len(steps)-1]
}
