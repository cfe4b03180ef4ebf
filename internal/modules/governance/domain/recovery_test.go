package domain_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	coach "osl/internal/modules/coach/domain"
	"osl/internal/modules/governance/domain"
)

var recoveryStates = []coach.RecoveryState{
	coach.RecoveryNormal, coach.RecoveryWarning, coach.RecoveryBlocked, coach.RecoveryRemediation, coach.RecoveryRecovery,
}

var overallStates = []coach.OverallState{coach.OverallNormal, coach.OverallRemediation, coach.OverallBlocked}

func TestValidateRecovery(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from, to   coach.RecoveryState
		valid      bool
		allowed    []coach.RecoveryState
		suggestion string
	}{
		{from: coach.RecoveryBlocked, to: coach.RecoveryRemediation, valid: true},
		{from: coach.RecoveryRecovery, to: coach.RecoveryWarning, valid: true},
		{
			from: coach.RecoveryBlocked, to: coach.RecoveryNormal,
			allowed:    []coach.RecoveryState{coach.RecoveryRemediation},
			suggestion: "Must enter REMEDIATION first to address gate failures",
		},
		{
			from: coach.RecoveryRemediation, to: coach.RecoveryNormal,
			allowed:    []coach.RecoveryState{coach.RecoveryRecovery},
			suggestion: "Complete remediation activities and enter RECOVERY first",
		},
		{
			from: coach.RecoveryNormal, to: coach.RecoveryRecovery,
			allowed:    []coach.RecoveryState{coach.RecoveryWarning, coach.RecoveryBlocked},
			suggestion: "Follow the governance recovery process",
		},
	}
	for _, tc := range cases {
		res := domain.ValidateRecovery(tc.from, tc.to)
		if res.Valid != tc.valid {
			t.Fatalf("%s -> %s: valid=%v, want %v", tc.from, tc.to, res.Valid, tc.valid)
		}
		if tc.valid {
			continue
		}
		if diff := cmp.Diff(tc.allowed, res.Allowed); diff != "" {
			t.Fatalf("%s -> %s allowed mismatch (-want +got):\n%s", tc.from, tc.to, diff)
		}
		if res.Suggestion != tc.suggestion {
			t.Fatalf("%s -> %s suggestion = %q", tc.from, tc.to, res.Suggestion)
		}
	}
}

func TestPlansOnlyTakeLegalSteps(t *testing.T) {
	t.Parallel()
	for _, current := range recoveryStates {
		for _, overall := range overallStates {
			at := current
			for _, step := range domain.Plan(current, overall) {
				if res := domain.ValidateRecovery(at, step); !res.Valid {
					t.Fatalf("plan %s/%s takes illegal step %s -> %s", current, overall, at, step)
				}
				at = step
			}
			if at != domain.TargetFor(current, overall) {
				t.Fatalf("plan %s/%s ends at %s but target is %s", current, overall, at, domain.TargetFor(current, overall))
			}
		}
	}
}

func TestPlanMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		current coach.RecoveryState
		overall coach.OverallState
		want    coach.RecoveryState
	}{
		{coach.RecoveryNormal, coach.OverallBlocked, coach.RecoveryBlocked},
		{coach.RecoveryNormal, coach.OverallRemediation, coach.RecoveryWarning},
		{coach.RecoveryWarning, coach.OverallNormal, coach.RecoveryNormal},
		{coach.RecoveryBlocked, coach.OverallNormal, coach.RecoveryBlocked},
		{coach.RecoveryRemediation, coach.OverallBlocked, coach.RecoveryRemediation},
		{coach.RecoveryRemediation, coach.OverallNormal, coach.RecoveryRecovery},
		{coach.RecoveryRecovery, coach.OverallNormal, coach.RecoveryNormal},
		{coach.RecoveryRecovery, coach.OverallBlocked, coach.RecoveryBlocked},
	}
	for _, tc := range cases {
		if got := domain.TargetFor(tc.current, tc.overall); got != tc.want {
			t.Fatalf("%s with %s: got %s, want %s", tc.current, tc.overall, got, tc.want)
		}
	}
}
