package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	coach "osl/internal/modules/coach/domain"
	"osl/internal/modules/governance/service"
	"osl/internal/platform/clock"
	apperrors "osl/internal/platform/errors"
)

var fixedNow = time.Date(2026, 7, 3, 9, 0, 0, 0, time.UTC)

type memoryStore struct {
	state coach.CoachState
	saves int
	err   error
}

func (m *memoryStore) Load(context.Context) (coach.CoachState, error) {
	if m.err != nil {
		return coach.CoachState{}, m.err
	}
	return m.state, nil
}

func (m *memoryStore) Save(_ context.Context, state coach.CoachState) error {
	m.saves++
	m.state = state
	return nil
}

func healthyState() coach.CoachState {
	state := coach.NewCoachState(fixedNow)
	state.PerformanceMetrics.AvgRetrieval7d = 88
	state.PerformanceMetrics.CardsDue = 30
	state.PerformanceMetrics.InterleavingSessionsWeek = 2
	return state
}

func TestCheckPersistsVerdictsAndWalksRecovery(t *testing.T) {
	t.Parallel()
	store := &memoryStore{state: healthyState()}
	store.state.PerformanceMetrics.AvgRetrieval7d = 70
	svc := service.NewGovernanceService(clock.Fixed(fixedNow), store, nil)

	result, err := svc.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Evaluation.Overall != coach.OverallBlocked {
		t.Fatalf("expected blocked, got %s", result.Evaluation.Overall)
	}
	if diff := cmp.Diff([]coach.RecoveryState{coach.RecoveryBlocked}, result.Steps); diff != "" {
		t.Fatalf("recovery steps mismatch (-want +got):\n%s", diff)
	}
	status := store.state.GovernanceStatus
	if status.RecoveryState != coach.RecoveryBlocked || status.CalibrationGate != coach.GateFailing || !status.RemediationActive {
		t.Fatalf("status not persisted: %+v", status)
	}
	if store.saves != 1 {
		t.Fatalf("expected a single save, got %d", store.saves)
	}

	again, err := svc.Check(context.Background())
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if len(again.Steps) != 0 || store.state.GovernanceStatus.RecoveryState != coach.RecoveryBlocked {
		t.Fatalf("blocked state should hold until remediation is entered by hand: %+v", again.Steps)
	}
}

func TestRemediationCycleReturnsToNormal(t *testing.T) {
	t.Parallel()
	store := &memoryStore{state: healthyState()}
	store.state.GovernanceStatus.RecoveryState = coach.RecoveryBlocked
	svc := service.NewGovernanceService(clock.Fixed(fixedNow), store, nil)

	from, res, err := svc.Advance(context.Background(), coach.RecoveryNormal)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.Valid || from != coach.RecoveryBlocked || res.Suggestion != "Must enter REMEDIATION first to address gate failures" {
		t.Fatalf("BLOCKED -> NORMAL must be rejected: %+v", res)
	}
	if store.saves != 0 {
		t.Fatalf("rejected advance must not write")
	}

	if _, res, err := svc.Advance(context.Background(), coach.RecoveryRemediation); err != nil || !res.Valid {
		t.Fatalf("BLOCKED -> REMEDIATION should be accepted: %+v %v", res, err)
	}
	result, err := svc.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.From != coach.RecoveryRemediation || store.state.GovernanceStatus.RecoveryState != coach.RecoveryRecovery {
		t.Fatalf("passing gates should move remediation into recovery, got %s", store.state.GovernanceStatus.RecoveryState)
	}
	if _, err := svc.Check(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if store.state.GovernanceStatus.RecoveryState != coach.RecoveryNormal {
		t.Fatalf("recovery with passing gates should settle at NORMAL, got %s", store.state.GovernanceStatus.RecoveryState)
	}
}

func TestCheckPropagatesLoadErrors(t *testing.T) {
	t.Parallel()
	store := &memoryStore{err: apperrors.ErrNotFound}
	svc := service.NewGovernanceService(clock.Fixed(fixedNow), store, nil)
	if _, err := svc.Check(context.Background()); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
