package service

import (
	"context"

	"go.uber.org/zap"

	coach "osl/internal/modules/coach/domain"
	"osl/internal/modules/governance/domain"
	governanceout "osl/internal/modules/governance/port/out"
	"osl/internal/platform/clock"
	apperrors "osl/internal/platform/errors"
	"osl/internal/platform/logging"
)

type GovernanceService struct {
	clock  clock.Clock
	store  governanceout.CoachStore
	logger *zap.Logger
}

func NewGovernanceService(clock clock.Clock, store governanceout.CoachStore, logger *zap.Logger) *GovernanceService {
	return &GovernanceService{clock: clock, store: store, logger: logging.OrNop(logger)}
}

// CheckResult is one persisted gate evaluation and the recovery steps it caused.
type CheckResult struct {
	Evaluation domain.Evaluation
	From       coach.RecoveryState
	Steps      []coach.RecoveryState
	Status     coach.GovernanceStatus
}

// Check evaluates every gate against the stored thresholds and metrics, records the verdicts
// and walks the recovery state toward the position the aggregate implies.
func (s *GovernanceService) Check(ctx context.Context) (CheckResult, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	now := s.clock.Now()
	eval := domain.Evaluate(state.GovernanceThresholds, state.PerformanceMetrics, state.ActiveBooks, now)
	domain.Apply(&state.GovernanceStatus, eval, now)
	state.PerformanceMetrics.CurrentCardDebtRatio = state.PerformanceMetrics.CardDebtRatio()

	from := state.GovernanceStatus.RecoveryState
	if from == "" {
		from = coach.RecoveryNormal
	}
	steps := domain.Plan(from, eval.Overall)
	at := from
	for _, step := range steps {
		if res := domain.ValidateRecovery(at, step); !res.Valid {
			return CheckResult{}, apperrors.Newf("recovery plan produced an illegal step: %s", res.Error)
		}
		at = step
	}
	state.GovernanceStatus.RecoveryState = at
	state.LastUpdated = now
	if err := s.store.Save(ctx, state); err != nil {
		return CheckResult{}, err
	}

	fields := []zap.Field{
		zap.String("overall", string(eval.Overall)),
		zap.String("recovery_from", string(from)),
		zap.String("recovery_to", string(at)),
	}
	if failing := eval.Failing(); len(failing) > 0 {
		names := make([]string, 0, len(failing))
		for _, g := range failing {
			names = append(names, string(g))
		}
		s.logger.Warn("governance gates failing", append(fields, zap.Strings("gates", names))...)
	} else {
		s.logger.Info("governance gates passing", fields...)
	}
	return CheckResult{Evaluation: eval, From: from, Steps: steps, Status: state.GovernanceStatus}, nil
}

// Advance moves the recovery state by hand. A rejected move is returned as a Result, not an error.
func (s *GovernanceService) Advance(ctx context.Context, to coach.RecoveryState) (coach.RecoveryState, domain.Result, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return "", domain.Result{}, err
	}
	from := state.GovernanceStatus.RecoveryState
	if from == "" {
		from = coach.RecoveryNormal
	}
	res := domain.ValidateRecovery(from, to)
	if !res.Valid {
		return from, res, nil
	}
	state.GovernanceStatus.RecoveryState = to
	state.LastUpdated = s.clock.Now()
	if err := s.store.Save(ctx, state); err != nil {
		return "", domain.Result{}, err
	}
	s.logger.Info("recovery state advanced", zap.String("from", string(from)), zap.String("to", string(to)))
	return from, res, nil
}
