package usecase

import (
	"context"
	"strings"

	coach "osl/internal/modules/coach/domain"
	"osl/internal/modules/governance/dto"
	governancein "osl/internal/modules/governance/port/in"
	"osl/internal/modules/governance/service"
)

type Interactor struct {
	svc *service.GovernanceService
}

func NewInteractor(svc *service.GovernanceService) governancein.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Check(ctx context.Context) (dto.CheckOutput, error) {
	result, err := i.svc.Check(ctx)
	if err != nil {
		return dto.CheckOutput{}, err
	}
	verdicts := make([]dto.VerdictOutput, 0, len(result.Evaluation.Verdicts))
	for _, v := range result.Evaluation.Verdicts {
		verdicts = append(verdicts, dto.VerdictOutput{
			Gate:      string(v.Gate),
			Passing:   v.Passing,
			Critical:  v.Gate.Critical(),
			Status:    v.Status,
			Value:     v.Value,
			Threshold: v.Threshold,
			Message:   v.Message,
			Action:    v.Action,
			Offending: v.Offending,
		})
	}
	return dto.CheckOutput{
		Verdicts:          verdicts,
		Overall:           string(result.Evaluation.Overall),
		RecoveryFrom:      string(result.From),
		RecoveryState:     string(result.Status.RecoveryState),
		RecoverySteps:     recoveryNames(result.Steps),
		RemediationActive: result.Status.RemediationActive,
	}, nil
}

func (i *Interactor) Advance(ctx context.Context, input dto.AdvanceInput) (dto.AdvanceOutput, error) {
	to, err := coach.ParseRecoveryState(strings.ToUpper(strings.TrimSpace(input.To)))
	if err != nil {
		return dto.AdvanceOutput{}, err
	}
	from, res, err := i.svc.Advance(ctx, to)
	if err != nil {
		return dto.AdvanceOutput{}, err
	}
	return dto.AdvanceOutput{
		Valid:      res.Valid,
		From:       string(from),
		To:         string(to),
		Error:      res.Error,
		Suggestion: res.Suggestion,
		Allowed:    recoveryNames(res.Allowed),
	}, nil
}

func recoveryNames(states []coach.RecoveryState) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, string(s))
	}
	return out
}
