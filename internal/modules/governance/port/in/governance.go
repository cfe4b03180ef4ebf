package in

import (
	"context"

	"osl/internal/modules/governance/dto"
)

type Usecase interface {
	Check(ctx context.Context) (dto.CheckOutput, error)
	Advance(ctx context.Context, input dto.AdvanceInput) (dto.AdvanceOutput, error)
}
