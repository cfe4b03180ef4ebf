package in

import (
	"context"

	"osl/internal/modules/governance/dto"
	governancein "osl/internal/modules/governance/port/in"
)

type CLIHandler struct {
	usecase governancein.Usecase
}

func NewCLIHandler(usecase governancein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Check(ctx context.Context) (dto.CheckOutput, error) {
	return h.usecase.Check(ctx)
}

func (h CLIHandler) Advance(ctx context.Context, to string) (dto.AdvanceOutput, error) {
	return h.usecase.Advance(ctx, dto.AdvanceInput{To: to})
}
