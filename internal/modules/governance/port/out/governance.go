package out

import (
	"context"

	coach "osl/internal/modules/coach/domain"
)

// CoachStore reads and writes the coach document that carries thresholds, metrics and governance status.
type CoachStore interface {
	Load(ctx context.Context) (coach.CoachState, error)
	Save(ctx context.Context, state coach.CoachState) error
}
