package interfaces

import (
	"context"

	"fx-analyst-bot/internal/types"
)

type Runner interface {
	Run(ctx context.Context) (*types.RunReport, error)
}
