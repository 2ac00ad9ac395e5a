package interfaces

import (
	"context"

	"fx-analyst-bot/internal/types"
)

// ChartRenderer draws one pair. Callers must only pass resolved price and RSI values.
type ChartRenderer interface {
	Render(ctx context.Context, pair types.Pair, price, rsi float64, setup *types.TradeSetup) (*types.ChartArtifact, error)
}
