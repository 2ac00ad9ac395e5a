package interfaces

import (
	"context"

	"fx-analyst-bot/internal/types"
)

// MarketData is the market-data provider: one query per field, each may fail independently.
type MarketData interface {
	RSI(ctx context.Context, pair types.Pair) (float64, error)
	Rate(ctx context.Context, pair types.Pair) (float64, error)
	Name() string
}
