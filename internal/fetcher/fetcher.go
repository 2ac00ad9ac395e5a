// Package fetcher turns provider calls into PairIndicators. Provider failures
// never escape: each field that cannot be fetched becomes the unavailable sentinel.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/trace"
	"fx-analyst-bot/internal/types"
)

// ErrUnknownPair is returned for a pair outside the configured set.
var ErrUnknownPair = errors.New("fetcher: pair is not configured")

type Fetcher struct {
	provider interfaces.MarketData
	pairs    map[string]types.Pair
}

func New(provider interfaces.MarketData, pairs []types.Pair) *Fetcher {
	known := make(map[string]types.Pair, len(pairs))
	for _, p := range pairs {
		known[p.Name] = p
	}
	return &Fetcher{provider: provider, pairs: known}
}

// Fetch queries price and RSI independently. The only error is ErrUnknownPair.
func (f *Fetcher) Fetch(ctx context.Context, pair types.Pair) (types.PairIndicator, error) {
	if known, ok := f.pairs[pair.Name]; !ok || known.Symbol != pair.Symbol {
		return types.PairIndicator{}, fmt.Errorf("%w: %s", ErrUnknownPair, pair.Name)
	}

	ctx, span := trace.StartSpan(ctx, "fetch."+pair.Name)
	defer span.End()

	ind := types.PairIndicator{
		Pair:  pair,
		Price: f.read(ctx, pair, "price", f.provider.Rate, validPrice),
		RSI:   f.read(ctx, pair, "rsi", f.provider.RSI, validRSI),
	}

	logger.Info(ctx, "Pair fetched",
		"pair", pair.Name,
		"price", ind.Price.String(),
		"rsi", ind.RSI.Fixed(2),
	)
	return ind, nil
}

func (f *Fetcher) read(ctx context.Context, pair types.Pair, field string,
	call func(context.Context, types.Pair) (float64, error), valid func(float64) bool) types.Reading {
	v, err := call(ctx, pair)
	if err != nil {
		logger.Warn(ctx, "Market data unavailable", "pair", pair.Name, "field", field, "error", err)
		return types.Missing()
	}
	if !valid(v) {
		logger.Warn(ctx, "Market data out of range", "pair", pair.Name, "field", field, "value", v)
		return types.Missing()
	}
	return types.Available(v)
}

func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func validRSI(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}
