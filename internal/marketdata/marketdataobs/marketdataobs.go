package marketdataobs

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/marketdata"
	"fx-analyst-bot/internal/trace"
	"fx-analyst-bot/internal/types"
)

// observableMarketData wraps a MarketData provider with observability (logging & tracing)
type observableMarketData struct {
	provider interfaces.MarketData
}

// Compile-time interface check
var _ interfaces.MarketData = (*observableMarketData)(nil)

// Wrap wraps a provider with observability middleware
func Wrap(provider interfaces.MarketData) interfaces.MarketData {
	return &observableMarketData{
		provider: provider,
	}
}

func (o *observableMarketData) Name() string {
	return o.provider.Name()
}

// RSI fetches the latest RSI with observability
func (o *observableMarketData) RSI(ctx context.Context, pair types.Pair) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.RSI")
	defer span.End()
	span.SetAttributes(
		attribute.String("pair", pair.Name),
		attribute.String("provider", o.provider.Name()),
	)

	logger.DebugSkip(ctx, 1, "Fetching RSI", "pair", pair.Name, "symbol", pair.Symbol)

	v, err := o.provider.RSI(ctx, pair)
	if err != nil {
		o.logFailure(ctx, "Failed to fetch RSI", pair, err)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "RSI fetched successfully", "pair", pair.Name, "rsi", v)
	return v, nil
}

// Rate fetches the spot exchange rate with observability
func (o *observableMarketData) Rate(ctx context.Context, pair types.Pair) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Rate")
	defer span.End()
	span.SetAttributes(
		attribute.String("pair", pair.Name),
		attribute.String("provider", o.provider.Name()),
	)

	logger.DebugSkip(ctx, 1, "Fetching exchange rate", "pair", pair.Name, "from", pair.Base(), "to", pair.Quote())

	v, err := o.provider.Rate(ctx, pair)
	if err != nil {
		o.logFailure(ctx, "Failed to fetch exchange rate", pair, err)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Exchange rate fetched successfully", "pair", pair.Name, "price", v)
	return v, nil
}

// logFailure reports the caller of the wrapped method. Throttling is expected
// on free API tiers and only warrants a warning.
func (o *observableMarketData) logFailure(ctx context.Context, msg string, pair types.Pair, err error) {
	if errors.Is(err, marketdata.ErrThrottled) {
		logger.WarnSkip(ctx, 2, msg, "pair", pair.Name, "provider", o.provider.Name(), "error", err)
		return
	}
	logger.ErrorWithErrSkip(ctx, 2, msg, err, "pair", pair.Name, "provider", o.provider.Name())
}
