package llmobs

import (
	"context"
	"time"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/trace"
)

// observableAnalyst wraps an Analyst with observability (logging & tracing)
type observableAnalyst struct {
	analyst interfaces.Analyst
}

// Compile-time interface check
var _ interfaces.Analyst = (*observableAnalyst)(nil)

// Wrap wraps an analyst with observability middleware
func Wrap(analyst interfaces.Analyst) interfaces.Analyst {
	return &observableAnalyst{analyst: analyst}
}

func (oa *observableAnalyst) Analyze(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Analyze")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting market analysis", "prompt_len", len(prompt))

	start := time.Now()
	raw, err := oa.analyst.Analyze(ctx, system, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Market analysis failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Market analysis received",
		"response_len", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return raw, nil
}
