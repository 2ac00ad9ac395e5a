package pipelineobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/trace"
	"fx-analyst-bot/internal/types"
)

type observableRunner struct {
	runner interfaces.Runner
}

var _ interfaces.Runner = (*observableRunner)(nil)

func Wrap(runner interfaces.Runner) interfaces.Runner {
	return &observableRunner{runner: runner}
}

func (obs *observableRunner) Run(ctx context.Context) (*types.RunReport, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline.Run")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting analysis run")

	report, err := obs.runner.Run(ctx)
	if report != nil {
		span.SetAttributes(attribute.String("run_id", report.RunID))
		ctx = logger.WithRunID(ctx, report.RunID)
	}
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Analysis run failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return report, err
	}

	logger.InfoSkip(ctx, 1, "Analysis run completed",
		"setups", len(report.Result.Setups),
		"alerts", len(report.Alerts),
		"text_sent", report.TextSent,
		"charts_sent", len(report.ChartsSent),
		"journal_rows", report.JournalRows,
		"failures", len(report.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}
