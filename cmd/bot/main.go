package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/pipeline"
	"fx-analyst-bot/internal/trace"
)

const (
	exitOK = iota
	exitFailed
	exitUndelivered
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	defer shutdownTracer()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return exitFailed
	}
	initializeTracing(ctx, cfg)
	if cfg.DryRun() {
		logger.Warn(ctx, "Running in DRY_RUN mode - nothing is sent to Telegram")
	}

	runner, closeFn, err := buildRunner(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build pipeline", err)
		return exitFailed
	}
	defer closeFn()

	report, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrAnalysis) {
			logger.ErrorWithErr(ctx, "Analysis service failed, nothing delivered", err)
		}
		return exitFailed
	}

	printReport(report)
	if !report.TextSent {
		return exitUndelivered
	}
	return exitOK
}

func shutdownTracer() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := trace.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush tracer: %v\n", err)
	}
}
