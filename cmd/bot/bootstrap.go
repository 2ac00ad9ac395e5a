package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"fx-analyst-bot/internal/alert"
	"fx-analyst-bot/internal/chart"
	"fx-analyst-bot/internal/headlines"
	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/journal"
	"fx-analyst-bot/internal/journal/journalobs"
	"fx-analyst-bot/internal/llm"
	"fx-analyst-bot/internal/llm/claude"
	"fx-analyst-bot/internal/llm/gemini"
	"fx-analyst-bot/internal/llm/llmobs"
	"fx-analyst-bot/internal/llm/noop"
	"fx-analyst-bot/internal/llm/openai"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/marketdata/alphavantage"
	"fx-analyst-bot/internal/marketdata/cache"
	"fx-analyst-bot/internal/marketdata/marketdataobs"
	"fx-analyst-bot/internal/marketdata/static"
	"fx-analyst-bot/internal/notifier/lognotify"
	"fx-analyst-bot/internal/notifier/telegram"
	"fx-analyst-bot/internal/pipeline"
	"fx-analyst-bot/internal/pipeline/pipelineobs"
	"fx-analyst-bot/internal/store"
	"fx-analyst-bot/internal/trace"
	"fx-analyst-bot/internal/types"
)

// initializeSystem loads .env and initializes the logger
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initializeTracing starts the tracer described by the config. A failure
// leaves tracing off; the run goes ahead without spans.
func initializeTracing(ctx context.Context, cfg *store.Config) {
	pairs := make([]string, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		pairs = append(pairs, p.Name)
	}
	err := trace.Init(trace.Options{
		Enabled:     cfg.Tracing.Enabled,
		Pretty:      cfg.Tracing.Pretty,
		ServiceName: trace.DefaultServiceName,
		Mode:        cfg.Mode,
		Pairs:       pairs,
	})
	if err != nil {
		logger.Warn(ctx, "Tracing disabled", "error", err)
	}
}

// loadConfig reads CONFIG_PATH, or config.yaml in the working directory
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	logger.Info(ctx, "Config loaded",
		"path", path,
		"mode", cfg.Mode,
		"pairs", len(cfg.Pairs),
		"market_data", cfg.MarketData.Provider,
		"llm", cfg.LLM.Provider,
		"journal", cfg.Journal.Sink,
	)
	return cfg, nil
}

// buildRunner wires every collaborator from the config. The returned func
// releases what needs closing.
func buildRunner(ctx context.Context, cfg *store.Config) (interfaces.Runner, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn(ctx, "Close failed", "error", err)
			}
		}
	}

	market, closeMarket := initializeMarketData(ctx, cfg)
	if closeMarket != nil {
		closers = append(closers, closeMarket)
	}

	analyst, err := initializeAnalyst(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	notifier, err := initializeNotifier(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	var renderer interfaces.ChartRenderer
	if cfg.Charts.Enabled {
		renderer = chart.New(chart.Options{
			Dir:        cfg.Charts.Dir,
			Width:      cfg.Charts.Width,
			Height:     cfg.Charts.Height,
			PaddingPct: cfg.Charts.PaddingPct,
			Watermark:  cfg.Charts.Watermark,
		})
	}

	jrnl, err := initializeJournal(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if jrnl != nil {
		closers = append(closers, jrnl.Close)
	}

	news, err := initializeHeadlines(cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	escapeText := func(s string) string {
		return telegram.Escape(cfg.Telegram.ParseMode, s)
	}
	p, err := pipeline.New(pipeline.Deps{
		MarketData: market,
		Analyst:    analyst,
		Notifier:   notifier,
		Renderer:   renderer,
		Journal:    jrnl,
		Headlines:  news,
	}, pipeline.Settings{
		Pairs:        cfg.Pairs,
		FetchSpacing: cfg.FetchSpacing(),
		System:       cfg.LLM.System,
		Alerts:       cfg.Alerts.Enabled,
		Thresholds:   alert.Thresholds{Overbought: cfg.Alerts.Overbought, Oversold: cfg.Alerts.Oversold},
		EscapeText:   escapeText,
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return pipelineobs.Wrap(p), closeAll, nil
}

// initializeMarketData picks the provider, puts the optional Redis cache in
// front of it and wraps the result with observability middleware
func initializeMarketData(ctx context.Context, cfg *store.Config) (interfaces.MarketData, func() error) {
	md := cfg.MarketData

	var provider interfaces.MarketData
	switch md.Provider {
	case "STATIC":
		provider = static.New(md.RSIPeriod)
		logger.Info(ctx, "Using STATIC synthetic market data")
	default:
		provider = alphavantage.New(alphavantage.Options{
			BaseURL:     md.BaseURL,
			APIKey:      cfg.Secrets.AlphaVantageKey,
			RSIInterval: md.RSIInterval,
			RSIPeriod:   md.RSIPeriod,
			Timeout:     time.Duration(md.TimeoutSeconds) * time.Second,
		})
	}

	var closeFn func() error
	if md.Cache.Enabled {
		rdb, err := cache.NewClient(ctx, md.Cache.Addr, cfg.Secrets.RedisPassword, md.Cache.DB)
		if err != nil {
			logger.Warn(ctx, "Redis unavailable, market data cache disabled", "addr", md.Cache.Addr, "error", err)
		} else {
			provider = cache.New(rdb, time.Duration(md.Cache.TTLSeconds)*time.Second, provider)
			closeFn = rdb.Close
		}
	}

	return marketdataobs.Wrap(provider), closeFn
}

// initializeAnalyst returns the configured LLM client with observability
func initializeAnalyst(ctx context.Context, cfg *store.Config) (interfaces.Analyst, error) {
	opts := llm.Options{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		BaseURL:     cfg.LLM.BaseURL,
	}

	var (
		analyst interfaces.Analyst
		err     error
	)
	switch cfg.LLM.Provider {
	case "OPENAI":
		opts.APIKey = cfg.Secrets.OpenAIKey
		analyst, err = openai.NewAnalyst(opts)
	case "CLAUDE":
		opts.APIKey = cfg.Secrets.ClaudeKey
		analyst, err = claude.NewAnalyst(opts)
	case "GEMINI":
		opts.APIKey = cfg.Secrets.GeminiKey
		analyst, err = gemini.NewAnalyst(ctx, opts)
	default:
		analyst = noop.NewAnalyst()
		logger.Warn(ctx, "No LLM provider configured - using Noop analyst (no trade setups)")
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s analyst: %w", cfg.LLM.Provider, err)
	}
	return llmobs.Wrap(analyst), nil
}

func initializeNotifier(ctx context.Context, cfg *store.Config) (interfaces.Notifier, error) {
	if cfg.DryRun() {
		return lognotify.New(), nil
	}
	return telegram.New(telegram.Options{
		BaseURL:       cfg.Telegram.BaseURL,
		Token:         cfg.Secrets.TelegramToken,
		ChatID:        cfg.Secrets.TelegramChatID,
		ParseMode:     cfg.Telegram.ParseMode,
		MaxMessageLen: cfg.Telegram.MaxMessageLen,
	})
}

// initializeJournal returns nil when no sink is configured
func initializeJournal(ctx context.Context, cfg *store.Config) (interfaces.Journal, error) {
	if cfg.Journal.Sink == journal.SinkNone {
		return nil, nil
	}
	j, err := journal.New(ctx, journal.Settings{
		Sink:            cfg.Journal.Sink,
		CSVDir:          cfg.Journal.CSVDir,
		RetentionDays:   cfg.Journal.RetentionDays,
		SQLitePath:      cfg.Journal.SQLitePath,
		SpreadsheetID:   cfg.Journal.SpreadsheetID,
		Range:           cfg.Journal.Range,
		CredentialsFile: cfg.Secrets.GoogleCredentials,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize %s journal: %w", cfg.Journal.Sink, err)
	}
	return journalobs.Wrap(j, cfg.Journal.Sink), nil
}

// initializeHeadlines returns nil unless headlines are enabled
func initializeHeadlines(cfg *store.Config) (interfaces.Headlines, error) {
	h := cfg.Headlines
	if !h.Enabled {
		return nil, nil
	}
	s, err := headlines.New(headlines.Source{
		Name:      h.Source,
		URL:       h.URL,
		Container: h.Container,
		Title:     h.Title,
		Link:      h.Link,
	}, h.Max, time.Duration(h.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// printReport writes the run summary as one JSON line on stdout
func printReport(report *types.RunReport) {
	b, err := json.Marshal(report)
	if err != nil {
		return
	}
	fmt.Println(string(b))
}
