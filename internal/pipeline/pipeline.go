// Package pipeline runs one analysis cycle: fetch every pair, ask the analyst,
// parse the answer and deliver text, charts and journal rows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fx-analyst-bot/internal/alert"
	"fx-analyst-bot/internal/fetcher"
	"fx-analyst-bot/internal/headlines"
	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/pacing"
	"fx-analyst-bot/internal/parser"
	"fx-analyst-bot/internal/prompt"
	"fx-analyst-bot/internal/types"
)

// ErrAnalysis wraps a failed analysis request. It is fatal to the run.
var ErrAnalysis = errors.New("analysis request failed")

// Delivery targets recorded in RunReport.Failures.
const (
	TargetText    = "text"
	TargetChart   = "chart"
	TargetImage   = "image"
	TargetJournal = "journal"
)

// Deps are the collaborators of a run. Renderer, Journal and Headlines are
// optional; a nil value turns the stage off.
type Deps struct {
	MarketData interfaces.MarketData
	Analyst    interfaces.Analyst
	Notifier   interfaces.Notifier
	Renderer   interfaces.ChartRenderer
	Journal    interfaces.Journal
	Headlines  interfaces.Headlines
}

type Settings struct {
	Pairs        []types.Pair
	FetchSpacing time.Duration
	System       string
	Alerts       bool
	Thresholds   alert.Thresholds
	// EscapeText makes scraped text literal for the notifier's parse mode
	EscapeText func(string) string
	// Now defaults to time.Now
	Now func() time.Time
}

type Pipeline struct {
	deps     Deps
	settings Settings
	fetcher  *fetcher.Fetcher
}

var _ interfaces.Runner = (*Pipeline)(nil)

func New(deps Deps, settings Settings) (*Pipeline, error) {
	if deps.MarketData == nil || deps.Analyst == nil || deps.Notifier == nil {
		return nil, errors.New("pipeline: market data, analyst and notifier are required")
	}
	if len(settings.Pairs) == 0 {
		return nil, errors.New("pipeline: no pairs configured")
	}
	if settings.System == "" {
		settings.System = prompt.System
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Pipeline{
		deps:     deps,
		settings: settings,
		fetcher:  fetcher.New(deps.MarketData, settings.Pairs),
	}, nil
}

// Run executes one cycle. The only errors are ErrAnalysis, an unknown pair and
// context cancellation; delivery problems are collected in the report.
func (p *Pipeline) Run(ctx context.Context) (*types.RunReport, error) {
	report := &types.RunReport{
		RunID:      uuid.NewString(),
		StartedAt:  p.settings.Now(),
		ChartsSent: []string{},
	}
	ctx = logger.WithRunID(ctx, report.RunID)

	data, err := p.fetchAll(ctx, report)
	if err != nil {
		return report, err
	}

	req := prompt.Build(p.settings.Pairs, data)
	logger.Debug(ctx, "Prompt built", "prompt_len", len(req))

	raw, err := p.deps.Analyst.Analyze(ctx, p.settings.System, req)
	if err != nil {
		report.FinishedAt = p.settings.Now()
		return report, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}

	if logger.IsDebugEnabled() {
		logger.Debug(ctx, "Analysis response", "raw", raw)
	}

	result := parser.Parse(raw)
	report.Result = result
	p.logSetups(ctx, result)

	text := result.Display
	if p.settings.Alerts {
		report.Alerts = alert.Classify(p.settings.Pairs, data, result, p.settings.Thresholds)
		if banner := alert.Banner(report.Alerts); banner != "" {
			text = banner + "\n" + text
		}
	}

	var footer string
	if p.deps.Headlines != nil {
		items, err := p.deps.Headlines.Latest(ctx)
		if err != nil {
			logger.Warn(ctx, "Headlines unavailable", "error", err)
		}
		report.Headlines = items
		footer = headlines.Footer(items, p.settings.EscapeText)
	}

	if err := p.sendText(ctx, text, footer); err != nil {
		p.fail(ctx, report, TargetText, "", err)
	} else {
		report.TextSent = true
	}

	if p.deps.Renderer != nil {
		p.deliverCharts(ctx, report, data, result)
	}

	if p.deps.Journal != nil {
		p.journal(ctx, report, result)
	}

	report.FinishedAt = p.settings.Now()
	return report, nil
}

// sendText delivers the message with the headlines footer. If that is
// rejected, the footer is dropped and the analysis text sent on its own.
func (p *Pipeline) sendText(ctx context.Context, text, footer string) error {
	if footer == "" {
		return p.deps.Notifier.SendText(ctx, text)
	}
	err := p.deps.Notifier.SendText(ctx, text+"\n\n"+footer)
	if err == nil || ctx.Err() != nil {
		return err
	}
	logger.Warn(ctx, "Message with headlines rejected, resending without them", "error", err)
	return p.deps.Notifier.SendText(ctx, text)
}

func (p *Pipeline) fetchAll(ctx context.Context, report *types.RunReport) (map[string]types.PairIndicator, error) {
	op := logger.StartOperation(ctx, "pipeline.fetch", "pairs", len(p.settings.Pairs))
	ctx = op.GetContext()

	limiter := pacing.New(p.settings.FetchSpacing)
	data := make(map[string]types.PairIndicator, len(p.settings.Pairs))
	resolved := 0
	for _, pair := range p.settings.Pairs {
		if err := limiter.Wait(ctx); err != nil {
			err = fmt.Errorf("fetch spacing: %w", err)
			op.EndWithError(err)
			return nil, err
		}
		ind, err := p.fetcher.Fetch(ctx, pair)
		if err != nil {
			op.EndWithError(err)
			return nil, err
		}
		if ind.Resolved() {
			resolved++
		}
		data[pair.Name] = ind
		report.Indicators = append(report.Indicators, ind)
	}
	op.End("resolved", resolved, "spacing_ms", limiter.Interval().Milliseconds())
	return data, nil
}

func (p *Pipeline) logSetups(ctx context.Context, result types.AnalysisResult) {
	if len(result.Setups) == 0 {
		logger.Warn(ctx, "No structured setups in analysis response", "display_len", len(result.Display))
		return
	}
	for _, pair := range p.settings.Pairs {
		if s, ok := result.Setup(pair); ok {
			logger.Setup(ctx, pair.Name, s.Trend, s.Confidence, "resolvable", s.Resolvable())
		}
	}
}

// deliverCharts renders and sends one chart per pair with resolved data, in
// pair order. A failure for one pair never stops the next.
func (p *Pipeline) deliverCharts(ctx context.Context, report *types.RunReport, data map[string]types.PairIndicator, result types.AnalysisResult) {
	op := logger.StartOperation(ctx, "pipeline.charts")
	ctx = op.GetContext()
	defer func() { op.End("charts_sent", len(report.ChartsSent)) }()

	for _, pair := range p.settings.Pairs {
		ind := data[pair.Name]
		if !ind.Resolved() {
			logger.Info(ctx, "Skipping chart, market data unavailable",
				"pair", pair.Name,
				"price", ind.Price.String(),
				"rsi", ind.RSI.Fixed(2),
			)
			continue
		}

		var setup *types.TradeSetup
		if s, ok := result.Setup(pair); ok {
			setup = &s
		}

		art, err := p.deps.Renderer.Render(ctx, pair, ind.Price.Value, ind.RSI.Value, setup)
		if err != nil {
			p.fail(ctx, report, TargetChart, pair.Name, err)
			continue
		}

		err = p.deps.Notifier.SendImage(ctx, art, caption(ind, setup))
		if relErr := art.Release(); relErr != nil {
			logger.Warn(ctx, "Failed to remove chart file", "pair", pair.Name, "path", art.Path, "error", relErr)
		}
		if err != nil {
			p.fail(ctx, report, TargetImage, pair.Name, err)
			continue
		}
		report.ChartsSent = append(report.ChartsSent, pair.Name)
	}
}

func (p *Pipeline) journal(ctx context.Context, report *types.RunReport, result types.AnalysisResult) {
	at := p.settings.Now()
	var records []types.LogRecord
	for _, pair := range p.settings.Pairs {
		s, ok := result.Setup(pair)
		if !ok {
			continue
		}
		if rec, ok := types.NewLogRecord(at, report.RunID, pair, s); ok {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return
	}
	if err := p.deps.Journal.Append(ctx, records); err != nil {
		p.fail(ctx, report, TargetJournal, "", err)
		return
	}
	report.JournalRows = len(records)
}

func (p *Pipeline) fail(ctx context.Context, report *types.RunReport, target, pair string, err error) {
	logger.Delivery(ctx, target, pair, err)
	report.Failures = append(report.Failures, types.DeliveryFailure{Target: target, Pair: pair, Err: err.Error()})
}

func caption(ind types.PairIndicator, setup *types.TradeSetup) string {
	parts := []string{
		ind.Pair.Name,
		"Price " + ind.Price.String(),
		"RSI " + ind.RSI.Fixed(2),
	}
	if setup != nil && setup.Trend != "" {
		parts = append(parts, "Trend "+setup.Trend)
	}
	if setup != nil && setup.Confidence != "" {
		parts = append(parts, "Confidence "+setup.Confidence)
	}
	return strings.Join(parts, " | ")
}
