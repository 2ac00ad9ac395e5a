package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-analyst-bot/internal/alert"
	"fx-analyst-bot/internal/types"
)

var testPairs = []types.Pair{
	{Name: "XAU/USD", Symbol: "XAUUSD"},
	{Name: "EUR/USD", Symbol: "EURUSD"},
	{Name: "GBP/JPY", Symbol: "GBPJPY"},
	{Name: "USD/CHF", Symbol: "USDCHF"},
}

type quote struct {
	rate, rsi       float64
	rateErr, rsiErr error
}

type fakeMarket struct {
	quotes map[string]quote
}

func (f *fakeMarket) RSI(ctx context.Context, p types.Pair) (float64, error) {
	q := f.quotes[p.Symbol]
	return q.rsi, q.rsiErr
}

func (f *fakeMarket) Rate(ctx context.Context, p types.Pair) (float64, error) {
	q := f.quotes[p.Symbol]
	return q.rate, q.rateErr
}

func (f *fakeMarket) Name() string { return "fake" }

// XAU/USD has no price and GBP/JPY no RSI.
func partialMarket() *fakeMarket {
	down := errors.New("provider down")
	return &fakeMarket{quotes: map[string]quote{
		"XAUUSD": {rsi: 55, rateErr: down},
		"EURUSD": {rate: 1.0894, rsi: 62.5},
		"GBPJPY": {rate: 191.2, rsiErr: down},
		"USDCHF": {rate: 0.8812, rsi: 28},
	}}
}

type fakeAnalyst struct {
	raw     string
	err     error
	prompts []string
}

func (f *fakeAnalyst) Analyze(ctx context.Context, system, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.raw, f.err
}

const analysis = `{"EUR/USD":{"trend":"bullish","entry":1.09,"sl":1.085,"tp":1.10,"confidence":"high"},` +
	`"USD/CHF":{"trend":"bearish","entry":"0.881","confidence":"low"},` +
	`"XAU/USD":{"trend":"neutral","entry":2160,"sl":2150,"tp":2180,"confidence":"medium"}}

EUR/USD looking strong.`

type fakeRenderer struct {
	dir   string
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	paths []string
}

func (f *fakeRenderer) Render(ctx context.Context, pair types.Pair, price, rsi float64, setup *types.TradeSetup) (*types.ChartArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pair.Name)
	if f.fail[pair.Name] {
		return nil, errors.New("render failed")
	}
	p := filepath.Join(f.dir, pair.Symbol+".png")
	if err := os.WriteFile(p, []byte("png"), 0o644); err != nil {
		return nil, err
	}
	f.paths = append(f.paths, p)
	return &types.ChartArtifact{Pair: pair, Path: p, ContentType: "image/png"}, nil
}

type fakeNotifier struct {
	texts     []string
	images    []string
	captions  []string
	textErr   error
	rejectIf  func(text string) bool
	attempts  int
	imageFail map[string]bool
}

func (f *fakeNotifier) SendText(ctx context.Context, text string) error {
	f.attempts++
	if f.textErr != nil {
		return f.textErr
	}
	if f.rejectIf != nil && f.rejectIf(text) {
		return errors.New("Bad Request: can't parse entities")
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) SendImage(ctx context.Context, chart *types.ChartArtifact, caption string) error {
	if f.imageFail[chart.Pair.Name] {
		return errors.New("telegram: 400 Bad Request")
	}
	f.images = append(f.images, chart.Pair.Name)
	f.captions = append(f.captions, caption)
	return nil
}

type fakeJournal struct {
	records []types.LogRecord
	err     error
}

func (f *fakeJournal) Append(ctx context.Context, records []types.LogRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeJournal) Close() error { return nil }

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newPipeline(t *testing.T, deps Deps, settings Settings) *Pipeline {
	t.Helper()
	if settings.Pairs == nil {
		settings.Pairs = testPairs
	}
	settings.Now = func() time.Time { return fixedNow }
	p, err := New(deps, settings)
	require.NoError(t, err)
	return p
}

func TestRunDeliversTextChartsAndJournal(t *testing.T) {
	analyst := &fakeAnalyst{raw: analysis}
	renderer := &fakeRenderer{dir: t.TempDir()}
	notifier := &fakeNotifier{}
	journal := &fakeJournal{}

	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    analyst,
		Notifier:   notifier,
		Renderer:   renderer,
		Journal:    journal,
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, analyst.prompts, 1)
	assert.Contains(t, analyst.prompts[0], "XAU/USD: Price=N/A, RSI=55.00")
	assert.Contains(t, analyst.prompts[0], "GBP/JPY: Price=191.2, RSI=N/A")

	assert.Equal(t, []string{"EUR/USD looking strong."}, notifier.texts)
	assert.True(t, report.TextSent)

	// only pairs with both values resolved get a chart
	assert.Equal(t, []string{"EUR/USD", "USD/CHF"}, renderer.calls)
	assert.Equal(t, []string{"EUR/USD", "USD/CHF"}, report.ChartsSent)
	assert.Equal(t, "EUR/USD | Price 1.0894 | RSI 62.50 | Trend bullish | Confidence high", notifier.captions[0])

	for _, path := range renderer.paths {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "chart %s should be released", path)
	}

	// XAU/USD's setup is journaled even though its price was unavailable;
	// USD/CHF lacks sl/tp and is not
	require.Len(t, journal.records, 2)
	assert.Equal(t, "XAU/USD", journal.records[0].Pair)
	assert.Equal(t, "EUR/USD", journal.records[1].Pair)
	assert.Equal(t, report.RunID, journal.records[0].RunID)
	assert.Equal(t, fixedNow, journal.records[0].Time)
	assert.Equal(t, 2, report.JournalRows)

	assert.Len(t, report.Indicators, 4)
	assert.Empty(t, report.Failures)
	assert.NotEmpty(t, report.RunID)
}

func TestRunNeverRendersUnavailablePairs(t *testing.T) {
	down := errors.New("down")
	market := &fakeMarket{quotes: map[string]quote{
		"XAUUSD": {rateErr: down, rsiErr: down},
		"EURUSD": {rateErr: down, rsi: 50},
		"GBPJPY": {rate: 190, rsiErr: down},
		"USDCHF": {rate: 0.88, rsi: 101}, // out of range is unavailable
	}}
	renderer := &fakeRenderer{dir: t.TempDir()}
	notifier := &fakeNotifier{}

	p := newPipeline(t, Deps{
		MarketData: market,
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   notifier,
		Renderer:   renderer,
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, renderer.calls)
	assert.Empty(t, notifier.images)
	assert.Empty(t, report.ChartsSent)
	assert.True(t, report.TextSent)
}

func TestRunImageFailureDoesNotStopOtherPairs(t *testing.T) {
	renderer := &fakeRenderer{dir: t.TempDir()}
	notifier := &fakeNotifier{imageFail: map[string]bool{"EUR/USD": true}}

	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   notifier,
		Renderer:   renderer,
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"USD/CHF"}, notifier.images)
	assert.Equal(t, []string{"USD/CHF"}, report.ChartsSent)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, TargetImage, report.Failures[0].Target)
	assert.Equal(t, "EUR/USD", report.Failures[0].Pair)

	// the failed chart is released too
	for _, path := range renderer.paths {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	}
}

func TestRunRenderFailureIsIsolated(t *testing.T) {
	renderer := &fakeRenderer{dir: t.TempDir(), fail: map[string]bool{"EUR/USD": true}}
	notifier := &fakeNotifier{}

	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   notifier,
		Renderer:   renderer,
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"USD/CHF"}, notifier.images)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, TargetChart, report.Failures[0].Target)
}

func TestRunAnalysisFailureIsFatal(t *testing.T) {
	boom := errors.New("503 from upstream")
	renderer := &fakeRenderer{dir: t.TempDir()}
	notifier := &fakeNotifier{}
	journal := &fakeJournal{}

	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{err: boom},
		Notifier:   notifier,
		Renderer:   renderer,
		Journal:    journal,
	}, Settings{})

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnalysis)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, report)
	assert.Len(t, report.Indicators, 4)

	assert.Empty(t, notifier.texts)
	assert.Empty(t, notifier.images)
	assert.Empty(t, renderer.calls)
	assert.Empty(t, journal.records)
}

func TestRunTextFailureIsRecorded(t *testing.T) {
	notifier := &fakeNotifier{textErr: errors.New("message is too long")}
	renderer := &fakeRenderer{dir: t.TempDir()}

	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   notifier,
		Renderer:   renderer,
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.TextSent)
	require.NotEmpty(t, report.Failures)
	assert.Equal(t, TargetText, report.Failures[0].Target)
	// images are still attempted
	assert.Equal(t, []string{"EUR/USD", "USD/CHF"}, notifier.images)
}

func TestRunUnparseableResponseStillSendsText(t *testing.T) {
	notifier := &fakeNotifier{}
	journal := &fakeJournal{}
	renderer := &fakeRenderer{dir: t.TempDir()}

	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: "Markets are quiet today."},
		Notifier:   notifier,
		Renderer:   renderer,
		Journal:    journal,
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Markets are quiet today."}, notifier.texts)
	assert.Empty(t, report.Result.Setups)
	// charts are still drawn, without levels
	assert.Equal(t, []string{"EUR/USD", "USD/CHF"}, notifier.images)
	assert.Empty(t, journal.records)
	assert.Zero(t, report.JournalRows)
}

func TestRunJournalFailureIsRecorded(t *testing.T) {
	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   &fakeNotifier{},
		Journal:    &fakeJournal{err: errors.New("quota exceeded")},
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, TargetJournal, report.Failures[0].Target)
	assert.Zero(t, report.JournalRows)
}

func TestRunPrependsAlerts(t *testing.T) {
	notifier := &fakeNotifier{}
	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   notifier,
	}, Settings{Alerts: true, Thresholds: alert.Thresholds{Overbought: 70, Oversold: 30}})

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, notifier.texts, 1)
	text := notifier.texts[0]
	assert.True(t, strings.HasPrefix(text, "ALERTS\n"), text)
	assert.True(t, strings.HasSuffix(text, "EUR/USD looking strong."), text)
	assert.Contains(t, text, "EUR/USD high-confidence bullish setup")
	assert.Contains(t, text, "USD/CHF RSI 28.00 is oversold")

	kinds := make([]string, 0, len(report.Alerts))
	for _, a := range report.Alerts {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []string{alert.KindHighConfidence, alert.KindOversold}, kinds)
}

func TestRunCancelledDuringFetchSpacing(t *testing.T) {
	analyst := &fakeAnalyst{raw: analysis}
	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    analyst,
		Notifier:   &fakeNotifier{},
	}, Settings{FetchSpacing: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Run(ctx)
	require.Error(t, err)
	assert.Empty(t, analyst.prompts)
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{}, Settings{Pairs: testPairs})
	assert.Error(t, err)

	_, err = New(Deps{MarketData: partialMarket(), Analyst: &fakeAnalyst{}, Notifier: &fakeNotifier{}}, Settings{})
	assert.Error(t, err)
}

type fakeHeadlines struct {
	items []types.Headline
	err   error
}

func (f fakeHeadlines) Latest(ctx context.Context) ([]types.Headline, error) {
	return f.items, f.err
}

func TestRunAppendsHeadlines(t *testing.T) {
	notifier := &fakeNotifier{}
	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   notifier,
		Headlines:  fakeHeadlines{items: []types.Headline{{Title: "Gold rallies"}}},
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR/USD looking strong.\n\nHEADLINES\n- Gold rallies"}, notifier.texts)
	assert.Len(t, report.Headlines, 1)
}

func TestRunHeadlinesFailureIsAbsorbed(t *testing.T) {
	notifier := &fakeNotifier{}
	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   notifier,
		Headlines:  fakeHeadlines{err: errors.New("403 Forbidden")},
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR/USD looking strong."}, notifier.texts)
	assert.Empty(t, report.Failures)
}

func TestRunEscapesHeadlines(t *testing.T) {
	notifier := &fakeNotifier{}
	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   notifier,
		Headlines:  fakeHeadlines{items: []types.Headline{{Title: "USD_JPY *breaks* [150"}}},
	}, Settings{EscapeText: func(s string) string {
		return strings.NewReplacer("_", `\_`, "*", `\*`, "[", `\[`).Replace(s)
	}})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.TextSent)
	assert.Equal(t, []string{"EUR/USD looking strong.\n\nHEADLINES\n- USD\\_JPY \\*breaks\\* \\[150"}, notifier.texts)
}

func TestRunRejectedHeadlinesFallBackToPlainText(t *testing.T) {
	notifier := &fakeNotifier{rejectIf: func(text string) bool { return strings.Contains(text, "HEADLINES") }}
	p := newPipeline(t, Deps{
		MarketData: partialMarket(),
		Analyst:    &fakeAnalyst{raw: analysis},
		Notifier:   notifier,
		Headlines:  fakeHeadlines{items: []types.Headline{{Title: "USD_JPY *breaks* [150"}}},
	}, Settings{})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.TextSent)
	assert.Equal(t, 2, notifier.attempts)
	assert.Equal(t, []string{"EUR/USD looking strong."}, notifier.texts)
	assert.Empty(t, report.Failures)
}
