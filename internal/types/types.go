package types

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Unavailable is rendered in place of a data point the provider could not supply.
const Unavailable = "N/A"

// Pair is a tradable instrument as configured: display name (e.g. "EUR/USD")
// and the provider-specific symbol code (e.g. "EURUSD").
type Pair struct {
	Name   string `yaml:"name" json:"name"`
	Symbol string `yaml:"symbol" json:"symbol"`
}

// Base returns the currency before the slash, "EUR" for "EUR/USD".
func (p Pair) Base() string {
	base, _, _ := strings.Cut(p.Name, "/")
	return strings.TrimSpace(base)
}

// Quote returns the currency after the slash, "USD" for "EUR/USD".
func (p Pair) Quote() string {
	_, quote, _ := strings.Cut(p.Name, "/")
	return strings.TrimSpace(quote)
}

// Reading is a single market data point. A zero Reading is unavailable.
type Reading struct {
	Value float64
	Valid bool
}

func Available(v float64) Reading { return Reading{Value: v, Valid: true} }

func Missing() Reading { return Reading{} }

// String renders the value, or the Unavailable sentinel.
func (r Reading) String() string {
	if !r.Valid {
		return Unavailable
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// Fixed renders the value with a fixed number of decimals, or the Unavailable sentinel.
func (r Reading) Fixed(decimals int) string {
	if !r.Valid {
		return Unavailable
	}
	return strconv.FormatFloat(r.Value, 'f', decimals, 64)
}

type PairIndicator struct {
	Pair  Pair
	Price Reading
	RSI   Reading
}

// Resolved reports whether both price and RSI are real values.
func (pi PairIndicator) Resolved() bool {
	return pi.Price.Valid && pi.RSI.Valid
}

type TradeSetup struct {
	Trend      string   `json:"trend,omitempty"`
	Entry      *float64 `json:"entry,omitempty"`
	StopLoss   *float64 `json:"sl,omitempty"`
	TakeProfit *float64 `json:"tp,omitempty"`
	Confidence string   `json:"confidence,omitempty"`
}

// Resolvable reports whether every field is present, which is what a log row needs.
func (s TradeSetup) Resolvable() bool {
	return s.Trend != "" && s.Confidence != "" &&
		s.Entry != nil && s.StopLoss != nil && s.TakeProfit != nil
}

type AnalysisResult struct {
	Setups  map[string]TradeSetup
	Display string
}

// Setup looks a pair up by name, tolerating "EURUSD"/"eur/usd" style keys from the model.
func (r AnalysisResult) Setup(p Pair) (TradeSetup, bool) {
	if s, ok := r.Setups[p.Name]; ok {
		return s, true
	}
	want := NormalizePair(p.Name)
	for k, s := range r.Setups {
		if NormalizePair(k) == want {
			return s, true
		}
	}
	return TradeSetup{}, false
}

// NormalizePair drops separators and upper-cases a pair key.
func NormalizePair(s string) string {
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '-' || r == '_' || r == ' ' {
			return -1
		}
		return r
	}, s)
}

// ChartArtifact is a rendered chart on ephemeral storage. The dispatcher owns it
// for one send and then calls Release.
type ChartArtifact struct {
	Pair        Pair
	GeneratedAt time.Time
	Path        string
	ContentType string
}

func (a *ChartArtifact) Release() error {
	if a == nil || a.Path == "" {
		return nil
	}
	err := os.Remove(a.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

type LogRecord struct {
	Time       time.Time
	RunID      string
	Pair       string
	Trend      string
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Confidence string
}

// NewLogRecord flattens a resolvable setup; ok is false when a field is missing.
func NewLogRecord(t time.Time, runID string, p Pair, s TradeSetup) (LogRecord, bool) {
	if !s.Resolvable() {
		return LogRecord{}, false
	}
	return LogRecord{
		Time:       t,
		RunID:      runID,
		Pair:       p.Name,
		Trend:      s.Trend,
		Entry:      *s.Entry,
		StopLoss:   *s.StopLoss,
		TakeProfit: *s.TakeProfit,
		Confidence: s.Confidence,
	}, true
}

type Headline struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

type Alert struct {
	Pair    string `json:"pair"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type DeliveryFailure struct {
	Target string `json:"target"`
	Pair   string `json:"pair,omitempty"`
	Err    string `json:"error"`
}

type RunReport struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Indicators  []PairIndicator   `json:"-"`
	Result      AnalysisResult    `json:"-"`
	Alerts      []Alert           `json:"alerts,omitempty"`
	Headlines   []Headline        `json:"headlines,omitempty"`
	TextSent    bool              `json:"text_sent"`
	ChartsSent  []string          `json:"charts_sent"`
	JournalRows int               `json:"journal_rows"`
	Failures    []DeliveryFailure `json:"failures,omitempty"`
}
