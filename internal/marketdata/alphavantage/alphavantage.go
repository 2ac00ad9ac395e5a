// Package alphavantage fetches RSI and spot exchange rates from the Alpha Vantage REST API.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fx-analyst-bot/internal/api"
	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/marketdata"
	"fx-analyst-bot/internal/types"
)

const (
	DefaultBaseURL = "https://www.alphavantage.co"

	rsiKey       = "Technical Analysis: RSI"
	rateKey      = "Realtime Currency Exchange Rate"
	rateFieldKey = "5. Exchange Rate"
)

type Options struct {
	BaseURL     string
	APIKey      string
	RSIInterval string
	RSIPeriod   int
	Timeout     time.Duration
}

type Client struct {
	apiClient *api.Client
	opts      Options
}

var _ interfaces.MarketData = (*Client)(nil)

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RSIInterval == "" {
		opts.RSIInterval = "15min"
	}
	if opts.RSIPeriod == 0 {
		opts.RSIPeriod = 14
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		apiClient: api.NewClient(
			api.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")),
			api.WithTimeout(opts.Timeout),
			api.WithLogging(true),
		),
		opts: opts,
	}
}

func (c *Client) Name() string { return "alphavantage" }

// RSI returns the most recent RSI value of the series.
func (c *Client) RSI(ctx context.Context, pair types.Pair) (float64, error) {
	q := url.Values{
		"function":    {"RSI"},
		"symbol":      {pair.Symbol},
		"interval":    {c.opts.RSIInterval},
		"time_period": {strconv.Itoa(c.opts.RSIPeriod)},
		"series_type": {"close"},
		"apikey":      {c.opts.APIKey},
	}
	payload, err := c.query(ctx, q)
	if err != nil {
		return 0, err
	}

	var series map[string]map[string]string
	if err := decodeField(payload, rsiKey, &series); err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 0, fmt.Errorf("%w: %s is empty", marketdata.ErrMissingField, rsiKey)
	}

	// timestamps are "YYYY-MM-DD HH:MM", so the lexicographic max is the latest
	var latest string
	for ts := range series {
		if ts > latest {
			latest = ts
		}
	}
	raw, ok := series[latest]["RSI"]
	if !ok {
		return 0, fmt.Errorf("%w: RSI at %s", marketdata.ErrMissingField, latest)
	}
	return parseNumber(raw)
}

// Rate returns the realtime exchange rate from the pair's base to its quote currency.
func (c *Client) Rate(ctx context.Context, pair types.Pair) (float64, error) {
	q := url.Values{
		"function":      {"CURRENCY_EXCHANGE_RATE"},
		"from_currency": {pair.Base()},
		"to_currency":   {pair.Quote()},
		"apikey":        {c.opts.APIKey},
	}
	payload, err := c.query(ctx, q)
	if err != nil {
		return 0, err
	}

	var rate map[string]string
	if err := decodeField(payload, rateKey, &rate); err != nil {
		return 0, err
	}
	raw, ok := rate[rateFieldKey]
	if !ok {
		return 0, fmt.Errorf("%w: %s", marketdata.ErrMissingField, rateFieldKey)
	}
	return parseNumber(raw)
}

func (c *Client) query(ctx context.Context, q url.Values) (map[string]json.RawMessage, error) {
	resp, err := c.apiClient.GET(ctx, "/query", q)
	if err != nil {
		return nil, err
	}
	var payload map[string]json.RawMessage
	if err := resp.ParseJSON(&payload); err != nil {
		return nil, err
	}
	// Throttling and bad requests come back as 200 with a single notice field
	for _, k := range []string{"Note", "Information", "Error Message"} {
		if msg, ok := payload[k]; ok {
			var text string
			_ = json.Unmarshal(msg, &text)
			if k == "Error Message" {
				return nil, fmt.Errorf("alphavantage error: %s", text)
			}
			return nil, fmt.Errorf("%w: %s", marketdata.ErrThrottled, text)
		}
	}
	return payload, nil
}

func decodeField(payload map[string]json.RawMessage, key string, v any) error {
	raw, ok := payload[key]
	if !ok {
		return fmt.Errorf("%w: %s", marketdata.ErrMissingField, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return v, nil
}
