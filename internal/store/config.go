package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fx-analyst-bot/internal/types"
)

const (
	ModeLive   = "LIVE"
	ModeDryRun = "DRY_RUN"
)

// DefaultPairs is the instrument set used when the config file names none.
var DefaultPairs = []types.Pair{
	{Name: "XAU/USD", Symbol: "XAUUSD"},
	{Name: "EUR/USD", Symbol: "EURUSD"},
	{Name: "GBP/JPY", Symbol: "GBPJPY"},
	{Name: "USD/CHF", Symbol: "USDCHF"},
}

// Secrets are read from the environment only; they never come from the yaml file.
type Secrets struct {
	AlphaVantageKey   string
	OpenAIKey         string
	ClaudeKey         string
	GeminiKey         string
	TelegramToken     string
	TelegramChatID    string
	GoogleCredentials string
	RedisPassword     string
}

type Config struct {
	Mode                string       `yaml:"mode"`
	Pairs               []types.Pair `yaml:"pairs"`
	FetchSpacingSeconds float64      `yaml:"fetch_spacing_seconds"`
	MarketData          struct {
		Provider       string `yaml:"provider"`
		BaseURL        string `yaml:"base_url"`
		RSIInterval    string `yaml:"rsi_interval"`
		RSIPeriod      int    `yaml:"rsi_period"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		Cache          struct {
			Enabled    bool   `yaml:"enabled"`
			Addr       string `yaml:"addr"`
			DB         int    `yaml:"db"`
			TTLSeconds int    `yaml:"ttl_seconds"`
		} `yaml:"cache"`
	} `yaml:"market_data"`
	LLM struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
		System      string  `yaml:"system"`
		BaseURL     string  `yaml:"base_url"`
	} `yaml:"llm"`
	Telegram struct {
		BaseURL       string `yaml:"base_url"`
		ParseMode     string `yaml:"parse_mode"`
		MaxMessageLen int    `yaml:"max_message_len"`
	} `yaml:"telegram"`
	Charts struct {
		Enabled    bool    `yaml:"enabled"`
		Dir        string  `yaml:"dir"`
		Width      float64 `yaml:"width"`
		Height     float64 `yaml:"height"`
		PaddingPct float64 `yaml:"padding_pct"`
		Watermark  string  `yaml:"watermark"`
	} `yaml:"charts"`
	Journal struct {
		Sink          string `yaml:"sink"`
		SpreadsheetID string `yaml:"spreadsheet_id"`
		Range         string `yaml:"range"`
		SQLitePath    string `yaml:"sqlite_path"`
		CSVDir        string `yaml:"csv_dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`
	Headlines struct {
		Enabled        bool   `yaml:"enabled"`
		Source         string `yaml:"source"`
		URL            string `yaml:"url"`
		Container      string `yaml:"container"`
		Title          string `yaml:"title"`
		Link           string `yaml:"link"`
		Max            int    `yaml:"max"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"headlines"`
	Alerts struct {
		Enabled    bool    `yaml:"enabled"`
		Overbought float64 `yaml:"overbought"`
		Oversold   float64 `yaml:"oversold"`
	} `yaml:"alerts"`
	Tracing struct {
		Enabled bool `yaml:"enabled"`
		Pretty  bool `yaml:"pretty"`
	} `yaml:"tracing"`

	Secrets Secrets `yaml:"-"`
}

// FetchSpacing is the minimum interval between consecutive pair fetches.
func (c *Config) FetchSpacing() time.Duration {
	return time.Duration(c.FetchSpacingSeconds * float64(time.Second))
}

func (c *Config) DryRun() bool {
	return c.Mode == ModeDryRun
}

func (c *Config) Validate() error {
	if c.Mode != ModeDryRun && c.Mode != ModeLive {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Pairs) == 0 {
		return errors.New("pairs cannot be empty")
	}
	seen := make(map[string]bool, len(c.Pairs))
	for i, p := range c.Pairs {
		if p.Name == "" || p.Symbol == "" {
			return fmt.Errorf("pairs[%d]: name and symbol are required", i)
		}
		if p.Base() == "" || p.Quote() == "" {
			return fmt.Errorf("pairs[%d]: name '%s' must look like BASE/QUOTE", i, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("pairs[%d]: duplicate pair '%s'", i, p.Name)
		}
		seen[p.Name] = true
	}
	if c.FetchSpacingSeconds < 0 {
		return fmt.Errorf("fetch_spacing_seconds must be >= 0, got %.2f", c.FetchSpacingSeconds)
	}
	switch c.MarketData.Provider {
	case "ALPHAVANTAGE", "STATIC":
	default:
		return fmt.Errorf("market_data.provider must be 'ALPHAVANTAGE' or 'STATIC', got '%s'", c.MarketData.Provider)
	}
	if c.MarketData.RSIPeriod < 2 {
		return fmt.Errorf("market_data.rsi_period must be >= 2, got %d", c.MarketData.RSIPeriod)
	}
	switch c.LLM.Provider {
	case "OPENAI", "CLAUDE", "GEMINI", "NOOP":
	default:
		return fmt.Errorf("llm.provider must be 'OPENAI', 'CLAUDE', 'GEMINI' or 'NOOP', got '%s'", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %.2f", c.LLM.Temperature)
	}
	if c.Telegram.MaxMessageLen <= 0 {
		return fmt.Errorf("telegram.max_message_len must be positive, got %d", c.Telegram.MaxMessageLen)
	}
	if c.Charts.PaddingPct <= 0 || c.Charts.PaddingPct >= 100 {
		return fmt.Errorf("charts.padding_pct must be between 0-100, got %.2f", c.Charts.PaddingPct)
	}
	switch c.Journal.Sink {
	case "NONE", "CSV", "SQLITE":
	case "SHEETS":
		if c.Journal.SpreadsheetID == "" {
			return errors.New("journal.spreadsheet_id is required for the SHEETS sink")
		}
	default:
		return fmt.Errorf("journal.sink must be 'NONE', 'CSV', 'SQLITE' or 'SHEETS', got '%s'", c.Journal.Sink)
	}
	if c.Headlines.Enabled && (c.Headlines.URL == "" || c.Headlines.Container == "" || c.Headlines.Title == "") {
		return errors.New("headlines.url, headlines.container and headlines.title are required when headlines are enabled")
	}
	if c.Alerts.Enabled && c.Alerts.Oversold >= c.Alerts.Overbought {
		return fmt.Errorf("alerts.oversold (%.1f) must be below alerts.overbought (%.1f)", c.Alerts.Oversold, c.Alerts.Overbought)
	}
	if c.Mode == ModeLive {
		if err := c.validateLiveSecrets(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateLiveSecrets() error {
	if c.MarketData.Provider == "ALPHAVANTAGE" && c.Secrets.AlphaVantageKey == "" {
		return errors.New("ALPHA_VANTAGE_KEY is required for the ALPHAVANTAGE provider")
	}
	switch c.LLM.Provider {
	case "OPENAI":
		if c.Secrets.OpenAIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the OPENAI provider")
		}
	case "CLAUDE":
		if c.Secrets.ClaudeKey == "" {
			return errors.New("CLAUDE_API_KEY is required for the CLAUDE provider")
		}
	case "GEMINI":
		if c.Secrets.GeminiKey == "" {
			return errors.New("GEMINI_API_KEY is required for the GEMINI provider")
		}
	}
	if c.Secrets.TelegramToken == "" || c.Secrets.TelegramChatID == "" {
		return errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required in LIVE mode")
	}
	return nil
}

// newConfig seeds the defaults for keys where zero is a legal value, so
// the yaml decoder only replaces them when the key is present.
func newConfig() Config {
	var c Config
	c.FetchSpacingSeconds = 15
	c.LLM.Temperature = 0.7
	c.Alerts.Overbought = 70
	c.Alerts.Oversold = 30
	c.Tracing.Enabled = true
	c.Tracing.Pretty = true
	return c
}

// LoadConfig reads the yaml file at path (a missing file means all defaults),
// applies environment secrets and defaults, then validates.
func LoadConfig(path string) (*Config, error) {
	c := newConfig()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	c.applyEnv()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func (c *Config) applyEnv() {
	c.Secrets = Secrets{
		AlphaVantageKey:   os.Getenv("ALPHA_VANTAGE_KEY"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		ClaudeKey:         os.Getenv("CLAUDE_API_KEY"),
		GeminiKey:         os.Getenv("GEMINI_API_KEY"),
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		GoogleCredentials: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
	}
	if v := os.Getenv("BOT_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("LOG_TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = v == "true"
	}
}

func (c *Config) applyDefaults() {
	c.Mode = strings.ToUpper(c.Mode)
	if c.Mode == "" {
		c.Mode = ModeDryRun
	}
	if len(c.Pairs) == 0 {
		c.Pairs = append([]types.Pair(nil), DefaultPairs...)
	}

	md := &c.MarketData
	md.Provider = strings.ToUpper(md.Provider)
	if md.Provider == "" {
		md.Provider = "ALPHAVANTAGE"
		if c.Mode == ModeDryRun {
			md.Provider = "STATIC"
		}
	}
	if md.BaseURL == "" {
		md.BaseURL = "https://www.alphavantage.co"
	}
	if md.RSIInterval == "" {
		md.RSIInterval = "15min"
	}
	if md.RSIPeriod == 0 {
		md.RSIPeriod = 14
	}
	if md.TimeoutSeconds == 0 {
		md.TimeoutSeconds = 10
	}
	if md.Cache.Addr == "" {
		md.Cache.Addr = "localhost:6379"
	}
	if md.Cache.TTLSeconds == 0 {
		md.Cache.TTLSeconds = 60
	}

	c.LLM.Provider = strings.ToUpper(c.LLM.Provider)
	if c.LLM.Provider == "" {
		c.LLM.Provider = "OPENAI"
		if c.Mode == ModeDryRun {
			c.LLM.Provider = "NOOP"
		}
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "CLAUDE":
			c.LLM.Model = "claude-3-5-sonnet-20241022"
		case "GEMINI":
			c.LLM.Model = "gemini-2.0-flash"
		default:
			c.LLM.Model = "gpt-4o"
		}
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1200
	}

	if c.Telegram.BaseURL == "" {
		c.Telegram.BaseURL = "https://api.telegram.org"
	}
	if c.Telegram.ParseMode == "" {
		c.Telegram.ParseMode = "Markdown"
	}
	if c.Telegram.MaxMessageLen == 0 {
		c.Telegram.MaxMessageLen = 4096
	}

	if c.Charts.Dir == "" {
		c.Charts.Dir = os.TempDir()
	}
	if c.Charts.Width == 0 {
		c.Charts.Width = 800
	}
	if c.Charts.Height == 0 {
		c.Charts.Height = 600
	}
	if c.Charts.PaddingPct == 0 {
		c.Charts.PaddingPct = 1.0
	}
	if c.Charts.Watermark == "" {
		c.Charts.Watermark = "fx-analyst-bot"
	}

	c.Journal.Sink = strings.ToUpper(c.Journal.Sink)
	if c.Journal.Sink == "" {
		c.Journal.Sink = "NONE"
	}
	if c.Journal.Range == "" {
		c.Journal.Range = "Sheet1!A:H"
	}
	if c.Journal.SQLitePath == "" {
		c.Journal.SQLitePath = "data/journal.db"
	}
	if c.Journal.CSVDir == "" {
		c.Journal.CSVDir = "journal"
	}
	if c.Journal.RetentionDays == 0 {
		c.Journal.RetentionDays = 7
	}

	if c.Headlines.Max == 0 {
		c.Headlines.Max = 5
	}
	if c.Headlines.TimeoutSeconds == 0 {
		c.Headlines.TimeoutSeconds = 10
	}
}
