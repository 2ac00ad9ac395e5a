package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ALPHA_VANTAGE_KEY", "OPENAI_API_KEY", "CLAUDE_API_KEY", "GEMINI_API_KEY",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "GOOGLE_APPLICATION_CREDENTIALS",
		"REDIS_PASSWORD", "BOT_MODE", "LOG_TRACING_ENABLED",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Mode != ModeDryRun {
		t.Errorf("Mode = %q, want %q", c.Mode, ModeDryRun)
	}
	if len(c.Pairs) != 4 || c.Pairs[0].Name != "XAU/USD" || c.Pairs[3].Symbol != "USDCHF" {
		t.Errorf("Pairs = %+v, want the four default pairs", c.Pairs)
	}
	if c.FetchSpacing() != 15*time.Second {
		t.Errorf("FetchSpacing = %v, want 15s", c.FetchSpacing())
	}
	if c.MarketData.Provider != "STATIC" || c.LLM.Provider != "NOOP" {
		t.Errorf("dry run providers = %s/%s, want STATIC/NOOP", c.MarketData.Provider, c.LLM.Provider)
	}
	if c.MarketData.RSIInterval != "15min" || c.MarketData.RSIPeriod != 14 {
		t.Errorf("rsi settings = %s/%d", c.MarketData.RSIInterval, c.MarketData.RSIPeriod)
	}
	if c.Telegram.ParseMode != "Markdown" || c.Telegram.MaxMessageLen != 4096 {
		t.Errorf("telegram = %+v", c.Telegram)
	}
	if c.Alerts.Overbought != 70 || c.Alerts.Oversold != 30 {
		t.Errorf("alerts = %+v", c.Alerts)
	}
	if c.Journal.Sink != "NONE" {
		t.Errorf("journal sink = %q, want NONE", c.Journal.Sink)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ALPHA_VANTAGE_KEY", "av-test")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	path := writeConfig(t, `
mode: live
pairs:
  - name: EUR/USD
    symbol: EURUSD
fetch_spacing_seconds: 2.5
llm:
  provider: openai
  model: gpt-4o-mini
journal:
  sink: csv
  csv_dir: out
`)
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Mode != ModeLive || c.DryRun() {
		t.Errorf("Mode = %q", c.Mode)
	}
	if len(c.Pairs) != 1 || c.Pairs[0].Symbol != "EURUSD" {
		t.Errorf("Pairs = %+v", c.Pairs)
	}
	if c.FetchSpacing() != 2500*time.Millisecond {
		t.Errorf("FetchSpacing = %v", c.FetchSpacing())
	}
	if c.MarketData.Provider != "ALPHAVANTAGE" {
		t.Errorf("live provider = %q, want ALPHAVANTAGE", c.MarketData.Provider)
	}
	if c.LLM.Provider != "OPENAI" || c.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm = %+v", c.LLM)
	}
	if c.Secrets.OpenAIKey != "sk-test" || c.Secrets.TelegramChatID != "42" {
		t.Errorf("secrets not loaded from env: %+v", c.Secrets)
	}
	if c.Journal.Sink != "CSV" || c.Journal.CSVDir != "out" {
		t.Errorf("journal = %+v", c.Journal)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad mode", "mode: PAPER\n", "invalid mode"},
		{"pair without slash", "pairs:\n  - {name: EURUSD, symbol: EURUSD}\n", "BASE/QUOTE"},
		{"duplicate pair", "pairs:\n  - {name: EUR/USD, symbol: A}\n  - {name: EUR/USD, symbol: B}\n", "duplicate pair"},
		{"bad llm provider", "llm:\n  provider: BARD\n", "llm.provider"},
		{"sheets without id", "journal:\n  sink: sheets\n", "spreadsheet_id"},
		{"inverted alert band", "alerts:\n  enabled: true\n  overbought: 20\n  oversold: 80\n", "alerts.oversold"},
		{"headlines without selectors", "headlines:\n  enabled: true\n  url: https://example.com\n", "headlines.url"},
		{"temperature out of range", "llm:\n  temperature: 3\n", "llm.temperature"},
		{"live without secrets", "mode: LIVE\n", "ALPHA_VANTAGE_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigModeFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_MODE", "dry_run")

	c, err := LoadConfig(writeConfig(t, "mode: LIVE\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !c.DryRun() {
		t.Errorf("BOT_MODE should override the file, got %q", c.Mode)
	}
}

func TestLoadConfigKeepsExplicitZeros(t *testing.T) {
	clearEnv(t)

	c, err := LoadConfig(writeConfig(t, `
fetch_spacing_seconds: 0
llm:
  temperature: 0
alerts:
  oversold: 0
tracing:
  enabled: false
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.FetchSpacing() != 0 {
		t.Errorf("FetchSpacing = %v, want 0", c.FetchSpacing())
	}
	if c.LLM.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", c.LLM.Temperature)
	}
	if c.Alerts.Oversold != 0 || c.Alerts.Overbought != 70 {
		t.Errorf("alerts = %+v", c.Alerts)
	}
	if c.Tracing.Enabled {
		t.Error("tracing should be disabled by the file")
	}
}

func TestLoadConfigDefaultsWhenKeysAbsent(t *testing.T) {
	clearEnv(t)

	c, err := LoadConfig(writeConfig(t, "llm:\n  model: gpt-4o-mini\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.LLM.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", c.LLM.Temperature)
	}
	if c.FetchSpacing() != 15*time.Second {
		t.Errorf("FetchSpacing = %v, want 15s", c.FetchSpacing())
	}
	if !c.Tracing.Enabled || !c.Tracing.Pretty {
		t.Errorf("tracing = %+v", c.Tracing)
	}
}

func TestLoadConfigTracingFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_TRACING_ENABLED", "false")

	c, err := LoadConfig(writeConfig(t, "tracing:\n  enabled: true\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Tracing.Enabled {
		t.Error("LOG_TRACING_ENABLED should override the file")
	}
}
