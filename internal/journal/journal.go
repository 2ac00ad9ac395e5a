// Package journal appends resolvable trade setups to a persistent log.
package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/types"
)

const (
	SinkNone   = "NONE"
	SinkCSV    = "CSV"
	SinkSQLite = "SQLITE"
	SinkSheets = "SHEETS"
)

// Columns is the row layout shared by the CSV and spreadsheet sinks.
var Columns = []string{"timestamp", "pair", "trend", "entry", "sl", "tp", "confidence", "run_id"}

// Settings selects and configures one sink.
type Settings struct {
	Sink            string
	CSVDir          string
	RetentionDays   int
	SQLitePath      string
	SpreadsheetID   string
	Range           string
	CredentialsFile string
}

// New builds the sink named by s.Sink. NONE yields a journal that drops rows.
func New(ctx context.Context, s Settings) (interfaces.Journal, error) {
	switch s.Sink {
	case "", SinkNone:
		return Noop{}, nil
	case SinkCSV:
		return NewCSV(s.CSVDir, s.RetentionDays), nil
	case SinkSQLite:
		return NewSQLite(s.SQLitePath)
	case SinkSheets:
		return NewSheets(ctx, s.SpreadsheetID, s.Range, s.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown journal sink %q", s.Sink)
	}
}

var (
	_ interfaces.Journal = Noop{}
	_ interfaces.Journal = (*CSV)(nil)
	_ interfaces.Journal = (*SQLite)(nil)
	_ interfaces.Journal = (*Sheets)(nil)
)

// Noop discards every row.
type Noop struct{}

func (Noop) Append(context.Context, []types.LogRecord) error { return nil }
func (Noop) Close() error                                    { return nil }

func row(r types.LogRecord) []string {
	return []string{
		r.Time.UTC().Format(time.RFC3339),
		r.Pair,
		r.Trend,
		formatPrice(r.Entry),
		formatPrice(r.StopLoss),
		formatPrice(r.TakeProfit),
		r.Confidence,
		r.RunID,
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
