package journal

import (
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"fx-analyst-bot/internal/types"
)

var runTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleRecords() []types.LogRecord {
	return []types.LogRecord{
		{Time: runTime, RunID: "run-1", Pair: "XAU/USD", Trend: "bullish", Entry: 2165.5, StopLoss: 2150, TakeProfit: 2190, Confidence: "high"},
		{Time: runTime, RunID: "run-1", Pair: "EUR/USD", Trend: "bearish", Entry: 1.09, StopLoss: 1.095, TakeProfit: 1.08, Confidence: "medium"},
	}
}

func readCSV(t *testing.T, p string) [][]string {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVAppendWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	j := NewCSV(dir, 0)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, sampleRecords()))
	require.NoError(t, j.Append(ctx, sampleRecords()[:1]))

	rows := readCSV(t, filepath.Join(dir, "2025-03-14.csv"))
	require.Len(t, rows, 4)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"2025-03-14T09:30:00Z", "XAU/USD", "bullish", "2165.5", "2150", "2190", "high", "run-1"}, rows[1])
	assert.Equal(t, "EUR/USD", rows[2][1])
	assert.Equal(t, "1.09", rows[2][3])
}

func TestCSVAppendEmptyIsNoop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	require.NoError(t, NewCSV(dir, 7).Append(context.Background(), nil))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestCSVCompressOlder(t *testing.T) {
	dir := t.TempDir()
	j := NewCSV(dir, 7)
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	old := filepath.Join(dir, "2025-03-01.csv")
	recent := filepath.Join(dir, "2025-03-19.csv")
	require.NoError(t, os.WriteFile(old, []byte("timestamp,pair\nx,y\n"), 0o644))
	require.NoError(t, os.WriteFile(recent, []byte("timestamp,pair\n"), 0o644))
	require.NoError(t, os.Chtimes(old, now.AddDate(0, 0, -19), now.AddDate(0, 0, -19)))
	require.NoError(t, os.Chtimes(recent, now.AddDate(0, 0, -1), now.AddDate(0, 0, -1)))

	require.NoError(t, j.CompressOlder())

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err), "original should be removed")
	_, err = os.Stat(recent)
	assert.NoError(t, err, "recent file is kept")

	f, err := os.Open(old + ".gz")
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	b, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,pair\nx,y\n", string(b))
}

func TestCSVCompressOlderMissingDir(t *testing.T) {
	j := NewCSV(filepath.Join(t.TempDir(), "absent"), 3)
	assert.NoError(t, j.CompressOlder())
}

func TestSQLiteAppend(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data", "journal.db")
	j, err := NewSQLite(p)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(context.Background(), sampleRecords()))
	require.NoError(t, j.Append(context.Background(), nil))

	db, err := sql.Open("sqlite", p)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM trade_setups`).Scan(&n))
	assert.Equal(t, 2, n)

	var pair, trend, conf, runID string
	var ts int64
	var entry, sl, tp float64
	require.NoError(t, db.QueryRow(
		`SELECT timestamp, run_id, pair, trend, entry, stop_loss, take_profit, confidence
		 FROM trade_setups ORDER BY id LIMIT 1`,
	).Scan(&ts, &runID, &pair, &trend, &entry, &sl, &tp, &conf))
	assert.Equal(t, runTime.Unix(), ts)
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, "XAU/USD", pair)
	assert.Equal(t, "bullish", trend)
	assert.InDelta(t, 2165.5, entry, 1e-9)
	assert.InDelta(t, 2150, sl, 1e-9)
	assert.InDelta(t, 2190, tp, 1e-9)
	assert.Equal(t, "high", conf)
}

func TestSQLiteReopenKeepsRows(t *testing.T) {
	p := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(p)
	require.NoError(t, err)
	require.NoError(t, j.Append(context.Background(), sampleRecords()[:1]))
	require.NoError(t, j.Close())

	j, err = NewSQLite(p)
	require.NoError(t, err)
	defer j.Close()
	require.NoError(t, j.Append(context.Background(), sampleRecords()[:1]))

	var n int
	require.NoError(t, j.db.QueryRow(`SELECT COUNT(*) FROM trade_setups`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSheetsAppend(t *testing.T) {
	var got struct {
		Values [][]string `json:"values"`
	}
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":append"), r.URL.Path)
		assert.Contains(t, r.URL.Path, "/spreadsheets/sheet-id/values/")
		query = r.URL.RawQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id","updates":{"updatedRows":2}}`))
	}))
	defer srv.Close()

	s, err := NewSheets(context.Background(), "sheet-id", "", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	require.NoError(t, s.Append(context.Background(), sampleRecords()))
	assert.Contains(t, query, "valueInputOption=USER_ENTERED")
	require.Len(t, got.Values, 2)
	assert.Equal(t, []string{"2025-03-14T09:30:00Z", "XAU/USD", "bullish", "2165.5", "2150", "2190", "high", "run-1"}, got.Values[0])
}

func TestSheetsRequiresSpreadsheetID(t *testing.T) {
	_, err := NewSheets(context.Background(), "", "", "", option.WithoutAuthentication())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	j, err := New(ctx, Settings{Sink: SinkNone})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, j)
	assert.NoError(t, j.Append(ctx, sampleRecords()))

	j, err = New(ctx, Settings{Sink: SinkCSV, CSVDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, j)

	j, err = New(ctx, Settings{Sink: SinkSQLite, SQLitePath: filepath.Join(t.TempDir(), "j.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, j)
	assert.NoError(t, j.Close())

	_, err = New(ctx, Settings{Sink: "KAFKA"})
	assert.Error(t, err)
}
