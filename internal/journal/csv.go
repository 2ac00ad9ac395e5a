package journal

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/types"
)

// CSV writes one file per UTC day, <dir>/YYYY-MM-DD.csv, with a header row.
type CSV struct {
	mu            sync.Mutex
	dir           string
	retentionDays int
	now           func() time.Time
}

func NewCSV(dir string, retentionDays int) *CSV {
	if dir == "" {
		dir = "journal"
	}
	return &CSV{dir: dir, retentionDays: retentionDays, now: time.Now}
}

func (c *CSV) dailyFilepath(t time.Time) string {
	return filepath.Join(c.dir, t.UTC().Format("2006-01-02")+".csv")
}

func (c *CSV) Append(ctx context.Context, records []types.LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.dailyFilepath(records[0].Time)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	_, statErr := os.Stat(p)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(Columns); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := w.Write(row(r)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := c.CompressOlder(); err != nil {
		logger.Warn(ctx, "Journal retention pass failed", "dir", c.dir, "error", err)
	}
	return nil
}

// CompressOlder gzips journal files last modified before the retention window
// and removes the originals.
func (c *CSV) CompressOlder() error {
	if c.retentionDays <= 0 {
		return nil
	}
	cutoff := c.now().AddDate(0, 0, -c.retentionDays)
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := gzipFile(filepath.Join(c.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func gzipFile(p string) error {
	gz := p + ".gz"
	// an earlier pass already compressed it
	if _, err := os.Stat(gz); err == nil {
		return os.Remove(p)
	}

	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(gz)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(p)
}

func (c *CSV) Close() error { return nil }
