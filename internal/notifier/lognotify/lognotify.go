// Package lognotify is the DRY_RUN messaging sink: deliveries are logged
// instead of sent.
package lognotify

import (
	"context"
	"os"
	"sync"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/types"
)

type Notifier struct {
	mu     sync.Mutex
	texts  int
	images int
}

var _ interfaces.Notifier = (*Notifier)(nil)

func New() *Notifier {
	return &Notifier{}
}

func (n *Notifier) SendText(ctx context.Context, text string) error {
	n.mu.Lock()
	n.texts++
	n.mu.Unlock()
	logger.Info(ctx, "DRY_RUN: message not sent", "text_len", len(text), "text", text)
	return nil
}

func (n *Notifier) SendImage(ctx context.Context, chart *types.ChartArtifact, caption string) error {
	if chart == nil {
		return nil
	}
	var size int64
	if fi, err := os.Stat(chart.Path); err == nil {
		size = fi.Size()
	}
	n.mu.Lock()
	n.images++
	n.mu.Unlock()
	logger.Info(ctx, "DRY_RUN: chart not sent",
		"pair", chart.Pair.Name,
		"path", chart.Path,
		"bytes", size,
		"caption", caption,
	)
	return nil
}

// Counts returns how many texts and images were logged.
func (n *Notifier) Counts() (texts, images int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.texts, n.images
}
