package interfaces

import (
	"context"

	"fx-analyst-bot/internal/types"
)

// Notifier is the messaging sink.
type Notifier interface {
	SendText(ctx context.Context, text string) error
	SendImage(ctx context.Context, chart *types.ChartArtifact, caption string) error
}
