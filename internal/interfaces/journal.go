package interfaces

import (
	"context"

	"fx-analyst-bot/internal/types"
)

// Journal is the append-only log sink for resolvable trade setups.
type Journal interface {
	Append(ctx context.Context, records []types.LogRecord) error
	Close() error
}
