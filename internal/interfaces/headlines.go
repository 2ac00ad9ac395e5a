package interfaces

import (
	"context"

	"fx-analyst-bot/internal/types"
)

// Headlines supplies recent market headlines appended to the delivered text.
type Headlines interface {
	Latest(ctx context.Context) ([]types.Headline, error)
}
