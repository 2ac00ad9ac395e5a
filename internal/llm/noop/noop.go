package noop

import (
	"context"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
)

// Notice is appended after the empty JSON block so the report says why it has no setups
const Notice = "_Dry run: no analysis service configured, no trade setups generated._"

// Analyst is the fallback used when no LLM is configured. Its answer parses to zero setups.
type Analyst struct{}

var _ interfaces.Analyst = (*Analyst)(nil)

func NewAnalyst() *Analyst {
	return &Analyst{}
}

func (a *Analyst) Analyze(ctx context.Context, system, prompt string) (string, error) {
	logger.Debug(ctx, "Noop analyst called - returning empty analysis", "prompt_len", len(prompt))
	return "{}\n\n" + Notice, nil
}
