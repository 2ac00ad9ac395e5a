package interfaces

import "context"

// Analyst sends a prompt to a language-generation service and returns its raw text.
type Analyst interface {
	Analyze(ctx context.Context, system, prompt string) (string, error)
}
