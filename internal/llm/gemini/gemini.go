package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/llm"
	"fx-analyst-bot/internal/trace"
)

// DefaultModel is used when llm.gemini_model is empty.
const DefaultModel = "gemini-2.0-flash"

// Analyst generates the analysis with the Gemini API.
type Analyst struct {
	client *genai.Client
	opts   llm.Options
}

var _ interfaces.Analyst = (*Analyst)(nil)

// NewAnalyst builds a Gemini API client keyed by opts.APIKey. BaseURL, when
// set, replaces the public endpoint.
func NewAnalyst(ctx context.Context, opts llm.Options) (*Analyst, error) {
	if opts.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY missing")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Analyst{client: client, opts: opts}, nil
}

func (a *Analyst) Analyze(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-api-call")
	defer span.End()

	resp, err := a.client.Models.GenerateContent(ctx, a.opts.Model, genai.Text(prompt), generateConfig(system, a.opts))
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}
	return llm.Completion(resp.Text())
}

func generateConfig(system string, opts llm.Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	return cfg
}
