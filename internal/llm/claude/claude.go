package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fx-analyst-bot/internal/api"
	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/llm"
	"fx-analyst-bot/internal/trace"
)

const (
	// DefaultBaseURL is the public Anthropic endpoint; proxies set llm.base_url instead
	DefaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// Analyst calls the Anthropic Messages API
type Analyst struct {
	client *api.Client
	opts   llm.Options
}

var _ interfaces.Analyst = (*Analyst)(nil)

func NewAnalyst(opts llm.Options) (*Analyst, error) {
	if opts.APIKey == "" {
		return nil, errors.New("CLAUDE_API_KEY missing")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1200
	}
	client := api.NewClient(
		api.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")),
		api.WithTimeout(90*time.Second),
		api.WithHeader("x-api-key", opts.APIKey),
		api.WithHeader("anthropic-version", anthropicVersion),
		api.WithLogging(true),
	)
	return &Analyst{client: client, opts: opts}, nil
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (a *Analyst) Analyze(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	// system is a top-level field in the Messages API, not a message role
	body := messagesRequest{
		Model:       a.opts.Model,
		System:      system,
		Messages:    []message{{Role: "user", Content: prompt}},
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	}

	resp, err := a.client.POST(ctx, "/v1/messages", body)
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	var r messagesResponse
	if err := resp.ParseJSON(&r); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return llm.Completion(b.String())
}
