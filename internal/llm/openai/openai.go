package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/llm"
	"fx-analyst-bot/internal/trace"
)

// Analyst sends the prompt as a chat completion with a system and a user message
type Analyst struct {
	client *goopenai.Client
	opts   llm.Options
}

var _ interfaces.Analyst = (*Analyst)(nil)

func NewAnalyst(opts llm.Options) (*Analyst, error) {
	if opts.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY missing")
	}
	if opts.Model == "" {
		opts.Model = goopenai.GPT4o
	}
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	return &Analyst{client: goopenai.NewClientWithConfig(cfg), opts: opts}, nil
}

func (a *Analyst) Analyze(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	req := goopenai.ChatCompletionRequest{
		Model: a.opts.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return llm.Completion(resp.Choices[0].Message.Content)
}
