// Package llm holds what the analysis clients share.
package llm

import (
	"errors"
	"strings"
)

// ErrEmptyResponse means the service answered without any text.
var ErrEmptyResponse = errors.New("llm: empty completion")

// Options configure every analysis client; unused fields are ignored.
type Options struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	BaseURL     string
}

// Completion trims the service's text and rejects it when nothing is left.
func Completion(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
