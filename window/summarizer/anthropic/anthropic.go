// Package anthropic implements the window.Summarizer boundary on the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/embermind/recall/core"
	"github.com/embermind/recall/window"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-sonnet-4-5"

const systemPrompt = `You compact conversation history for a memory engine.

Summarize the dialogue turns you are given into a single dense paragraph.
Preserve names, decisions, preferences, emotional moments, and open
threads. Drop filler and pleasantries. Output only the summary text.`

// Config tunes the summarizer.
type Config struct {
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// DefaultConfig returns the stock summarizer tuning.
func DefaultConfig() Config {
	return Config{
		Model:     DefaultModel,
		MaxTokens: 1024,
	}
}

// Summarizer condenses dialogue turns through the Messages API.
type Summarizer struct {
	client *anthropic.Client
	cfg    Config
}

// New creates a summarizer over the given client.
func New(client *anthropic.Client, cfg Config) *Summarizer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &Summarizer{client: client, cfg: cfg}
}

// Summarize sends the turns to the model and returns the summary text
// with the output token count reported by the API.
func (s *Summarizer) Summarize(ctx context.Context, turns []window.Turn) (window.Summary, error) {
	if len(turns) == 0 {
		return window.Summary{}, &core.ValidationError{Field: "turns", Reason: "must not be empty"}
	}

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.cfg.Model),
		MaxTokens: s.cfg.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(formatTurns(turns))),
		},
	})
	if err != nil {
		return window.Summary{}, &core.ExternalServiceError{Service: "summarizer", Attempts: 1, Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		return window.Summary{}, &core.ExternalServiceError{
			Service:  "summarizer",
			Attempts: 1,
			Err:      fmt.Errorf("empty summary from model"),
		}
	}

	return window.Summary{
		Text:       text,
		TokenCount: int(resp.Usage.OutputTokens),
	}, nil
}

func formatTurns(turns []window.Turn) string {
	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
