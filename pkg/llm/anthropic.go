package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

var legacyClaudePrefixes = []string{"claude-2", "claude-instant"}

// usesCompletions reports whether model only speaks the legacy text completion API.
func usesCompletions(model string) bool {
	for _, prefix := range legacyClaudePrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (s *Service) generateAnthropic(ctx context.Context, req Request) (string, error) {
	if usesCompletions(req.Model) {
		rs, err := s.anthropic.Completions.New(ctx, anthropic.CompletionNewParams{
			Model:             anthropic.Model(req.Model),
			Prompt:            "\n\nHuman: " + req.Prompt + "\n\nAssistant:",
			MaxTokensToSample: int64(req.MaxTokens),
			Temperature:       anthropic.Float(temperature),
			TopP:              anthropic.Float(topP),
		})
		if err != nil {
			return "", err
		}
		return rs.Completion, nil
	}

	rs, err := s.anthropic.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(temperature),
	})
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, block := range rs.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
