package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

func (s *Service) generateOpenAI(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	rs, err := s.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
	if err != nil {
		return "", err
	}
	if len(rs.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return rs.Choices[0].Message.Content, nil
}
