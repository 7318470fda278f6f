package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	temperature = 0.7
	topP        = 1.0
)

var (
	ErrUnsupportedModel = errors.New("unsupported model")
	ErrMissingAPIKey    = errors.New("api key is not set")
	ErrEmptyResponse    = errors.New("empty response")
)

type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderOpenAI
	ProviderAnthropic
)

func (p Provider) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	}
	return "unknown"
}

// ProviderFor picks the provider by model name prefix.
func ProviderFor(model string) Provider {
	switch {
	case strings.HasPrefix(model, "gpt"):
		return ProviderOpenAI
	case strings.HasPrefix(model, "claude"):
		return ProviderAnthropic
	}
	return ProviderUnknown
}

type ChatMessage struct {
	Role    string
	Content string
}

// Request carries Messages for OpenAI models and Prompt for Anthropic ones.
type Request struct {
	Model     string
	Messages  []ChatMessage
	Prompt    string
	MaxTokens int
}

type Options struct {
	OpenAIKey         string
	AnthropicKey      string
	MaxTokens         int
	RequestsPerSecond float64
	HTTPClient        *http.Client

	OpenAIBaseURL    string
	AnthropicBaseURL string
}

type Service struct {
	openai    *openai.Client
	anthropic *anthropic.Client
	limiter   *rate.Limiter
	maxTokens int
}

func New(opts Options) *Service {
	s := &Service{
		maxTokens: opts.MaxTokens,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
	if opts.RequestsPerSecond <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.OpenAIKey != "" {
		cfg := openai.DefaultConfig(opts.OpenAIKey)
		if opts.OpenAIBaseURL != "" {
			cfg.BaseURL = opts.OpenAIBaseURL
		}
		if opts.HTTPClient != nil {
			cfg.HTTPClient = opts.HTTPClient
		}
		s.openai = openai.NewClientWithConfig(cfg)
	}
	if opts.AnthropicKey != "" {
		clientOpts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(opts.AnthropicKey)}
		if opts.AnthropicBaseURL != "" {
			clientOpts = append(clientOpts, anthropicoption.WithBaseURL(opts.AnthropicBaseURL))
		}
		if opts.HTTPClient != nil {
			clientOpts = append(clientOpts, anthropicoption.WithHTTPClient(opts.HTTPClient))
		}
		client := anthropic.NewClient(clientOpts...)
		s.anthropic = &client
	}
	return s
}

func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = s.maxTokens
	}
	provider := ProviderFor(req.Model)
	switch provider {
	case ProviderOpenAI:
		if s.openai == nil {
			return "", fmt.Errorf("llm: %w: OpenAI key is required for %s", ErrMissingAPIKey, req.Model)
		}
	case ProviderAnthropic:
		if s.anthropic == nil {
			return "", fmt.Errorf("llm: %w: Anthropic key is required for %s", ErrMissingAPIKey, req.Model)
		}
	default:
		return "", fmt.Errorf("llm: %w: %s", ErrUnsupportedModel, req.Model)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	slog.Info("llm: generating response", slog.String("provider", provider.String()), slog.String("model", req.Model))

	var (
		text string
		err  error
	)
	if provider == ProviderOpenAI {
		text, err = s.generateOpenAI(ctx, req)
	} else {
		text, err = s.generateAnthropic(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("llm: %s request failed: %w", provider, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("llm: %s: %w", provider, ErrEmptyResponse)
	}
	return text, nil
}
