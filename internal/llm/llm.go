package llm

import (
	"context"
	"errors"
	"fmt"

	"family-ops/internal/config"
	"family-ops/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// ErrDisabled is returned by the generator used when no provider is configured.
var ErrDisabled = errors.New("text generation disabled")

// APIError is a non-2xx reply from a provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

type disabledGenerator struct{}

func (disabledGenerator) GenerateContent(context.Context, string) (ContentResponse, error) {
	return ContentResponse{}, ErrDisabled
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewFromConfig builds the configured provider wrapped with retries. The
// returned Closer releases provider resources.
func NewFromConfig(ctx context.Context, cfg *config.Config) (TextGenerator, Closer, error) {
	policy := RetryPolicy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxJitter:  cfg.Retry.MaxJitter,
	}

	switch cfg.LLMProvider {
	case config.ProviderGroq:
		return WithRetry(NewGroqClient(cfg), policy), nopCloser{}, nil
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return WithRetry(client, policy), client, nil
	default:
		return disabledGenerator{}, nopCloser{}, nil
	}
}
