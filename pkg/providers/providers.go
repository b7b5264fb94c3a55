package providers

import (
	"context"
	"fmt"
	"strings"
)

// Client completes a prompt with a language model.
type Client interface {
	Complete(ctx context.Context, model string, prompt string, system string) (string, error)
}

type ProviderParams struct {
	BaseURL string
	APIKey  string
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

// New returns the client for the named provider ("openai" or "gemini").
func New(ctx context.Context, name string, opts ...ProviderOption) (Client, error) {
	switch strings.ToLower(name) {
	case "", "openai":
		return OpenAi(ctx, opts...), nil
	case "gemini", "google":
		return Gemini(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
