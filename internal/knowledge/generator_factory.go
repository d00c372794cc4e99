package knowledge

import (
	"context"
	"fmt"
	"strings"
)

type GeneratorOptions struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

func NewGenerator(ctx context.Context, opts GeneratorOptions) (Generator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("api key not provided")
	}

	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "gemini":
		model := opts.Model
		if model == "" {
			model = "gemini-2.5-flash"
		}
		return NewGeminiGenerator(ctx, opts.APIKey, model)
	case "openai":
		model := opts.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAIGenerator(opts.APIKey, model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported generator provider: %s", opts.Provider)
	}
}
