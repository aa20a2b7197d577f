package nl2sql

import (
	"fmt"

	"github.com/askdb/askdb/internal/config"
)

// NewModelClient builds the provider selected in configuration. The API key
// comes from cfg only; nothing in this package reads the environment.
func NewModelClient(cfg config.AIConfig) (ModelClient, error) {
	httpCfg := HTTPClientConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiClient(httpCfg)
	case config.ProviderOpenAI:
		return NewOpenAIClient(httpCfg)
	case config.ProviderAnthropic:
		return NewAnthropicClient(httpCfg)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
