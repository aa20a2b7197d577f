package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.0-flash"
)

// GeminiClient calls the Generative Language generateContent endpoint.
type GeminiClient struct {
	cfg    HTTPClientConfig
	client *http.Client
}

func NewGeminiClient(cfg HTTPClientConfig) (*GeminiClient, error) {
	normalized, err := cfg.normalized(defaultGeminiBaseURL, defaultGeminiModel)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cfg: normalized, client: &http.Client{Timeout: normalized.Timeout}}, nil
}

func (c *GeminiClient) Provider() string { return "gemini" }
func (c *GeminiClient) Model() string    { return c.cfg.Model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (Response, error) {
	generationConfig := map[string]any{}
	if c.cfg.Temperature != nil {
		generationConfig["temperature"] = *c.cfg.Temperature
	}
	if c.cfg.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = c.cfg.MaxTokens
	}
	payload := map[string]any{
		"contents":         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		"generationConfig": generationConfig,
	}

	var parsed struct {
		Candidates []struct {
			Content      geminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, url.PathEscape(c.cfg.Model))
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}
	if err := postJSON(ctx, c.client, endpoint, headers, payload, &parsed); err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		if parsed.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", parsed.PromptFeedback.BlockReason)
		}
		return PartsResponse{}, nil
	}

	parts := make([]string, 0, len(parsed.Candidates[0].Content.Parts))
	for _, part := range parsed.Candidates[0].Content.Parts {
		parts = append(parts, part.Text)
	}
	return PartsResponse{Parts: parts}, nil
}
