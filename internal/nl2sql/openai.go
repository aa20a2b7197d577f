package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4.1-mini"
)

// HTTPClientConfig is shared by the REST providers.
type HTTPClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

func (c HTTPClientConfig) normalized(defaultBaseURL, defaultModel string) (HTTPClientConfig, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return HTTPClientConfig{}, fmt.Errorf("api key is required")
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c, nil
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	cfg    HTTPClientConfig
	client *http.Client
}

func NewOpenAIClient(cfg HTTPClientConfig) (*OpenAIClient, error) {
	normalized, err := cfg.normalized(defaultOpenAIBaseURL, defaultOpenAIModel)
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{cfg: normalized, client: &http.Client{Timeout: normalized.Timeout}}, nil
}

func (c *OpenAIClient) Provider() string { return "openai" }
func (c *OpenAIClient) Model() string    { return c.cfg.Model }

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (Response, error) {
	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if c.cfg.Temperature != nil {
		payload["temperature"] = *c.cfg.Temperature
	}
	if c.cfg.MaxTokens > 0 {
		payload["max_completion_tokens"] = c.cfg.MaxTokens
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if err := postJSON(ctx, c.client, c.cfg.BaseURL+"/v1/chat/completions", headers, payload, &parsed); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return TextResponse{}, nil
	}
	return TextResponse{Text: parsed.Choices[0].Message.Content}, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(string(raw), 512))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
