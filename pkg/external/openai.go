// Package external contains the remote model client and its resilience
// wrapper (circuit breaker plus in-process answer cache).
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/patient-data-generator/internal/domain"
)

const providerName = "openai"

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	BaseURL   string        `json:"base_url"`
	APIKey    string        `json:"api_key"`
	Model     string        `json:"model"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit int           `json:"rate_limit"` // requests per second
}

// OpenAIClient calls the OpenAI chat-completions endpoint. Every
// failure mode is surfaced as a domain.APIError so callers can treat
// them uniformly and fall back to rule-based generation.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	logger     *logrus.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIClient creates a chat-completions client.
func NewOpenAIClient(cfg OpenAIConfig, logger *logrus.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 3
	}

	return &OpenAIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:    logger,
	}
}

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends one system/user prompt pair and returns the trimmed
// completion text. A request timeout is treated like any other APIError.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return "", domain.NewAPIError(providerName, "rate limit wait failed", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", domain.NewAPIError(providerName, "cannot encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", domain.NewAPIError(providerName, "cannot build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.NewAPIError(providerName, "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.NewAPIError(providerName, "cannot read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed chatResponse
		detail := http.StatusText(resp.StatusCode)
		if json.Unmarshal(payload, &parsed) == nil && parsed.Error != nil {
			detail = parsed.Error.Message
		}
		return "", domain.NewAPIError(providerName,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, detail), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", domain.NewAPIError(providerName, "cannot decode response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.NewAPIError(providerName, "empty completion", nil)
	}

	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	c.logger.WithFields(logrus.Fields{
		"model": c.model,
		"chars": len(answer),
	}).Debug("Completion received")
	return answer, nil
}
