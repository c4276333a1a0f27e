package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/pkg/config"
)

// ErrNotConfigured is returned by a client that has no API key.
var ErrNotConfigured = errors.New("text generation API key is not configured")

// Prompt is one request to a text generation backend.
type Prompt struct {
	Message     string
	Preamble    string
	Temperature float64
	MaxTokens   int
}

type TextGenerationClient interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

type cohereChatRequest struct {
	Model            string   `json:"model"`
	Message          string   `json:"message"`
	Preamble         string   `json:"preamble,omitempty"`
	Temperature      float64  `json:"temperature"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	PromptTruncation string   `json:"prompt_truncation,omitempty"`
	Connectors       []string `json:"connectors"`
}

type cohereChatResponse struct {
	Text string `json:"text"`
}

type cohereError struct {
	Message string `json:"message"`
}

// CohereClient calls the Cohere chat endpoint behind a circuit breaker.
type CohereClient struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	model   string
	apiKey  string
	logger  *zap.Logger
}

func NewCohereClient(cfg config.AssistantConfig, logger *zap.Logger) *CohereClient {
	logger = logger.Named("cohere")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond)
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cohere",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &CohereClient{
		http:    httpClient,
		breaker: breaker,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

func (c *CohereClient) Generate(ctx context.Context, p Prompt) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		var result cohereChatResponse
		var apiErr cohereError
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(cohereChatRequest{
				Model:            c.model,
				Message:          p.Message,
				Preamble:         p.Preamble,
				Temperature:      p.Temperature,
				MaxTokens:        p.MaxTokens,
				PromptTruncation: "AUTO",
				Connectors:       []string{},
			}).
			SetResult(&result).
			SetError(&apiErr).
			Post("/v1/chat")
		if err != nil {
			return nil, fmt.Errorf("cohere request failed: %w", err)
		}
		if resp.IsError() {
			msg := apiErr.Message
			if msg == "" {
				msg = resp.Status()
			}
			return nil, fmt.Errorf("cohere returned %d: %s", resp.StatusCode(), msg)
		}
		if result.Text == "" {
			return nil, errors.New("cohere returned an empty response")
		}
		return result.Text, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
