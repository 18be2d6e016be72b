// Package openaicompat classifies messages through any OpenAI-compatible
// chat completions API (OpenAI, Groq, OpenRouter).
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sms-screening-service/internal/gemini"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Base URLs and default models of the supported flavours
const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	OpenAIDefaultModel     = "gpt-4o-mini"
	GroqDefaultModel       = "llama-3.3-70b-versatile"
	OpenRouterDefaultModel = "meta-llama/llama-3.2-3b-instruct:free"
)

// ErrEmptyResponse is returned when the completion has no content
var ErrEmptyResponse = errors.New("empty response from provider")

// Client is a chat completions classifier
type Client struct {
	client     *openai.Client
	provider   string
	modelName  string
	baseURL    string
	jsonMode   bool
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// Config for an OpenAI-compatible client
type Config struct {
	Provider   string // "openai", "groq" or "openrouter"; selects base URL and model defaults
	APIKey     string
	BaseURL    string
	ModelName  string
	MaxRetries int
	RetryDelay time.Duration
	// DisableJSONMode omits response_format for backends that reject it
	DisableJSONMode bool
}

// NewClient creates a new OpenAI-compatible client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}

	switch cfg.Provider {
	case "groq":
		cfg.BaseURL = orDefault(cfg.BaseURL, GroqBaseURL)
		cfg.ModelName = orDefault(cfg.ModelName, GroqDefaultModel)
	case "openrouter":
		cfg.BaseURL = orDefault(cfg.BaseURL, OpenRouterBaseURL)
		cfg.ModelName = orDefault(cfg.ModelName, OpenRouterDefaultModel)
	case "openai", "":
		cfg.Provider = "openai"
		cfg.BaseURL = orDefault(cfg.BaseURL, OpenAIBaseURL)
		cfg.ModelName = orDefault(cfg.ModelName, OpenAIDefaultModel)
	default:
		return nil, fmt.Errorf("unknown openai-compatible provider %q", cfg.Provider)
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	logger.Info("OpenAI-compatible client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.ModelName),
		zap.String("base_url", cfg.BaseURL),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:     openai.NewClientWithConfig(clientCfg),
		provider:   cfg.Provider,
		modelName:  cfg.ModelName,
		baseURL:    cfg.BaseURL,
		jsonMode:   !cfg.DisableJSONMode,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Close is a no-op, HTTP connections are pooled by the transport
func (c *Client) Close() error {
	return nil
}

// Classify sends one message and returns the raw JSON payload
func (c *Client) Classify(ctx context.Context, text string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: gemini.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
		MaxTokens:   500,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << (attempt - 1)
			c.logger.Warn("Retrying chat completion",
				zap.String("provider", c.provider),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries),
				zap.Duration("delay", delay))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("%s API error: %w", c.provider, err)
			c.logger.Error("Chat completion failed",
				zap.String("provider", c.provider),
				zap.Error(err),
				zap.Int("attempt", attempt+1))
			if ctx.Err() != nil || !retryable(err) {
				return "", lastErr
			}
			continue
		}

		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			lastErr = ErrEmptyResponse
			c.logger.Error("Empty chat completion",
				zap.String("provider", c.provider),
				zap.Int("attempt", attempt+1))
			continue
		}

		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// retryable reports whether an API error is worth another attempt.
// Client errors other than 408/429 will fail the same way again.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 408 || apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 408 || reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return true
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    c.provider,
		"model":       c.modelName,
		"base_url":    c.baseURL,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
