package llm

import (
	"context"
	"fmt"
	"time"

	"sms-screening-service/internal/gemini"
	"sms-screening-service/internal/openaicompat"

	"go.uber.org/zap"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type       ProviderType  `yaml:"type"`
	APIKey     string        `yaml:"api_key"`
	ModelName  string        `yaml:"model_name"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Provider returns the raw structured payload produced for one message
type Provider interface {
	Classify(ctx context.Context, text string) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// NewProvider builds the client for a provider config
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Endpoint:   cfg.BaseURL,
		}, logger)
	case ProviderOpenAI, ProviderGroq, ProviderOpenRouter:
		return openaicompat.NewClient(openaicompat.Config{
			Provider:   string(cfg.Type),
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			ModelName:  cfg.ModelName,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
