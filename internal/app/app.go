// Package app wires configuration into the screening components shared by
// the HTTP server and the command line tool.
package app

import (
	"fmt"

	"sms-screening-service/internal/classifier"
	"sms-screening-service/internal/config"
	"sms-screening-service/internal/llm"
	"sms-screening-service/internal/metrics"
	"sms-screening-service/internal/prefilter"
	"sms-screening-service/internal/service"

	"go.uber.org/zap"
)

const placeholderAPIKey = "YOUR_API_KEY_HERE"

// NewLogger builds the process logger from the log section
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	return zcfg.Build()
}

// NewProvider builds the remote classification chain. Configured providers are
// tried in order with failover; without them a single rate limited Gemini
// client is used.
func NewProvider(cfg *config.Config, logger *zap.Logger) (llm.Provider, error) {
	if len(cfg.Providers) > 0 {
		multiClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
			Providers:   cfg.Providers,
			MaxFailures: cfg.MaxFailuresBeforeSwitch,
		}, logger)
		if err == nil {
			logger.Info("Multi-provider client initialized",
				zap.Int("provider_count", len(cfg.Providers)))
			return multiClient, nil
		}
		logger.Warn("Failed to initialize multi-provider client, falling back to single provider",
			zap.Error(err))
	}

	if cfg.Gemini.APIKey == "" || cfg.Gemini.APIKey == placeholderAPIKey {
		return nil, fmt.Errorf("gemini API key not configured: set it in the config file or GEMINI_API_KEY")
	}

	providerCfg := cfg.ProviderConfigs()[0]
	if len(cfg.Providers) > 0 {
		providerCfg = llm.ProviderConfig{
			Type:       llm.ProviderGemini,
			APIKey:     cfg.Gemini.APIKey,
			ModelName:  cfg.Gemini.ModelName,
			MaxRetries: cfg.Gemini.MaxRetries,
			RetryDelay: cfg.Gemini.RetryDelay,
		}
	}

	client, err := llm.NewProvider(providerCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	logger.Info("Single provider client initialized with rate limiting")
	return llm.NewGuardedProvider("gemini", client, llm.DefaultRequestsPerMinute, logger), nil
}

// NewScreener assembles the pre-filter, adapter and batch settings around provider.
// m may be nil.
func NewScreener(cfg *config.Config, provider classifier.Provider, m *metrics.ScreeningMetrics, logger *zap.Logger) *service.Screener {
	adapter := classifier.NewAdapter(provider, logger, classifier.WithCache(cfg.Classifier.CacheSize))

	return service.NewScreener(prefilter.New(), adapter, m, service.ScreenerConfig{
		Workers:    cfg.Batch.Workers,
		RowTimeout: cfg.Batch.RowTimeout,
	}, logger)
}
