package app

import (
	"context"
	"testing"

	"sms-screening-service/internal/config"
	"sms-screening-service/internal/llm"
	"sms-screening-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingProvider struct {
	calls int
}

func (p *countingProvider) Classify(context.Context, string) (string, error) {
	p.calls++
	return `{"case":"pass","category":"Marketing/Promo","note":"promo"}`, nil
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.Log.Level = "loud"
	_, err = NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewProviderRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := config.Default()
	cfg.Gemini.APIKey = placeholderAPIKey

	_, err := NewProvider(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "API key not configured")
}

func TestNewProviderMulti(t *testing.T) {
	cfg := config.Default()
	cfg.Providers = []llm.ProviderConfig{
		{Type: llm.ProviderGroq, APIKey: "k1"},
		{Type: llm.ProviderOpenRouter, APIKey: "k2"},
	}

	provider, err := NewProvider(cfg, zap.NewNop())
	require.NoError(t, err)
	defer provider.Close()

	_, ok := provider.(*llm.MultiProviderClient)
	assert.True(t, ok)
}

func TestNewScreenerUsesCache(t *testing.T) {
	cfg := config.Default()
	cfg.Classifier.CacheSize = 10

	provider := &countingProvider{}
	screener := NewScreener(cfg, provider, nil, zap.NewNop())

	rec := models.InputRecord{Sender: "SHOP", Text: "sale today"}
	first := screener.ClassifyOne(context.Background(), rec)
	second := screener.ClassifyOne(context.Background(), rec)

	assert.Equal(t, first, second)
	assert.Equal(t, models.CategoryMarketing, first.Category)
	assert.Equal(t, 1, provider.calls)

	denied := screener.ClassifyOne(context.Background(), models.InputRecord{Sender: "X", Text: "เงินด่วน"})
	assert.Equal(t, models.CaseNotPass, denied.Case)
	assert.Equal(t, 1, provider.calls)
}
