// Package classifier turns remote classifier output into verdicts.
// The Adapter never returns an error: transport failures and unreadable
// payloads become an "API Failure" verdict, missing fields get defaults.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"sms-screening-service/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Provider returns the raw JSON payload for one message
type Provider interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Adapter classifies single messages through a Provider
type Adapter struct {
	provider Provider
	cache    *lru.Cache[string, models.Verdict]
	logger   *zap.Logger
}

// Option configures an Adapter
type Option func(*Adapter)

// WithCache memoizes successful verdicts for up to size distinct texts
func WithCache(size int) Option {
	return func(a *Adapter) {
		if size <= 0 {
			return
		}
		cache, err := lru.New[string, models.Verdict](size)
		if err != nil {
			a.logger.Warn("Verdict cache disabled", zap.Error(err))
			return
		}
		a.cache = cache
	}
}

// NewAdapter creates an adapter over provider
func NewAdapter(provider Provider, logger *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		provider: provider,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Classify always returns a verdict
func (a *Adapter) Classify(ctx context.Context, text string) models.Verdict {
	if a.cache != nil {
		if v, ok := a.cache.Get(text); ok {
			return v
		}
	}

	payload, err := a.provider.Classify(ctx, text)
	if err != nil {
		a.logger.Error("Remote classification failed", zap.Error(err))
		return FailureVerdict(err)
	}

	verdict, err := ParseVerdict(payload)
	if err != nil {
		a.logger.Error("Failed to parse classifier response",
			zap.Error(err),
			zap.String("response", payload))
		return FailureVerdict(err)
	}

	if a.cache != nil && verdict.Case != models.CaseError {
		a.cache.Add(text, verdict)
	}
	return verdict
}

// FailureVerdict is the verdict for a row whose remote classification failed
func FailureVerdict(err error) models.Verdict {
	return models.Verdict{
		Case:     models.CaseError,
		Category: models.CategoryAPIFailure,
		Note:     fmt.Sprintf("API Error or Format Error: %v", err),
	}
}

// ParseVerdict decodes a classifier payload. Fields that are absent, blank or not
// scalar get their defaults; an unknown case becomes "error" and an unknown
// category "Unknown". Valid JSON that is not an object has every field absent.
// It fails only when the payload is not valid JSON or is null.
func ParseVerdict(payload string) (models.Verdict, error) {
	var doc any
	if err := json.Unmarshal([]byte(stripCodeFence(payload)), &doc); err != nil {
		return models.Verdict{}, fmt.Errorf("invalid JSON response: %w", err)
	}
	if doc == nil {
		return models.Verdict{}, fmt.Errorf("invalid JSON response: null")
	}

	fields, _ := doc.(map[string]any)

	v := models.Verdict{
		Case:     models.DefaultCase,
		Category: models.DefaultCategory,
		Note:     models.DefaultNote,
	}

	if s := field(fields, "case"); s != "" {
		if c, ok := models.ParseCase(s); ok {
			v.Case = c
		}
	}
	if s := field(fields, "category"); s != "" {
		if c, ok := models.ParseCategory(s); ok {
			v.Category = c
		}
	}
	if s := field(fields, "note"); s != "" {
		v.Note = s
	}

	return v, nil
}

// stripCodeFence removes surrounding whitespace and Markdown code fences
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// field returns a scalar field as trimmed text, or "" when it is absent or structured
func field(fields map[string]any, key string) string {
	switch val := fields[key].(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
