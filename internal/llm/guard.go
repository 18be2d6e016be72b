package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerMinute is a conservative free-tier limit
const DefaultRequestsPerMinute = 8

// GuardedProvider wraps a provider with rate limiting and a circuit breaker
type GuardedProvider struct {
	provider Provider
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewGuardedProvider wraps provider. requestsPerMinute <= 0 disables rate limiting.
func NewGuardedProvider(name string, provider Provider, requestsPerMinute int, logger *zap.Logger) *GuardedProvider {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		// a cancelled batch or an expired row timeout says nothing about the provider
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Provider circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &GuardedProvider{
		provider: provider,
		limiter:  limiter,
		breaker:  breaker,
		logger:   logger,
	}
}

func (p *GuardedProvider) Classify(ctx context.Context, text string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.provider.Classify(ctx, text)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (p *GuardedProvider) Close() error {
	return p.provider.Close()
}

func (p *GuardedProvider) GetModelInfo() map[string]interface{} {
	info := p.provider.GetModelInfo()
	info["breaker_state"] = p.breaker.State().String()
	return info
}
