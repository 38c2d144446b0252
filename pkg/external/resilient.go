package external

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/patient-data-generator/internal/domain"
)

// ResilientModelClient wraps a ModelClient with a circuit breaker and a
// bounded prompt cache. When the breaker is open every call returns an
// APIError immediately, which downgrades the whole run to rule-based
// generation instead of hammering a failing API.
type ResilientModelClient struct {
	client  domain.ModelClient
	breaker *gobreaker.CircuitBreaker
	cache   *expirable.LRU[string, string]
	logger  *logrus.Logger
}

// NewResilientModelClient wraps client. cacheSize bounds the number of
// cached completions; identical prompts within the TTL are answered
// from cache without spending API credit.
func NewResilientModelClient(client domain.ModelClient, cacheSize int, logger *logrus.Logger) *ResilientModelClient {
	if cacheSize < 1 {
		cacheSize = 256
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "OpenAI",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Model circuit breaker state changed")
		},
	})

	return &ResilientModelClient{
		client:  client,
		breaker: breaker,
		cache:   expirable.NewLRU[string, string](cacheSize, nil, 10*time.Minute),
		logger:  logger,
	}
}

// Model returns the wrapped client's model identifier.
func (r *ResilientModelClient) Model() string {
	return r.client.Model()
}

// Complete answers from cache when possible, otherwise goes through the
// circuit breaker to the wrapped client.
func (r *ResilientModelClient) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	key := r.client.Model() + "\x00" + system + "\x00" + user
	if cached, ok := r.cache.Get(key); ok {
		r.logger.WithField("model", r.client.Model()).Debug("Completion served from cache")
		return cached, nil
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Complete(ctx, system, user, temperature, maxTokens)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", domain.NewAPIError("openai", "model unavailable (circuit breaker open)", err)
		}
		return "", err
	}

	answer := result.(string)
	r.cache.Add(key, answer)
	return answer, nil
}
