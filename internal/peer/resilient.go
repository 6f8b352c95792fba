package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type ResilienceConfig struct {
	Name string

	// MaxRetries is the number of additional attempts after the first failure.
	MaxRetries      uint64
	InitialInterval time.Duration

	// Timeout bounds all attempts of one call together, backoff included.
	Timeout time.Duration

	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func (c ResilienceConfig) withDefaults() ResilienceConfig {
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultReadTimeout
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	return c
}

// Fallback produces the substitute result for a failed call.
type Fallback[R any] func(ctx context.Context, key string, cause error) R

// Resilient wraps a PeerClient. NotFound answers pass through untouched;
// every other failure is retried, counted by the breaker and finally
// replaced by the fallback value together with domain.ErrPeerUnavailable.
type Resilient[R any] struct {
	next      PeerClient[R]
	cfg       ResilienceConfig
	breaker   *gobreaker.CircuitBreaker[R]
	fallback  Fallback[R]
	logger    *slog.Logger
	fallbacks metric.Int64Counter
}

func NewResilient[R any](next PeerClient[R], cfg ResilienceConfig, fallback Fallback[R], logger *slog.Logger) *Resilient[R] {
	cfg = cfg.withDefaults()

	breaker := gobreaker.NewCircuitBreaker[R](gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "peer", name, "from", from.String(), "to", to.String())
		},
	})

	counter, _ := otel.Meter("shopflow/peer").Int64Counter("peer.fallbacks",
		metric.WithDescription("calls answered by the fallback"))

	return &Resilient[R]{
		next:      next,
		cfg:       cfg,
		breaker:   breaker,
		fallback:  fallback,
		logger:    logger,
		fallbacks: counter,
	}
}

func (r *Resilient[R]) Call(ctx context.Context, key string) (R, error) {
	result, err := r.breaker.Execute(func() (R, error) {
		return r.retry(ctx, key)
	})
	if err == nil {
		return result, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		var zero R
		return zero, err
	}

	r.logger.Warn("peer fallback invoked", "peer", r.cfg.Name, "key", key, "error", err)
	r.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("peer", r.cfg.Name)))

	return r.fallback(ctx, key, err), fmt.Errorf("%w: %s: %v", domain.ErrPeerUnavailable, r.cfg.Name, err)
}

func (r *Resilient[R]) retry(ctx context.Context, key string) (R, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval

	return backoff.RetryWithData(func() (R, error) {
		result, err := r.next.Call(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx))
}
