package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Config tunes one policy. A policy is built per collaborator so an outage of
// the payment service never opens the stock service's breaker.
type Config struct {
	MaxAttempts          uint64
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	Window               time.Duration
	FailureRateThreshold float64
	MinRequests          uint32
	OpenTimeout          time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:          3,
		InitialBackoff:       100 * time.Millisecond,
		MaxBackoff:           2 * time.Second,
		Window:               30 * time.Second,
		FailureRateThreshold: 0.5,
		MinRequests:          5,
		OpenTimeout:          10 * time.Second,
	}
}

// Permanent marks an error as not worth retrying. Permanent errors also do
// not count against the circuit breaker: a 404 or a declined payment says
// nothing about the collaborator's health.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func isPermanent(err error) bool {
	var pe *backoff.PermanentError
	return errors.As(err, &pe)
}

// Policy combines bounded exponential retry with a failure-rate circuit
// breaker. Retry wraps the breaker, so once the breaker opens the remaining
// attempts fail fast instead of hammering a dead collaborator.
type Policy struct {
	log     *slog.Logger
	name    string
	cfg     Config
	breaker *gobreaker.CircuitBreaker
}

func NewPolicy(log *slog.Logger, name string, cfg Config) *Policy {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= cfg.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRateThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "collaborator", name, "from", from.String(), "to", to.String())
		},
	}
	return &Policy{log: log, name: name, cfg: cfg, breaker: gobreaker.NewCircuitBreaker(st)}
}

// Do runs fn under the policy. The returned error is fn's last error, or the
// breaker's open-state error when calls were short-circuited.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	op := func() error {
		_, err := p.breaker.Execute(func() (any, error) {
			return nil, fn(ctx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.InitialBackoff
	bo.MaxInterval = p.cfg.MaxBackoff
	bo.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, p.cfg.MaxAttempts-1), ctx))
}
