// Package resilience guards optional backends (the Redis figure cache) with
// a circuit breaker so a failing dependency degrades the dashboard instead
// of stalling every recompute behind network timeouts.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker refuses a call, either because
// it is open or because its half-open trial calls are already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker's current phase.
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// BreakerConfig controls failure thresholds and recovery timing.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	HalfOpenRequests int
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Breaker trips open after FailureThreshold consecutive failures. After
// ResetTimeout it lets HalfOpenRequests calls through; that many successes
// close it, one failure re-opens it.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker creates a Breaker, filling in defaults for zero config values.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	defaults := defaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaults.ResetTimeout
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = defaults.HalfOpenRequests
	}

	logger := slog.Default().With("component", "circuit-breaker", "name", name)
	threshold := uint32(cfg.FailureThreshold)
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.HalfOpenRequests),
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				logger.Warn("circuit opened", "from", from.String(), "reset_after", cfg.ResetTimeout)
			case gobreaker.StateHalfOpen:
				logger.Info("circuit half-open")
			case gobreaker.StateClosed:
				logger.Info("circuit closed (recovered)")
			}
		},
	}
	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn if the circuit allows it and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s (%v)", ErrCircuitOpen, b.name, err)
	}
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	return b.cb.State()
}
