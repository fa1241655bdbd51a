package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/popanda44/seedvalidator-finance/internal/database"
	"github.com/popanda44/seedvalidator-finance/internal/models"
)

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `json:"failure_threshold"` // Consecutive failures before opening
	Cooldown         time.Duration `json:"cooldown"`          // Time spent open before a trial call
	// IsFailure decides which errors count against the circuit. Nil counts every error.
	IsFailure func(error) bool `json:"-"`
}

// CircuitBreaker stops calling a failing dependency for a cooldown period.
// After the cooldown a single trial call decides whether to close again.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger logrus.FieldLogger) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	isFailure := config.IsFailure
	if isFailure == nil {
		isFailure = func(error) bool { return true }
	}
	threshold := config.FailureThreshold

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     config.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"old_state":       from.String(),
				"new_state":       to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &CircuitBreaker{name: name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn unless the circuit is open. A rejected call returns an
// error wrapping ErrStoreUnavailable.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit %s is %s", ErrStoreUnavailable, b.name, b.cb.State())
	}
	return err
}

// State returns the current state of the circuit breaker
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}

// Counts returns the request counts of the current generation.
func (b *CircuitBreaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// storeFailure reports whether a store error says something about the
// store's health. Missing data and caller cancellation do not.
func storeFailure(err error) bool {
	return !errors.Is(err, database.ErrNoObservations) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// BreakerStore guards an ObservationStore with a circuit breaker.
type BreakerStore struct {
	store   ObservationStore
	breaker *CircuitBreaker
}

// NewBreakerStore wraps store so that repeated failures short-circuit to
// ErrStoreUnavailable until the cooldown elapses.
func NewBreakerStore(store ObservationStore, config CircuitBreakerConfig, logger logrus.FieldLogger) *BreakerStore {
	if config.IsFailure == nil {
		config.IsFailure = storeFailure
	}
	return &BreakerStore{
		store:   store,
		breaker: NewCircuitBreaker("observation_store", config, logger),
	}
}

// Breaker exposes the underlying circuit breaker.
func (b *BreakerStore) Breaker() *CircuitBreaker {
	return b.breaker
}

func (b *BreakerStore) ListObservations(ctx context.Context, companyID string, metric models.MetricKind, limit int) ([]models.MetricObservation, error) {
	var rows []models.MetricObservation
	err := b.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		rows, err = b.store.ListObservations(ctx, companyID, metric, limit)
		return err
	})
	return rows, err
}

func (b *BreakerStore) UpsertObservations(ctx context.Context, observations []models.MetricObservation) (int, error) {
	var n int
	err := b.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		n, err = b.store.UpsertObservations(ctx, observations)
		return err
	})
	return n, err
}

func (b *BreakerStore) LatestValue(ctx context.Context, companyID string, metric models.MetricKind) (float64, error) {
	var v float64
	err := b.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		v, err = b.store.LatestValue(ctx, companyID, metric)
		return err
	})
	return v, err
}

func (b *BreakerStore) ListCompanies(ctx context.Context, metric models.MetricKind) ([]string, error) {
	var ids []string
	err := b.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ids, err = b.store.ListCompanies(ctx, metric)
		return err
	})
	return ids, err
}
