package sensor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerRepository wraps a Repository with a circuit breaker so requests fail
// fast while the backing store is unhealthy instead of piling up on a dead
// connection pool. Writes are never retried here: a failed ingest or delete
// surfaces to the caller.
type BreakerRepository struct {
	inner Repository
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerRepository wraps inner with a circuit breaker. The breaker trips
// after at least 5 requests with a 50%+ failure rate and probes again after
// 30 seconds.
func NewBreakerRepository(inner Repository, logger zerolog.Logger) *BreakerRepository {
	settings := gobreaker.Settings{
		Name:        "sample-store",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		IsSuccessful: func(err error) bool {
			// Absence of data is a valid outcome, not a store failure.
			return err == nil || errors.Is(err, ErrSampleNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("sample store circuit breaker state change")
		},
	}

	return &BreakerRepository{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Insert appends a sample through the breaker.
func (r *BreakerRepository) Insert(ctx context.Context, sample *Sample) error {
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.inner.Insert(ctx, sample)
	})
	return err
}

// Latest returns the most recently stored sample through the breaker.
func (r *BreakerRepository) Latest(ctx context.Context, deviceIDs []string) (*Sample, error) {
	result, err := r.cb.Execute(func() (any, error) {
		return r.inner.Latest(ctx, deviceIDs)
	})
	if err != nil {
		return nil, err
	}
	sample, _ := result.(*Sample)
	return sample, nil
}

// Window returns windowed samples through the breaker.
func (r *BreakerRepository) Window(ctx context.Context, deviceIDs []string, since, until *time.Time) ([]Sample, error) {
	result, err := r.cb.Execute(func() (any, error) {
		return r.inner.Window(ctx, deviceIDs, since, until)
	})
	if err != nil {
		return nil, err
	}
	samples, _ := result.([]Sample)
	return samples, nil
}

// All returns every stored sample through the breaker.
func (r *BreakerRepository) All(ctx context.Context) ([]Sample, error) {
	result, err := r.cb.Execute(func() (any, error) {
		return r.inner.All(ctx)
	})
	if err != nil {
		return nil, err
	}
	samples, _ := result.([]Sample)
	return samples, nil
}

// DeleteByID removes a sample through the breaker.
func (r *BreakerRepository) DeleteByID(ctx context.Context, seq int64) error {
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.inner.DeleteByID(ctx, seq)
	})
	return err
}

// Ensure BreakerRepository implements Repository interface.
var _ Repository = (*BreakerRepository)(nil)
