package sensor

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	samples []Sample
	nextSeq int64
}

// NewInMemoryRepository creates a new in-memory sample repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextSeq: 1}
}

// Insert appends a sample and assigns its stored sequence number.
func (r *InMemoryRepository) Insert(_ context.Context, sample *Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sample.Seq = r.nextSeq
	r.nextSeq++
	r.samples = append(r.samples, *sample)
	return nil
}

// Latest returns the most recently stored sample among the given devices.
func (r *InMemoryRepository) Latest(_ context.Context, deviceIDs []string) (*Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := toSet(deviceIDs)
	for i := len(r.samples) - 1; i >= 0; i-- {
		if allowed[r.samples[i].DeviceID] {
			cpy := r.samples[i]
			return &cpy, nil
		}
	}
	return nil, nil
}

// Window returns all samples for the given devices within the optional bounds.
func (r *InMemoryRepository) Window(_ context.Context, deviceIDs []string, since, until *time.Time) ([]Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := toSet(deviceIDs)
	var result []Sample
	for _, s := range r.samples {
		if !allowed[s.DeviceID] {
			continue
		}
		if since != nil && s.CreatedAt.Before(*since) {
			continue
		}
		if until != nil && s.CreatedAt.After(*until) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

// All returns every stored sample.
func (r *InMemoryRepository) All(_ context.Context) ([]Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Sample, len(r.samples))
	copy(result, r.samples)
	return result, nil
}

// DeleteByID removes a sample by sequence number.
func (r *InMemoryRepository) DeleteByID(_ context.Context, seq int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.samples {
		if s.Seq == seq {
			r.samples = append(r.samples[:i], r.samples[i+1:]...)
			return nil
		}
	}
	return ErrSampleNotFound
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
