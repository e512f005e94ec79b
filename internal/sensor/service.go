package sensor

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service errors.
var (
	ErrValidation    = errors.New("invalid sample payload")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Service is the access-controlled query engine over the sample store.
//
// Writes are authenticated by a pre-shared API key (device ingestion does not
// carry per-principal credentials). Reads take the caller's resolved device
// set and never return samples outside it.
type Service struct {
	repo      Repository
	ingestKey string
	logger    zerolog.Logger
}

// ServiceConfig holds configuration for the query engine.
type ServiceConfig struct {
	Repository Repository

	// IngestAPIKey is the pre-shared device ingestion key from the secrets
	// material. Immutable for the process lifetime.
	IngestAPIKey string

	Logger zerolog.Logger
}

// NewService creates a new query engine.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:      cfg.Repository,
		ingestKey: cfg.IngestAPIKey,
		logger:    cfg.Logger,
	}
}

// WriteSample authenticates the API key, normalizes and validates the payload,
// and appends the sample. The write is not retried on storage failure; a
// duplicate from a fire-and-forget retry would be indistinguishable from a
// real measurement.
func (s *Service) WriteSample(ctx context.Context, apiKey string, payload RawPayload) (*Sample, error) {
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.ingestKey)) != 1 {
		return nil, ErrInvalidAPIKey
	}

	input, err := payload.Normalize()
	if err != nil {
		return nil, err
	}

	return s.store(ctx, input)
}

// Ingest appends an already-authenticated sample. Used by the Pub/Sub ingest
// worker, whose transport is trusted; validation still applies.
func (s *Service) Ingest(ctx context.Context, payload RawPayload) (*Sample, error) {
	input, err := payload.Normalize()
	if err != nil {
		return nil, err
	}
	return s.store(ctx, input)
}

func (s *Service) store(ctx context.Context, input Input) (*Sample, error) {
	sample := &Sample{
		DeviceID:  input.DeviceID,
		BPM:       input.BPM,
		SpO2:      input.SpO2,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Insert(ctx, sample); err != nil {
		s.logger.Error().
			Err(err).
			Str("operation", "write_sample").
			Str("device_id", input.DeviceID).
			Msg("sample write failed")
		return nil, fmt.Errorf("storing sample: %w", err)
	}

	return sample, nil
}

// Latest returns the most recently stored sample among the caller's devices,
// optionally narrowed to one device. A filter outside the authorized set and
// an empty store both yield nil, which is not an error.
func (s *Service) Latest(ctx context.Context, deviceIDs []string, deviceFilter string) (*Sample, error) {
	scope := restrict(deviceIDs, deviceFilter)
	if len(scope) == 0 {
		return nil, nil
	}

	sample, err := s.repo.Latest(ctx, scope)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("operation", "read_latest").
			Strs("device_ids", scope).
			Msg("latest sample read failed")
		return nil, fmt.Errorf("reading latest sample: %w", err)
	}

	return sample, nil
}

// Window returns all samples for the caller's devices within the optional
// time bounds, oldest first. An empty result is valid.
func (s *Service) Window(ctx context.Context, deviceIDs []string, deviceFilter string, since, until *time.Time) ([]Sample, error) {
	scope := restrict(deviceIDs, deviceFilter)
	if len(scope) == 0 {
		return nil, nil
	}

	samples, err := s.repo.Window(ctx, scope, since, until)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("operation", "read_window").
			Strs("device_ids", scope).
			Msg("windowed sample read failed")
		return nil, fmt.Errorf("reading sample window: %w", err)
	}

	return samples, nil
}

// All returns every stored sample with no device filter. This bypasses the
// authorization invariant and must only be reachable through the admin
// surface, which is disabled unless debug endpoints are enabled explicitly.
func (s *Service) All(ctx context.Context) ([]Sample, error) {
	samples, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading all samples: %w", err)
	}
	return samples, nil
}

// Delete removes a sample by sequence number. Admin use only.
func (s *Service) Delete(ctx context.Context, seq int64) error {
	if err := s.repo.DeleteByID(ctx, seq); err != nil {
		if errors.Is(err, ErrSampleNotFound) {
			return err
		}
		return fmt.Errorf("deleting sample %d: %w", seq, err)
	}
	return nil
}

// restrict narrows the authorized device set to the optional filter. A filter
// outside the set produces an empty scope: the caller simply sees no data.
func restrict(deviceIDs []string, filter string) []string {
	if filter == "" {
		return deviceIDs
	}
	for _, id := range deviceIDs {
		if id == filter {
			return []string{filter}
		}
	}
	return nil
}
