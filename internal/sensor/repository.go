package sensor

import (
	"context"
	"errors"
	"time"
)

// Repository errors.
var (
	ErrSampleNotFound = errors.New("sample not found")
)

// Repository defines the interface for sample persistence. Every read takes
// the caller's authorized device set; implementations must never return a
// sample for a device outside that set.
type Repository interface {
	// Insert appends a sample and assigns its stored sequence number.
	Insert(ctx context.Context, sample *Sample) error

	// Latest returns the most recently stored sample (by sequence) among the
	// given devices, or nil when there is none.
	Latest(ctx context.Context, deviceIDs []string) (*Sample, error)

	// Window returns all samples for the given devices within the optional
	// time bounds, ordered by stored sequence ascending.
	Window(ctx context.Context, deviceIDs []string, since, until *time.Time) ([]Sample, error)

	// All returns every stored sample. Admin/debug use only.
	All(ctx context.Context) ([]Sample, error)

	// DeleteByID removes a sample by sequence number. Admin use only.
	DeleteByID(ctx context.Context, seq int64) error
}
