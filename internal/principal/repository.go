package principal

import (
	"context"
	"errors"
)

// Repository errors.
var (
	ErrNotFound   = errors.New("principal not found")
	ErrStaleWrite = errors.New("stale write: patient was modified concurrently")
)

// PatientRepository defines the interface for patient persistence.
type PatientRepository interface {
	// Create persists a new patient with its initial device bindings.
	Create(ctx context.Context, patient *Patient) error

	// FindByEmail finds a patient by lowercased email.
	FindByEmail(ctx context.Context, email string) (*Patient, error)

	// FindByID finds a patient by ID.
	FindByID(ctx context.Context, id string) (*Patient, error)

	// Update replaces the patient aggregate (device list included) if the
	// stored version matches expectedVersion, bumping the version. A version
	// mismatch fails with ErrStaleWrite.
	Update(ctx context.Context, patient *Patient, expectedVersion int64) error

	// ListByPhysician returns all patients assigned to the given physician.
	ListByPhysician(ctx context.Context, physicianID string) ([]*Patient, error)

	// TouchLastAccess records a successful login.
	TouchLastAccess(ctx context.Context, id string) error
}

// PhysicianRepository defines the interface for physician persistence.
type PhysicianRepository interface {
	// Create persists a new physician.
	Create(ctx context.Context, physician *Physician) error

	// FindByEmail finds a physician by lowercased email.
	FindByEmail(ctx context.Context, email string) (*Physician, error)

	// FindByID finds a physician by ID.
	FindByID(ctx context.Context, id string) (*Physician, error)

	// List returns all physicians ordered by email.
	List(ctx context.Context) ([]*Physician, error)

	// TouchLastAccess records a successful login.
	TouchLastAccess(ctx context.Context, id string) error
}
