package principal

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryPatientRepository is an in-memory implementation of
// PatientRepository. This is intended for testing. Production should use
// PostgresPatientRepository.
type InMemoryPatientRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

// NewInMemoryPatientRepository creates a new in-memory patient repository.
func NewInMemoryPatientRepository() *InMemoryPatientRepository {
	return &InMemoryPatientRepository{
		patients: make(map[string]*Patient),
	}
}

// Create persists a new patient.
func (r *InMemoryPatientRepository) Create(_ context.Context, patient *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := clonePatient(patient)
	r.patients[patient.ID] = cpy
	return nil
}

// FindByEmail finds a patient by lowercased email.
func (r *InMemoryPatientRepository) FindByEmail(_ context.Context, email string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.patients {
		if p.Email == email {
			return clonePatient(p), nil
		}
	}
	return nil, ErrNotFound
}

// FindByID finds a patient by ID.
func (r *InMemoryPatientRepository) FindByID(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePatient(p), nil
}

// Update replaces the patient aggregate with a version check.
func (r *InMemoryPatientRepository) Update(_ context.Context, patient *Patient, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.patients[patient.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrStaleWrite
	}

	cpy := clonePatient(patient)
	cpy.Version = expectedVersion + 1
	r.patients[patient.ID] = cpy
	patient.Version = cpy.Version
	return nil
}

// ListByPhysician returns all patients assigned to the given physician.
func (r *InMemoryPatientRepository) ListByPhysician(_ context.Context, physicianID string) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var patients []*Patient
	for _, p := range r.patients {
		if p.PhysicianID == physicianID {
			patients = append(patients, clonePatient(p))
		}
	}
	return patients, nil
}

// TouchLastAccess records a successful login.
func (r *InMemoryPatientRepository) TouchLastAccess(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return ErrNotFound
	}
	p.LastAccess = time.Now()
	return nil
}

func clonePatient(p *Patient) *Patient {
	cpy := *p
	cpy.Devices = make([]DeviceBinding, len(p.Devices))
	copy(cpy.Devices, p.Devices)
	return &cpy
}

// InMemoryPhysicianRepository is an in-memory implementation of
// PhysicianRepository for testing.
type InMemoryPhysicianRepository struct {
	mu         sync.RWMutex
	physicians map[string]*Physician
}

// NewInMemoryPhysicianRepository creates a new in-memory physician repository.
func NewInMemoryPhysicianRepository() *InMemoryPhysicianRepository {
	return &InMemoryPhysicianRepository{
		physicians: make(map[string]*Physician),
	}
}

// Create persists a new physician.
func (r *InMemoryPhysicianRepository) Create(_ context.Context, physician *Physician) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *physician
	r.physicians[physician.ID] = &cpy
	return nil
}

// FindByEmail finds a physician by lowercased email.
func (r *InMemoryPhysicianRepository) FindByEmail(_ context.Context, email string) (*Physician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.physicians {
		if p.Email == email {
			cpy := *p
			return &cpy, nil
		}
	}
	return nil, ErrNotFound
}

// FindByID finds a physician by ID.
func (r *InMemoryPhysicianRepository) FindByID(_ context.Context, id string) (*Physician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.physicians[id]
	if !ok {
		return nil, ErrNotFound
	}
	cpy := *p
	return &cpy, nil
}

// List returns all physicians ordered by email.
func (r *InMemoryPhysicianRepository) List(_ context.Context) ([]*Physician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	physicians := make([]*Physician, 0, len(r.physicians))
	for _, p := range r.physicians {
		cpy := *p
		physicians = append(physicians, &cpy)
	}
	sort.Slice(physicians, func(i, j int) bool {
		return physicians[i].Email < physicians[j].Email
	})
	return physicians, nil
}

// TouchLastAccess records a successful login.
func (r *InMemoryPhysicianRepository) TouchLastAccess(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.physicians[id]
	if !ok {
		return ErrNotFound
	}
	p.LastAccess = time.Now()
	return nil
}

// Ensure the in-memory repositories implement their interfaces.
var (
	_ PatientRepository   = (*InMemoryPatientRepository)(nil)
	_ PhysicianRepository = (*InMemoryPhysicianRepository)(nil)
)
