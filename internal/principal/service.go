package principal

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service errors.
var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDeviceExists       = errors.New("device already registered")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("invalid input")
)

// Validation constants.
const (
	MinPasswordLength = 8
	MaxEmailLength    = 254
	bcryptCost        = 10
)

// timeHHMMRegex validates HH:MM wall-clock strings.
var timeHHMMRegex = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// emailRegex is a loose sanity check, not full RFC validation.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Service provides account and device-binding operations over the credential
// store. Email uniqueness is enforced per kind with a check-then-insert; the
// narrow race between check and insert is accepted (the unique index on email
// catches it as a storage error).
type Service struct {
	patients   PatientRepository
	physicians PhysicianRepository
}

// NewService creates a new principal service.
func NewService(patients PatientRepository, physicians PhysicianRepository) *Service {
	return &Service{
		patients:   patients,
		physicians: physicians,
	}
}

// RegisterPatient creates a patient account. initialDeviceID may be empty;
// when set, the patient starts with one device binding using default schedule
// settings.
func (s *Service) RegisterPatient(ctx context.Context, email, password, initialDeviceID string) (*Patient, error) {
	email, err := s.validateCredentials(email, password)
	if err != nil {
		return nil, err
	}

	if _, err := s.patients.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	patient := &Patient{
		ID:           "pat_" + uuid.New().String()[:22],
		Email:        email,
		PasswordHash: string(hash),
		Version:      1,
		LastAccess:   now,
		CreatedAt:    now,
	}
	if initialDeviceID != "" {
		patient.Devices = []DeviceBinding{DefaultDeviceBinding(initialDeviceID)}
	}

	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	return patient, nil
}

// RegisterPhysician creates a physician account.
func (s *Service) RegisterPhysician(ctx context.Context, email, password string) (*Physician, error) {
	email, err := s.validateCredentials(email, password)
	if err != nil {
		return nil, err
	}

	if _, err := s.physicians.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	physician := &Physician{
		ID:           "phy_" + uuid.New().String()[:22],
		Email:        email,
		PasswordHash: string(hash),
		LastAccess:   now,
		CreatedAt:    now,
	}

	if err := s.physicians.Create(ctx, physician); err != nil {
		return nil, fmt.Errorf("creating physician: %w", err)
	}

	return physician, nil
}

// AuthenticatePatient checks a patient's credentials and records the login.
// Wrong email and wrong password both fail with ErrInvalidCredentials.
func (s *Service) AuthenticatePatient(ctx context.Context, email, password string) (*Patient, error) {
	patient, err := s.patients.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(patient.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.patients.TouchLastAccess(ctx, patient.ID); err != nil {
		return nil, err
	}

	return patient, nil
}

// AuthenticatePhysician checks a physician's credentials and records the login.
func (s *Service) AuthenticatePhysician(ctx context.Context, email, password string) (*Physician, error) {
	physician, err := s.physicians.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(physician.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.physicians.TouchLastAccess(ctx, physician.ID); err != nil {
		return nil, err
	}

	return physician, nil
}

// GetPatient retrieves a patient by ID.
func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.patients.FindByID(ctx, id)
}

// GetPatientByEmail retrieves a patient by email.
func (s *Service) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	return s.patients.FindByEmail(ctx, NormalizeEmail(email))
}

// GetPhysician retrieves a physician by ID.
func (s *Service) GetPhysician(ctx context.Context, id string) (*Physician, error) {
	return s.physicians.FindByID(ctx, id)
}

// GetPhysicianByEmail retrieves a physician by email.
func (s *Service) GetPhysicianByEmail(ctx context.Context, email string) (*Physician, error) {
	return s.physicians.FindByEmail(ctx, NormalizeEmail(email))
}

// ListPhysicians returns all physicians, ordered by email. Used by the
// patient account flow to pick a physician to link to.
func (s *Service) ListPhysicians(ctx context.Context) ([]*Physician, error) {
	return s.physicians.List(ctx)
}

// Roster returns all patients assigned to a physician.
func (s *Service) Roster(ctx context.Context, physicianID string) ([]*Patient, error) {
	if _, err := s.physicians.FindByID(ctx, physicianID); err != nil {
		return nil, err
	}
	return s.patients.ListByPhysician(ctx, physicianID)
}

// AddDevice appends a device binding to the patient's device list. The write
// is a compare-and-swap on the patient aggregate; a concurrent modification
// fails with ErrStaleWrite and retry is the caller's concern.
func (s *Service) AddDevice(ctx context.Context, patientID string, binding DeviceBinding) (*Patient, error) {
	if binding.DeviceID == "" {
		return nil, fmt.Errorf("%w: device_id is required", ErrValidation)
	}
	applyBindingDefaults(&binding)
	if err := validateBinding(binding); err != nil {
		return nil, err
	}

	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if patient.Device(binding.DeviceID) != nil {
		return nil, ErrDeviceExists
	}

	patient.Devices = append(patient.Devices, binding)
	if err := s.patients.Update(ctx, patient, patient.Version); err != nil {
		return nil, err
	}

	return patient, nil
}

// RemoveDevice deletes a device binding from the patient's device list.
func (s *Service) RemoveDevice(ctx context.Context, patientID, deviceID string) (*Patient, error) {
	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, d := range patient.Devices {
		if d.DeviceID == deviceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrDeviceNotFound
	}

	patient.Devices = append(patient.Devices[:idx], patient.Devices[idx+1:]...)
	if err := s.patients.Update(ctx, patient, patient.Version); err != nil {
		return nil, err
	}

	return patient, nil
}

// UpdateMeasurementSettings replaces the schedule settings of one device
// binding. The device must already belong to the patient.
func (s *Service) UpdateMeasurementSettings(ctx context.Context, patientID string, binding DeviceBinding) (*Patient, error) {
	applyBindingDefaults(&binding)
	if err := validateBinding(binding); err != nil {
		return nil, err
	}

	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	existing := patient.Device(binding.DeviceID)
	if existing == nil {
		return nil, ErrDeviceNotFound
	}
	*existing = binding

	if err := s.patients.Update(ctx, patient, patient.Version); err != nil {
		return nil, err
	}

	return patient, nil
}

// GetDeviceSettings returns the binding for one of the patient's devices.
func (s *Service) GetDeviceSettings(ctx context.Context, patientID, deviceID string) (*DeviceBinding, error) {
	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	binding := patient.Device(deviceID)
	if binding == nil {
		return nil, ErrDeviceNotFound
	}

	cpy := *binding
	return &cpy, nil
}

// ChangePassword replaces the patient's password after verifying the current
// one. The write is not retried on failure.
func (s *Service) ChangePassword(ctx context.Context, patientID, currentPassword, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}

	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(patient.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	patient.PasswordHash = string(hash)
	return s.patients.Update(ctx, patient, patient.Version)
}

// AssignPhysician links the patient to a physician so the physician's roster
// includes them.
func (s *Service) AssignPhysician(ctx context.Context, patientID, physicianID string) (*Patient, error) {
	if _, err := s.physicians.FindByID(ctx, physicianID); err != nil {
		return nil, err
	}

	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	patient.PhysicianID = physicianID
	if err := s.patients.Update(ctx, patient, patient.Version); err != nil {
		return nil, err
	}

	return patient, nil
}

// NormalizeEmail lowercases and trims an email for case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateCredentials normalizes the email and checks both fields, returning
// the normalized email.
func (s *Service) validateCredentials(email, password string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" || len(email) > MaxEmailLength || !emailRegex.MatchString(email) {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	return email, nil
}

// applyBindingDefaults fills unset schedule fields with the device defaults.
func applyBindingDefaults(b *DeviceBinding) {
	if b.MeasurementInterval == 0 {
		b.MeasurementInterval = DefaultMeasurementInterval
	}
	if b.StartTime == "" {
		b.StartTime = DefaultStartTime
	}
	if b.EndTime == "" {
		b.EndTime = DefaultEndTime
	}
}

// validateBinding checks the schedule settings of a device binding.
func validateBinding(b DeviceBinding) error {
	if b.MeasurementInterval < 1 {
		return fmt.Errorf("%w: measurement interval must be at least 1 minute", ErrValidation)
	}
	if !timeHHMMRegex.MatchString(b.StartTime) {
		return fmt.Errorf("%w: start time must be in HH:MM format", ErrValidation)
	}
	if !timeHHMMRegex.MatchString(b.EndTime) {
		return fmt.Errorf("%w: end time must be in HH:MM format", ErrValidation)
	}
	return nil
}
