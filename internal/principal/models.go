// Package principal provides the credential store: patient and physician
// accounts, their hashed secrets, and the device bindings that tie opaque
// device identifiers to a patient.
package principal

import (
	"time"
)

// Kind distinguishes the two principal types.
type Kind string

// Principal kinds.
const (
	KindPatient   Kind = "patient"
	KindPhysician Kind = "physician"
)

// Default device schedule settings, matching what the field gateways ship with.
const (
	DefaultMeasurementInterval = 30
	DefaultStartTime           = "06:00"
	DefaultEndTime             = "22:00"
)

// DeviceBinding is a patient's registered device plus its sampling schedule.
// Device identifiers are caller-supplied opaque strings; the store does not
// enforce global uniqueness across patients.
type DeviceBinding struct {
	// DeviceID is the opaque device identifier.
	DeviceID string

	// MeasurementInterval is the sampling interval in minutes.
	MeasurementInterval int

	// StartTime is the daily active-window start, wall-clock "HH:MM".
	StartTime string

	// EndTime is the daily active-window end, wall-clock "HH:MM".
	EndTime string
}

// DefaultDeviceBinding returns a binding for deviceID with default schedule
// settings.
func DefaultDeviceBinding(deviceID string) DeviceBinding {
	return DeviceBinding{
		DeviceID:            deviceID,
		MeasurementInterval: DefaultMeasurementInterval,
		StartTime:           DefaultStartTime,
		EndTime:             DefaultEndTime,
	}
}

// Patient is a patient account. The device list is part of the patient
// aggregate: every mutation goes through a version compare-and-swap so
// concurrent updates fail with ErrStaleWrite instead of silently losing a
// device.
type Patient struct {
	// ID is the unique patient identifier (format: pat_XXXX).
	ID string

	// Email is the login email, stored lowercased.
	Email string

	// PasswordHash is the bcrypt hash of the patient's password.
	// It is never serialized into API responses.
	PasswordHash string

	// Devices is the ordered list of device bindings owned by this patient.
	Devices []DeviceBinding

	// PhysicianID is the assigned physician, empty if unassigned.
	PhysicianID string

	// Version is the aggregate version used for compare-and-swap updates.
	Version int64

	// LastAccess is when the patient last logged in.
	LastAccess time.Time

	// CreatedAt is when the account was created.
	CreatedAt time.Time
}

// DeviceIDs returns the identifiers of all devices bound to the patient.
func (p *Patient) DeviceIDs() []string {
	ids := make([]string, 0, len(p.Devices))
	for _, d := range p.Devices {
		ids = append(ids, d.DeviceID)
	}
	return ids
}

// Device returns the binding for deviceID, or nil if the patient does not own
// that device.
func (p *Patient) Device(deviceID string) *DeviceBinding {
	for i := range p.Devices {
		if p.Devices[i].DeviceID == deviceID {
			return &p.Devices[i]
		}
	}
	return nil
}

// Physician is a physician account. The roster is derived from patient
// assignments rather than stored redundantly on the physician.
type Physician struct {
	// ID is the unique physician identifier (format: phy_XXXX).
	ID string

	// Email is the login email, stored lowercased.
	Email string

	// PasswordHash is the bcrypt hash of the physician's password.
	PasswordHash string

	// LastAccess is when the physician last logged in.
	LastAccess time.Time

	// CreatedAt is when the account was created.
	CreatedAt time.Time
}
