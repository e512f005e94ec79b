package models

import "github.com/vitalink/vitalink/internal/principal"

// RegisterRequest is the request body for patient and physician registration.
// DeviceID is only honored for patients; when set the account starts with one
// device binding using default schedule settings.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

// LoginRequest is the request body for patient and physician login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and register endpoints.
type AuthResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Email   string `json:"email,omitempty"`
	Token   string `json:"token,omitempty"`
}

// DeviceView is one device binding in API responses.
type DeviceView struct {
	DeviceID            string `json:"device_id"`
	MeasurementInterval int    `json:"measurement_interval"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
}

// Me represents the authenticated patient's account summary.
type Me struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Devices     []DeviceView `json:"devices"`
	PhysicianID string       `json:"physician_id,omitempty"`
	CreatedAt   Timestamp    `json:"created_at"`
}

// DeviceRequest is the request body for adding a device or updating its
// measurement settings. Unset schedule fields get the device defaults.
type DeviceRequest struct {
	DeviceID            string `json:"device_id"`
	MeasurementInterval int    `json:"measurement_interval,omitempty"`
	StartTime           string `json:"start_time,omitempty"`
	EndTime             string `json:"end_time,omitempty"`
}

// Binding converts the request into a domain device binding.
func (r DeviceRequest) Binding() principal.DeviceBinding {
	return principal.DeviceBinding{
		DeviceID:            r.DeviceID,
		MeasurementInterval: r.MeasurementInterval,
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
	}
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AssignPhysicianRequest links the authenticated patient to a physician.
type AssignPhysicianRequest struct {
	PhysicianID string `json:"physician_id"`
}

// DeviceViewsFrom converts domain device bindings into API views.
func DeviceViewsFrom(bindings []principal.DeviceBinding) []DeviceView {
	views := make([]DeviceView, 0, len(bindings))
	for _, b := range bindings {
		views = append(views, DeviceView{
			DeviceID:            b.DeviceID,
			MeasurementInterval: b.MeasurementInterval,
			StartTime:           b.StartTime,
			EndTime:             b.EndTime,
		})
	}
	return views
}

// MeFrom builds the account summary for a patient.
func MeFrom(p *principal.Patient) Me {
	return Me{
		ID:          p.ID,
		Email:       p.Email,
		Devices:     DeviceViewsFrom(p.Devices),
		PhysicianID: p.PhysicianID,
		CreatedAt:   Timestamp(p.CreatedAt),
	}
}
