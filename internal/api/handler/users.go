package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitalink/vitalink/internal/api/models"
	"github.com/vitalink/vitalink/internal/api/response"
	"github.com/vitalink/vitalink/internal/principal"
	"github.com/vitalink/vitalink/internal/token"
)

// UsersHandler handles patient account endpoints.
type UsersHandler struct {
	principals *principal.Service
	tokens     *token.Service
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(principals *principal.Service, tokens *token.Service) *UsersHandler {
	return &UsersHandler{
		principals: principals,
		tokens:     tokens,
	}
}

// Register handles POST /users/register - create a patient account.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	patient, err := h.principals.RegisterPatient(r.Context(), req.Email, req.Password, req.DeviceID)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	tok, err := h.tokens.Issue(patient.Email, "")
	if err != nil {
		response.InternalError(w, r, "registration failed")
		return
	}

	response.Created(w, r, "", models.AuthResponse{
		Success: true,
		ID:      patient.ID,
		Email:   patient.Email,
		Token:   tok,
	})
}

// Login handles POST /users/login - authenticate a patient.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	patient, err := h.principals.AuthenticatePatient(r.Context(), req.Email, req.Password)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	tok, err := h.tokens.Issue(patient.Email, "")
	if err != nil {
		response.InternalError(w, r, "login failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.AuthResponse{
		Success: true,
		Email:   patient.Email,
		Token:   tok,
	})
}

// Me handles GET /users/me - the authenticated patient's account summary.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	patient, err := h.principals.GetPatient(r.Context(), ident.PrincipalID)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.MeFrom(patient))
}

// AddDevice handles POST /users/add-device - bind a new device to the patient.
func (h *UsersHandler) AddDevice(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var req models.DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	patient, err := h.principals.AddDevice(r.Context(), ident.PrincipalID, req.Binding())
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.MeFrom(patient))
}

// DeleteDevice handles DELETE /users/delete-device/{deviceId}.
func (h *UsersHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	deviceID := chi.URLParam(r, "deviceId")
	patient, err := h.principals.RemoveDevice(r.Context(), ident.PrincipalID, deviceID)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.MeFrom(patient))
}

// UpdateMeasurementSettings handles POST /users/update-measurement-settings -
// replace the schedule settings of one device binding.
func (h *UsersHandler) UpdateMeasurementSettings(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var req models.DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	patient, err := h.principals.UpdateMeasurementSettings(r.Context(), ident.PrincipalID, req.Binding())
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	binding := patient.Device(req.DeviceID)
	if binding == nil {
		response.InternalError(w, r, "settings update failed")
		return
	}

	views := models.DeviceViewsFrom([]principal.DeviceBinding{*binding})
	response.JSON(w, r, http.StatusOK, views[0])
}

// MeasurementSettings handles GET /users/measurement-settings/{deviceId}.
func (h *UsersHandler) MeasurementSettings(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	deviceID := chi.URLParam(r, "deviceId")
	binding, err := h.principals.GetDeviceSettings(r.Context(), ident.PrincipalID, deviceID)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	views := models.DeviceViewsFrom([]principal.DeviceBinding{*binding})
	response.JSON(w, r, http.StatusOK, views[0])
}

// ChangePassword handles POST /users/change-password.
func (h *UsersHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var req models.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	err := h.principals.ChangePassword(r.Context(), ident.PrincipalID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	response.NoContent(w, r)
}

// AssignPhysician handles POST /users/assign-physician - link the patient to a
// physician so they appear on that physician's roster.
func (h *UsersHandler) AssignPhysician(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var req models.AssignPhysicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}
	if req.PhysicianID == "" {
		response.BadRequest(w, r, "physician_id is required")
		return
	}

	patient, err := h.principals.AssignPhysician(r.Context(), ident.PrincipalID, req.PhysicianID)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.MeFrom(patient))
}

// writePrincipalError maps credential-store errors to HTTP responses. Password
// hashes and key material never appear in messages.
func writePrincipalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, principal.ErrValidation):
		response.BadRequest(w, r, err.Error())
	case errors.Is(err, principal.ErrInvalidCredentials):
		response.Unauthorized(w, r, "invalid email or password")
	case errors.Is(err, principal.ErrNotFound):
		response.NotFound(w, r, "not found")
	case errors.Is(err, principal.ErrDeviceNotFound):
		response.NotFound(w, r, "device not found")
	case errors.Is(err, principal.ErrDuplicateEmail):
		response.Conflict(w, r, "email already registered")
	case errors.Is(err, principal.ErrDeviceExists):
		response.Conflict(w, r, "device already registered")
	case errors.Is(err, principal.ErrStaleWrite):
		response.Conflict(w, r, "account was modified concurrently, retry")
	default:
		response.InternalError(w, r, "internal error")
	}
}
