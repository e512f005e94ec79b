package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitalink/vitalink/internal/aggregate"
	"github.com/vitalink/vitalink/internal/api/middleware"
	"github.com/vitalink/vitalink/internal/api/models"
	"github.com/vitalink/vitalink/internal/api/response"
	"github.com/vitalink/vitalink/internal/identity"
	"github.com/vitalink/vitalink/internal/principal"
	"github.com/vitalink/vitalink/internal/token"
)

// PhysiciansHandler handles physician account and dashboard endpoints.
type PhysiciansHandler struct {
	principals *principal.Service
	tokens     *token.Service
	summaries  *aggregate.Service
	resolver   *identity.Resolver
}

// NewPhysiciansHandler creates a new PhysiciansHandler.
func NewPhysiciansHandler(principals *principal.Service, tokens *token.Service, summaries *aggregate.Service, resolver *identity.Resolver) *PhysiciansHandler {
	return &PhysiciansHandler{
		principals: principals,
		tokens:     tokens,
		summaries:  summaries,
		resolver:   resolver,
	}
}

// Register handles POST /physicians/register - create a physician account.
func (h *PhysiciansHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	physician, err := h.principals.RegisterPhysician(r.Context(), req.Email, req.Password)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	tok, err := h.tokens.Issue(physician.Email, physician.ID)
	if err != nil {
		response.InternalError(w, r, "registration failed")
		return
	}

	response.Created(w, r, "", models.AuthResponse{
		Success: true,
		ID:      physician.ID,
		Email:   physician.Email,
		Token:   tok,
	})
}

// Login handles POST /physicians/login - authenticate a physician.
func (h *PhysiciansHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	physician, err := h.principals.AuthenticatePhysician(r.Context(), req.Email, req.Password)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	tok, err := h.tokens.Issue(physician.Email, physician.ID)
	if err != nil {
		response.InternalError(w, r, "login failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.AuthResponse{
		Success: true,
		ID:      physician.ID,
		Email:   physician.Email,
		Token:   tok,
	})
}

// List handles GET /physicians - the physician directory, so a patient can
// pick a physician to link their account to.
func (h *PhysiciansHandler) List(w http.ResponseWriter, r *http.Request) {
	physicians, err := h.principals.ListPhysicians(r.Context())
	if err != nil {
		response.InternalError(w, r, "physician listing failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.PhysicianListResponse{
		Success:    true,
		Physicians: models.PhysicianViewsFrom(physicians),
	})
}

// Patients handles GET /physicians/patients - the physician's roster with
// trailing-week heart-rate statistics per patient.
func (h *PhysiciansHandler) Patients(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil || ident.Kind != principal.KindPhysician {
		response.Unauthorized(w, r, "physician token required")
		return
	}

	roster, err := h.principals.Roster(r.Context(), ident.PrincipalID)
	if err != nil {
		writePrincipalError(w, r, err)
		return
	}

	patients := make([]models.RosterPatient, 0, len(roster))
	for _, p := range roster {
		weekly, err := h.summaries.PatientWeeklySummary(r.Context(), p.ID, p.DeviceIDs())
		if err != nil {
			response.InternalError(w, r, "summary computation failed")
			return
		}
		patients = append(patients, models.RosterPatientFrom(p, weekly.Summary, weekly.NoData))
	}

	response.JSON(w, r, http.StatusOK, models.RosterResponse{
		Success:  true,
		Patients: patients,
	})
}

// PatientSummary handles GET /physicians/patient-summary/{userId} - the
// trailing-week aggregate and chart series for one patient. Subject addressing
// without a bearer token is permitted here.
func (h *PhysiciansHandler) PatientSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	creds := identity.Credentials{
		BearerToken:  middleware.BearerToken(r),
		SubjectID:    userID,
		AllowSubject: true,
	}

	patient, err := h.resolver.ResolvePatientForPhysician(r.Context(), creds, userID)
	if err != nil {
		writeIdentityError(w, r, err)
		return
	}

	weekly, err := h.summaries.PatientWeeklySummary(r.Context(), patient.ID, patient.DeviceIDs())
	if err != nil {
		response.InternalError(w, r, "summary computation failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.PatientSummaryResponse{
		Success: true,
		UserID:  patient.ID,
		Email:   patient.Email,
		Devices: models.DeviceViewsFrom(patient.Devices),
		Weekly:  *weekly,
	})
}

// writeIdentityError maps identity-resolution errors to HTTP responses.
func writeIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthorized):
		response.Unauthorized(w, r, "authentication required")
	case errors.Is(err, identity.ErrNotFound):
		response.NotFound(w, r, "patient not found")
	default:
		response.InternalError(w, r, "internal error")
	}
}
