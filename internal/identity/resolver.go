// Package identity maps inbound credentials to a principal and the device set
// that principal is authorized to read.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitalink/vitalink/internal/principal"
	"github.com/vitalink/vitalink/internal/token"
)

// Resolver errors.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("principal not found")
)

// Identity is the resolved caller: who they are and which devices they may
// read. Every sensor read downstream is filtered by DeviceIDs.
type Identity struct {
	PrincipalID string
	Kind        principal.Kind
	Email       string
	DeviceIDs   []string
}

// Credentials carries the raw credential material extracted from a request.
type Credentials struct {
	// BearerToken is the token from the Authorization header, if present.
	BearerToken string

	// SubjectID is an explicit subject identifier supplied as a query
	// parameter or body field. Only honored when AllowSubject is set.
	SubjectID string

	// AllowSubject marks endpoints that permit anonymous subject addressing.
	// This is a deliberate reduced-trust path used by physician dashboards
	// rendering a specific patient's data; it is never enabled on patient
	// self-service endpoints.
	AllowSubject bool
}

// Resolver resolves credentials to identities. Resolution order: bearer token
// first, then (where permitted) the explicit subject id, else unauthorized.
type Resolver struct {
	tokens     *token.Service
	principals *principal.Service
}

// NewResolver creates a new identity resolver.
func NewResolver(tokens *token.Service, principals *principal.Service) *Resolver {
	return &Resolver{
		tokens:     tokens,
		principals: principals,
	}
}

// Resolve maps credentials to an identity. Signature or decoding failures are
// ErrUnauthorized; a valid token naming an unknown principal is ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*Identity, error) {
	if creds.BearerToken != "" {
		return r.resolveBearer(ctx, creds.BearerToken)
	}

	if creds.AllowSubject && creds.SubjectID != "" {
		return r.resolveSubject(ctx, creds.SubjectID)
	}

	return nil, ErrUnauthorized
}

func (r *Resolver) resolveBearer(ctx context.Context, bearer string) (*Identity, error) {
	claims, err := r.tokens.Verify(bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, err.Error())
	}

	// Physician tokens carry the principal id; patient tokens only the email.
	if claims.PrincipalID != "" {
		return r.physicianIdentity(ctx, claims.PrincipalID)
	}

	patient, err := r.principals.GetPatientByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return patientIdentity(patient), nil
}

func (r *Resolver) physicianIdentity(ctx context.Context, physicianID string) (*Identity, error) {
	physician, err := r.principals.GetPhysician(ctx, physicianID)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	roster, err := r.principals.Roster(ctx, physician.ID)
	if err != nil {
		return nil, err
	}

	// Device set is the union of all assigned patients' devices.
	var deviceIDs []string
	seen := make(map[string]bool)
	for _, patient := range roster {
		for _, id := range patient.DeviceIDs() {
			if !seen[id] {
				seen[id] = true
				deviceIDs = append(deviceIDs, id)
			}
		}
	}

	return &Identity{
		PrincipalID: physician.ID,
		Kind:        principal.KindPhysician,
		Email:       physician.Email,
		DeviceIDs:   deviceIDs,
	}, nil
}

// resolveSubject looks up a patient by id with no credential check.
func (r *Resolver) resolveSubject(ctx context.Context, subjectID string) (*Identity, error) {
	patient, err := r.principals.GetPatient(ctx, subjectID)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return patientIdentity(patient), nil
}

// ResolvePatientForPhysician resolves the caller and returns the target
// patient for a physician-scoped patient view. With a bearer token the caller
// must be a physician and the patient must be on their roster; otherwise the
// reduced-trust subject path applies.
func (r *Resolver) ResolvePatientForPhysician(ctx context.Context, creds Credentials, patientID string) (*principal.Patient, error) {
	if creds.BearerToken == "" {
		if !creds.AllowSubject {
			return nil, ErrUnauthorized
		}
		patient, err := r.principals.GetPatient(ctx, patientID)
		if err != nil {
			if errors.Is(err, principal.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return patient, nil
	}

	caller, err := r.resolveBearer(ctx, creds.BearerToken)
	if err != nil {
		return nil, err
	}
	if caller.Kind != principal.KindPhysician {
		return nil, ErrUnauthorized
	}

	patient, err := r.principals.GetPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if patient.PhysicianID != caller.PrincipalID {
		return nil, ErrNotFound
	}

	return patient, nil
}

func patientIdentity(patient *principal.Patient) *Identity {
	return &Identity{
		PrincipalID: patient.ID,
		Kind:        principal.KindPatient,
		Email:       patient.Email,
		DeviceIDs:   patient.DeviceIDs(),
	}
}
