package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalink/vitalink/internal/identity"
	"github.com/vitalink/vitalink/internal/principal"
	"github.com/vitalink/vitalink/internal/token"
)

type fixture struct {
	resolver   *identity.Resolver
	tokens     *token.Service
	principals *principal.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	principals := principal.NewService(
		principal.NewInMemoryPatientRepository(),
		principal.NewInMemoryPhysicianRepository(),
	)
	tokens := token.NewService([]byte("signing-key"))

	return &fixture{
		resolver:   identity.NewResolver(tokens, principals),
		tokens:     tokens,
		principals: principals,
	}
}

func TestResolve_PatientBearer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	patient, err := f.principals.RegisterPatient(ctx, "ada@example.com", "correct-horse", "dev-1")
	require.NoError(t, err)

	bearer, err := f.tokens.Issue(patient.Email, "")
	require.NoError(t, err)

	ident, err := f.resolver.Resolve(ctx, identity.Credentials{BearerToken: bearer})
	require.NoError(t, err)

	assert.Equal(t, patient.ID, ident.PrincipalID)
	assert.Equal(t, principal.KindPatient, ident.Kind)
	assert.Equal(t, []string{"dev-1"}, ident.DeviceIDs)
}

func TestResolve_PhysicianBearerDeviceUnion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	physician, err := f.principals.RegisterPhysician(ctx, "dr@example.com", "correct-horse")
	require.NoError(t, err)

	p1, err := f.principals.RegisterPatient(ctx, "ada@example.com", "correct-horse", "dev-1")
	require.NoError(t, err)
	p2, err := f.principals.RegisterPatient(ctx, "grace@example.com", "correct-horse", "dev-2")
	require.NoError(t, err)
	// Unassigned patient; their device must not leak into the union.
	_, err = f.principals.RegisterPatient(ctx, "other@example.com", "correct-horse", "dev-3")
	require.NoError(t, err)

	_, err = f.principals.AssignPhysician(ctx, p1.ID, physician.ID)
	require.NoError(t, err)
	_, err = f.principals.AssignPhysician(ctx, p2.ID, physician.ID)
	require.NoError(t, err)

	bearer, err := f.tokens.Issue(physician.Email, physician.ID)
	require.NoError(t, err)

	ident, err := f.resolver.Resolve(ctx, identity.Credentials{BearerToken: bearer})
	require.NoError(t, err)

	assert.Equal(t, principal.KindPhysician, ident.Kind)
	assert.ElementsMatch(t, []string{"dev-1", "dev-2"}, ident.DeviceIDs)
}

func TestResolve_InvalidBearer(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Resolve(context.Background(), identity.Credentials{BearerToken: "garbage"})
	assert.ErrorIs(t, err, identity.ErrUnauthorized)
}

func TestResolve_ValidTokenUnknownPrincipal(t *testing.T) {
	f := newFixture(t)

	bearer, err := f.tokens.Issue("ghost@example.com", "")
	require.NoError(t, err)

	_, err = f.resolver.Resolve(context.Background(), identity.Credentials{BearerToken: bearer})
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestResolve_SubjectOnlyWhereAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	patient, err := f.principals.RegisterPatient(ctx, "ada@example.com", "correct-horse", "dev-1")
	require.NoError(t, err)

	// Subject addressing is refused unless the endpoint opts in.
	_, err = f.resolver.Resolve(ctx, identity.Credentials{SubjectID: patient.ID})
	assert.ErrorIs(t, err, identity.ErrUnauthorized)

	ident, err := f.resolver.Resolve(ctx, identity.Credentials{SubjectID: patient.ID, AllowSubject: true})
	require.NoError(t, err)
	assert.Equal(t, patient.ID, ident.PrincipalID)
	assert.Equal(t, []string{"dev-1"}, ident.DeviceIDs)
}

func TestResolve_BearerTakesPrecedenceOverSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ada, err := f.principals.RegisterPatient(ctx, "ada@example.com", "correct-horse", "dev-1")
	require.NoError(t, err)
	grace, err := f.principals.RegisterPatient(ctx, "grace@example.com", "correct-horse", "dev-2")
	require.NoError(t, err)

	bearer, err := f.tokens.Issue(ada.Email, "")
	require.NoError(t, err)

	ident, err := f.resolver.Resolve(ctx, identity.Credentials{
		BearerToken:  bearer,
		SubjectID:    grace.ID,
		AllowSubject: true,
	})
	require.NoError(t, err)
	assert.Equal(t, ada.ID, ident.PrincipalID, "the token wins over the subject id")
}

func TestResolvePatientForPhysician_RosterEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	physician, err := f.principals.RegisterPhysician(ctx, "dr@example.com", "correct-horse")
	require.NoError(t, err)
	other, err := f.principals.RegisterPhysician(ctx, "dr2@example.com", "correct-horse")
	require.NoError(t, err)

	patient, err := f.principals.RegisterPatient(ctx, "ada@example.com", "correct-horse", "dev-1")
	require.NoError(t, err)
	_, err = f.principals.AssignPhysician(ctx, patient.ID, physician.ID)
	require.NoError(t, err)

	assigned, err := f.tokens.Issue(physician.Email, physician.ID)
	require.NoError(t, err)
	unassigned, err := f.tokens.Issue(other.Email, other.ID)
	require.NoError(t, err)

	got, err := f.resolver.ResolvePatientForPhysician(ctx, identity.Credentials{BearerToken: assigned}, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, got.ID)

	// A physician without the patient on their roster sees not-found, not
	// forbidden, so roster membership is not probeable.
	_, err = f.resolver.ResolvePatientForPhysician(ctx, identity.Credentials{BearerToken: unassigned}, patient.ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestResolvePatientForPhysician_PatientBearerRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	patient, err := f.principals.RegisterPatient(ctx, "ada@example.com", "correct-horse", "dev-1")
	require.NoError(t, err)

	bearer, err := f.tokens.Issue(patient.Email, "")
	require.NoError(t, err)

	_, err = f.resolver.ResolvePatientForPhysician(ctx, identity.Credentials{BearerToken: bearer}, patient.ID)
	assert.ErrorIs(t, err, identity.ErrUnauthorized)
}

func TestResolvePatientForPhysician_SubjectPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	patient, err := f.principals.RegisterPatient(ctx, "ada@example.com", "correct-horse", "dev-1")
	require.NoError(t, err)

	_, err = f.resolver.ResolvePatientForPhysician(ctx, identity.Credentials{}, patient.ID)
	assert.ErrorIs(t, err, identity.ErrUnauthorized)

	got, err := f.resolver.ResolvePatientForPhysician(ctx, identity.Credentials{AllowSubject: true}, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, got.ID)

	_, err = f.resolver.ResolvePatientForPhysician(ctx, identity.Credentials{AllowSubject: true}, "pat_missing")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}
