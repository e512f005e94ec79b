package token_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalink/vitalink/internal/token"
)

func TestIssueAndVerify_Patient(t *testing.T) {
	svc := token.NewService([]byte("signing-key"))

	tok, err := svc.Issue("ada@example.com", "")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Empty(t, claims.PrincipalID)
	assert.NotNil(t, claims.IssuedAt)
}

func TestIssueAndVerify_Physician(t *testing.T) {
	svc := token.NewService([]byte("signing-key"))

	tok, err := svc.Issue("dr@example.com", "phy_abc123")
	require.NoError(t, err)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "dr@example.com", claims.Email)
	assert.Equal(t, "phy_abc123", claims.PrincipalID)
}

func TestVerify_TamperedToken(t *testing.T) {
	svc := token.NewService([]byte("signing-key"))

	tok, err := svc.Issue("ada@example.com", "")
	require.NoError(t, err)

	// Flip a character in the signature segment.
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerify_WrongKey(t *testing.T) {
	issuer := token.NewService([]byte("key-one"))
	verifier := token.NewService([]byte("key-two"))

	tok, err := issuer.Issue("ada@example.com", "")
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	svc := token.NewService([]byte("signing-key"))

	_, err := svc.Verify("not.a.token")
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}
