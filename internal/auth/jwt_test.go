package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 1)

	token, err := svc.Generate(RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestJWT_WrongSecretRejected(t *testing.T) {
	token, err := NewJWTService("secret-a", 1).Generate(RoleAdmin)
	require.NoError(t, err)

	_, err = NewJWTService("secret-b", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_GarbageRejected(t *testing.T) {
	_, err := NewJWTService("secret", 1).Validate("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
