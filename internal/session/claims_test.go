package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectClaims_JWT(t *testing.T) {
	issued := time.Now().Add(-time.Minute).Truncate(time.Second)
	expires := issued.Add(time.Hour)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "42",
		"iss":      "healthdash-api",
		"iat":      issued.Unix(),
		"exp":      expires.Unix(),
		"email":    "ada@example.com",
		"username": "ada",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	claims, err := InspectClaims(signed)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "healthdash-api", claims.Issuer)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "ada", claims.Username)
	assert.True(t, claims.IssuedAt.Equal(issued))
	assert.True(t, claims.ExpiresAt.Equal(expires))
	assert.False(t, claims.Expired(issued))
	assert.True(t, claims.Expired(expires.Add(time.Second)))
}

func TestInspectClaims_Opaque(t *testing.T) {
	_, err := InspectClaims("9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b")
	assert.ErrorIs(t, err, ErrOpaqueToken)
}

func TestClaims_NoExpiryNeverExpires(t *testing.T) {
	c := &Claims{}
	assert.False(t, c.Expired(time.Now()))
}
