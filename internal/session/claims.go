package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken is returned by InspectClaims for tokens that are not JWTs.
var ErrOpaqueToken = errors.New("access token is not a JWT")

// Claims is the display subset of an access token's payload.
type Claims struct {
	Subject   string
	Username  string
	Email     string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry in the past.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// InspectClaims decodes a JWT access token WITHOUT verifying its signature.
// The result is for display only; the backend remains the authority on
// token validity.
func InspectClaims(accessToken string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, mc); err != nil {
		return nil, ErrOpaqueToken
	}

	c := &Claims{}
	c.Subject, _ = mc.GetSubject()
	c.Issuer, _ = mc.GetIssuer()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.Email, _ = mc["email"].(string)
	c.Username, _ = mc["username"].(string)
	return c, nil
}
