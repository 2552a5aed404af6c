package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinnerView_NonTerminal(t *testing.T) {
	var out bytes.Buffer
	v := NewSpinnerView(&out, false)

	v.Pending("Exchanging authorization code...")
	v.Pending("Retrying...")
	v.Succeeded()

	assert.Contains(t, out.String(), "Signed in")
}

func TestSpinnerView_FailedAlwaysPrintsReason(t *testing.T) {
	var out bytes.Buffer
	v := NewSpinnerView(&out, true)

	v.Pending("ignored")
	v.Failed("Invalid code")

	assert.Contains(t, out.String(), "Invalid code")
	assert.NotContains(t, out.String(), "Returning")
}

func TestSpinnerView_QuietSuccessIsSilent(t *testing.T) {
	var out bytes.Buffer
	NewSpinnerView(&out, true).Succeeded()
	assert.Empty(t, out.String())
}

func TestRenderFields(t *testing.T) {
	var out bytes.Buffer
	RenderFields(&out, "Session", []Field{
		{Key: "User", Value: "ada@example.com"},
		{Key: "Refresh", Value: ""},
	})

	s := out.String()
	assert.Contains(t, s, "Session")
	assert.Contains(t, s, "ada@example.com")
	assert.Contains(t, s, "-")
}

func TestValidateCredentials(t *testing.T) {
	u, p, err := ValidateCredentials("  ada  ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "ada", u)
	assert.Equal(t, "secret", p)

	_, _, err = ValidateCredentials(" ", "secret")
	assert.ErrorIs(t, err, ErrEmptyCredentials)

	_, _, err = ValidateCredentials("ada", "")
	assert.ErrorIs(t, err, ErrEmptyCredentials)
}
