package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(signupForm{
		Email:    "jane@example.com",
		Password: "SecurePass123",
	}))
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	err := Validate(signupForm{Email: "not-an-email", Password: "short"})
	require.Error(t, err)

	valErr, ok := err.(*ValidationError)
	require.True(t, ok)

	fields := valErr.Fields()
	assert.Equal(t, "must be a valid email address", fields["Email"])
	assert.Equal(t, "must be at least 8 characters", fields["Password"])
	assert.Contains(t, valErr.Error(), "Email")
}

func TestValidate_RequiredMissing(t *testing.T) {
	err := Validate(signupForm{})
	require.Error(t, err)

	valErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "is required", valErr.Fields()["Email"])
	assert.Equal(t, "is required", valErr.Fields()["Password"])
}
