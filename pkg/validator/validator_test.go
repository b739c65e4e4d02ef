package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sampleInput{Email: "a@example.com", Role: "editor"}))

	err := ValidateStruct(sampleInput{Email: "not-an-email"})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	require.Equal(t, "email", failures[0].Field)
	require.Equal(t, "email", failures[0].Tag)
	require.Equal(t, "role", failures[1].Field)
	require.Equal(t, "required", failures[1].Tag)

	require.Contains(t, err.Error(), "email failed on email")
	require.Contains(t, err.Error(), "role failed on required")
}
