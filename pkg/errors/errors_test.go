package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageFormatting(t *testing.T) {
	base := New("SOME_CODE", "something failed", http.StatusBadRequest)
	require.Equal(t, "something failed", base.Error())

	wrapped := base.WithInternal(stderrors.New("root cause"))
	require.Equal(t, "something failed: root cause", wrapped.Error())
	require.Equal(t, "SOME_CODE", wrapped.Code)
}

func TestWithMessageKeepsSentinelIdentity(t *testing.T) {
	custom := ErrNotFound.WithMessage("List not found")
	require.Equal(t, "List not found", custom.Message)
	require.ErrorIs(t, custom, ErrNotFound)

	// The sentinel itself is untouched.
	require.Equal(t, "Resource not found", ErrNotFound.Message)
}

func TestWithInternalUnwraps(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := ErrDatabaseUnavailable.WithInternal(cause)

	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, ErrDatabaseUnavailable)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrAccessDenied)
	require.Equal(t, "ACCESS_DENIED", appErr.Code)
	require.Equal(t, http.StatusForbidden, appErr.StatusCode)

	generic := FromError(stderrors.New("boom"))
	require.Equal(t, "INTERNAL_ERROR", generic.Code)
	require.Equal(t, http.StatusInternalServerError, generic.StatusCode)
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("title is required")
	require.Equal(t, ErrValidation.Code, err.Code)
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.ErrorIs(t, err, ErrValidation)
}
