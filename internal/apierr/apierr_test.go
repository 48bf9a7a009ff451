package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusAndCodeSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("resolve like: %w", NotFound("asset %d not found", 7))

	require.Equal(t, http.StatusNotFound, StatusOf(err))
	require.Equal(t, CodeNotFound, CodeOf(err))
	require.True(t, IsCode(err, CodeNotFound))
	require.EqualError(t, err, "resolve like: asset 7 not found")
}

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage(cause, "insert activity")

	require.ErrorIs(t, err, cause)
	require.Equal(t, http.StatusInternalServerError, StatusOf(err))
	require.Equal(t, CodeStorage, CodeOf(err))
}

func TestPlainErrorsDefaultToInternal(t *testing.T) {
	err := errors.New("boom")

	require.Equal(t, http.StatusInternalServerError, StatusOf(err))
	require.Equal(t, "internal_error", CodeOf(err))
	require.False(t, IsCode(err, CodeValidation))
}
