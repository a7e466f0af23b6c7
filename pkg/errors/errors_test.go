package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NotFound("Car not found"), http.StatusNotFound},
		{Conflict("Username already exists"), http.StatusConflict},
		{Validation("rating must be between 1 and 5"), http.StatusUnprocessableEntity},
		{Unauthorized("Invalid email or password"), http.StatusUnauthorized},
		{NewAppError(CodeRateLimited, "slow down", nil), http.StatusTooManyRequests},
		{NewAppError(ErrorCode("SOMETHING_ELSE"), "?", nil), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.status, tc.err.HTTPStatus(), string(tc.err.Code))
	}
}

func TestCodeOfWrapped(t *testing.T) {
	base := NotFound("Seller not found")
	wrapped := fmt.Errorf("catalog: create car: %w", base)

	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(wrapped, CodeConflict))
	assert.Equal(t, CodeInternalError, CodeOf(stderrors.New("boom")))
	assert.False(t, Is(nil, CodeInternalError))

	var appErr *AppError
	require.True(t, stderrors.As(wrapped, &appErr))
	assert.Equal(t, "Seller not found", appErr.Message)
}

func TestInternalHidesCause(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := Internal(cause)

	assert.Equal(t, CodeInternalError, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.NotContains(t, err.ToErrorResponse("").Error.Message, "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestToErrorResponse(t *testing.T) {
	resp := NotFound("Token not found").ToErrorResponse("trace-1")
	assert.Equal(t, CodeNotFound, resp.Error.Code)
	assert.Equal(t, "Token not found", resp.Error.Message)
	assert.Equal(t, "trace-1", resp.Error.TraceID)
}
