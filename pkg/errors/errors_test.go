package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	withInner := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withInner.Error())

	plain := &AppError{Code: "NOT_FOUND", Message: "review not found"}
	assert.Equal(t, "NOT_FOUND: review not found", plain.Error())
}

func TestConstructors_StatusAndSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		status   int
		sentinel error
	}{
		{"not found", NotFound("product", "p-1"), http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("category", "slug", "shoes"), http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("rating out of range"), http.StatusBadRequest, ErrInvalidInput},
		{"bad request", BadRequest("DUPLICATE_REVIEW", "already reviewed"), http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("login required"), http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("admins only"), http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("cart changed"), http.StatusConflict, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("review", "r-42")
	assert.Equal(t, "review with id r-42 not found", err.Message)
}

func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal(cause)
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("get product: %w", ErrNotFound)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("save: %w", ErrConflict)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("x: %w", ErrInvalidInput)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestHTTPStatus_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("moderate review: %w", Forbidden("admins only"))
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(err))
}
