package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeBackendUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
			assert.Equal(t, tt.want, (&Error{Code: tt.code}).GetStatus())
		})
	}
}

func TestCode_Retryable(t *testing.T) {
	assert.True(t, CodeBackendUnavailable.Retryable())
	assert.True(t, CodeInternal.Retryable())
	assert.False(t, CodeValidation.Retryable())
	assert.False(t, CodeUnauthenticated.Retryable())
	assert.False(t, CodeNotFound.Retryable())
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := InvalidField("name", "is required")
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("create bucket: %w", err)
	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.Equal(t, CodeValidation, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("plain")))
}

func TestError_Cause(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := BackendUnavailable(cause, "store unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store unavailable: database is locked", err.Error())

	raw, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	assert.JSONEq(t, `{"code":"BACKEND_UNAVAILABLE","message":"store unavailable"}`, string(raw))
}

func TestError_FieldsJSON(t *testing.T) {
	err := ValidationWithFields("validation failed", []FieldError{
		{Field: "title", Message: "is required"},
		{Field: "tags[0]", Message: "is not a known tag"},
	})

	raw, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	assert.JSONEq(t, `{
		"code": "VALIDATION",
		"message": "validation failed",
		"errors": [
			{"field": "title", "message": "is required"},
			{"field": "tags[0]", "message": "is not a known tag"}
		]
	}`, string(raw))
}

func TestError_CopiesDoNotAlias(t *testing.T) {
	base := NotFound("bucket not found")
	withFields := base.WithFields(FieldError{Field: "id", Message: "unknown"})

	assert.Empty(t, base.Fields)
	assert.Len(t, withFields.Fields, 1)
	assert.Equal(t, base.Code, withFields.Code)
}
