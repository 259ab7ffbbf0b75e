package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "test error message",
	}

	assert.Equal(t, "test error message", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("validation failed")

	assert.Error(t, err)
	assert.Equal(t, "validation failed", err.Error())

	validationErr, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "validation failed", validationErr.Message)
}

func TestNewValidationErrorf(t *testing.T) {
	err := NewValidationErrorf("horizon %d exceeds maximum %d", 120, 90)

	assert.Error(t, err)
	assert.Equal(t, "horizon 120 exceeds maximum 90", err.Error())
}

func TestNewFieldError(t *testing.T) {
	err := NewFieldError("target", "must be one of %q or %q", "price", "demand")

	assert.Equal(t, `target: must be one of "price" or "demand"`, err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "target", ve.Field)
}

func TestIsValidationError(t *testing.T) {
	wrapped := fmt.Errorf("forecast request: %w", NewValidationError("bad h"))

	assert.True(t, IsValidationError(wrapped))
	assert.False(t, IsValidationError(errors.New("database down")))
	assert.False(t, IsValidationError(nil))
}
