package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorUnwrapsToSentinel(t *testing.T) {
	err := Validation("points must be positive")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "points must be positive", err.Error())
}

func TestWrappedAppErrorStillMatches(t *testing.T) {
	inner := Conflict("already claimed today")
	wrapped := fmt.Errorf("claiming points: %w", inner)

	assert.True(t, errors.Is(wrapped, ErrConflict))

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "already claimed today", appErr.Message)
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(NotFound("user", 7), ErrForbidden))
	assert.False(t, errors.Is(Forbidden("not the author"), ErrConflict))
	assert.False(t, errors.Is(Unavailable("connection refused"), ErrValidation))
}
