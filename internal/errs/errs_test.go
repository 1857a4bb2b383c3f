package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(KindSchemaViolation, "gateway.validate", "extra key %q", "mood")
	wrapped := fmt.Errorf("interaction failed: %w", err)

	assert.True(t, errors.Is(wrapped, ErrSchemaViolation))
	assert.False(t, errors.Is(wrapped, ErrInvalidInput))
	assert.Equal(t, KindSchemaViolation, KindOf(wrapped))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindInferenceUnavailable, "gateway.call", cause, "attempt %d", 3).WithDetails("breaker open")

	assert.Equal(t, "gateway.call: INFERENCE_UNAVAILABLE: attempt 3 [breaker open]: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(New(KindInvalidInput, "", "missing text")))
	assert.True(t, Retryable(New(KindInferenceUnavailable, "", "timeout")))
	assert.True(t, Retryable(New(KindSchemaViolation, "", "bad json")))
	assert.True(t, Retryable(New(KindExternalEffectFailure, "", "notes down")))
	assert.True(t, Retryable(errors.New("disk full")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
