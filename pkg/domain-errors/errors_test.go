package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotFound, "protocol not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("update status: %w", New(CodeInvalidTransition, "terminal status"))
		assert.True(t, HasCode(err, CodeInvalidTransition))
	})

	t.Run("nil and plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeContention, CodeOf(New(CodeContention, "lock wait timeout")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("unclassified")))
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("row lock timeout")
	err := Wrap(cause, CodeContention, "allocate sequence number")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeContention, CodeOf(err))
	assert.Contains(t, err.Error(), "row lock timeout")
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(CodeContention, "busy")))
	assert.True(t, Retryable(New(CodeTimeout, "deadline")))
	assert.False(t, Retryable(New(CodePermissionDenied, "no")))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestWithMeta(t *testing.T) {
	base := New(CodeInvalidTransition, "transition not allowed")
	err := base.WithMeta(map[string]string{"current_status": "COMPLETED", "new_status": "IN_PROGRESS"})

	assert.Equal(t, "COMPLETED", err.Meta["current_status"])
	assert.Nil(t, base.Meta, "WithMeta must not mutate the original")
}
