package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civicdesk/pkg/domain-errors"
)

// Parsing enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func TestParseProtocolID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseProtocolID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseProtocolID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseProtocolID(uuid.Nil.String())
		require.Error(t, err)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseProtocolID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, ProtocolID(valid), id)
	})
}

func TestIsNil(t *testing.T) {
	assert.True(t, ProtocolID{}.IsNil())
	assert.False(t, NewProtocolID().IsNil())
	assert.True(t, UserID{}.IsNil())
}

// Typed IDs are distinct types; cross-type assignment fails to compile.
// This documents the invariant at runtime too.
func TestTypeDistinction(t *testing.T) {
	protocolID := ProtocolID(uuid.New())
	citizenID := CitizenID(uuid.New())
	assert.NotEqual(t, uuid.UUID(protocolID), uuid.UUID(citizenID))
}
