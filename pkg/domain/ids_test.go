package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verikeep/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRecordID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseBatchID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	recordID := RecordID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ UserID = recordID   // compile error
	// var _ RecordID = userID   // compile error

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(recordID))
}

func TestParseRetentionModule(t *testing.T) {
	t.Run("accepts known modules", func(t *testing.T) {
		for _, m := range KnownModules() {
			parsed, err := ParseRetentionModule(m.String())
			require.NoError(t, err)
			assert.Equal(t, m, parsed)
		}
	})

	t.Run("rejects unknown module", func(t *testing.T) {
		_, err := ParseRetentionModule("videoKyc")
		require.Error(t, err)
	})

	t.Run("rejects empty module", func(t *testing.T) {
		_, err := ParseRetentionModule("")
		require.Error(t, err)
	})
}
