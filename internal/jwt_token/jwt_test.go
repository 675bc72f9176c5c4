package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civicdesk/pkg/domain"
	dErrors "civicdesk/pkg/domain-errors"
)

func newTestService() *JWTService {
	return NewJWTService("test-signing-key", "civicdesk", "civicdesk-api")
}

func TestRoundTrip(t *testing.T) {
	svc := newTestService()
	actorID := id.UserID(uuid.New())

	token, err := svc.GenerateAccessToken(actorID, id.RoleStaff, time.Hour)
	require.NoError(t, err)

	gotID, gotRole, err := svc.Actor(token)
	require.NoError(t, err)
	assert.Equal(t, actorID, gotID)
	assert.Equal(t, id.RoleStaff, gotRole)
}

func TestValidateToken(t *testing.T) {
	svc := newTestService()
	actorID := id.UserID(uuid.New())

	t.Run("expired", func(t *testing.T) {
		token, err := svc.GenerateAccessToken(actorID, id.RoleCitizen, -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewJWTService("other-key", "civicdesk", "civicdesk-api")
		token, err := other.GenerateAccessToken(actorID, id.RoleCitizen, time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestActorRejectsBadClaims(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken(id.UserID(uuid.New()), id.ActorRole("INTERN"), time.Hour)
	require.NoError(t, err)

	_, _, err = svc.Actor(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
