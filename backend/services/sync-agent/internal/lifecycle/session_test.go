package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evsync/backend/services/sync-agent/internal/models"
)

func TestSessionTransitions(t *testing.T) {
	assert.NoError(t, CanTransitionSession(models.SessionValidated, models.SessionInProgress))
	assert.NoError(t, CanTransitionSession(models.SessionValidated, models.SessionClosed))
	assert.NoError(t, CanTransitionSession(models.SessionInProgress, models.SessionClosed))

	assert.Error(t, CanTransitionSession(models.SessionInProgress, models.SessionValidated))
	assert.Error(t, CanTransitionSession(models.SessionClosed, models.SessionInProgress))
	assert.Error(t, CanTransitionSession(models.SessionClosed, models.SessionClosed))
}

func TestSessionFlow(t *testing.T) {
	s := NewValidatedSession("session-1", "res-1", "op-1", now)
	require.NotNil(t, s.ValidationTimestamp)
	assert.Equal(t, models.SessionValidated, s.Status)
	assert.True(t, IsOpen(s))

	later := now.Add(5 * time.Minute)
	s, err := StartCharging(s, later)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, s.Status)
	assert.Equal(t, later, s.UpdatedAt)

	_, err = StartCharging(s, later)
	assert.Error(t, err)

	closedAt := later.Add(time.Hour)
	s = MarkClosed(s, closedAt)
	assert.Equal(t, models.SessionClosed, s.Status)
	require.NotNil(t, s.CloseTimestamp)
	assert.Equal(t, closedAt, *s.CloseTimestamp)
	assert.False(t, IsOpen(s))
}

func TestMarkClosedWithoutPriorRecord(t *testing.T) {
	s := MarkClosed(models.OperatorSession{ID: "x", ReservationID: "res-9"}, now)
	assert.Equal(t, models.SessionClosed, s.Status)
	assert.Equal(t, now, s.CreatedAt)
	assert.Nil(t, s.ValidationTimestamp)
}

func TestRevalidate(t *testing.T) {
	s := NewValidatedSession("session-1", "res-1", "op-1", now)
	later := now.Add(time.Minute)
	s = Revalidate(s, "op-2", later)
	assert.Equal(t, "op-2", s.OperatorID)
	assert.Equal(t, later, *s.ValidationTimestamp)
	assert.Equal(t, now, s.CreatedAt)

	s = Revalidate(s, "", later)
	assert.Equal(t, "op-2", s.OperatorID)
}
