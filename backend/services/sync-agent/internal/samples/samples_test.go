package samples

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evsync/backend/services/sync-agent/internal/lifecycle"
)

func TestSampleSets(t *testing.T) {
	stations := Stations()
	require.Len(t, stations, 4)
	for _, s := range stations {
		assert.True(t, IsSample(s.ID), s.ID)
	}

	now := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	reservations := Reservations("nic-1", now)
	require.Len(t, reservations, 3)
	for _, r := range reservations {
		assert.True(t, IsSample(r.ID), r.ID)
		assert.Equal(t, "nic-1", r.OwnerID)
		assert.False(t, r.End.Before(r.Start))
	}

	upcoming, past := lifecycle.Classify(reservations, now)
	assert.Len(t, upcoming, 2)
	assert.Len(t, past, 1)
	assert.Equal(t, Reservations("nic-1", now), reservations)
}
