package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evsync/backend/services/sync-agent/internal/identity"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

func TestUsersRememberAndLast(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.users.Last(ctx)
	var notFound *syncerr.NotFoundError
	require.ErrorAs(t, err, &notFound)

	earlier := models.User{ID: "u-1", NIC: ownerNIC, Role: models.RoleOwner, CreatedAt: testNow.Add(-48 * time.Hour), UpdatedAt: testNow.Add(-48 * time.Hour)}
	require.NoError(t, e.userStore.Upsert(ctx, earlier, models.User{ID: "u-0", UpdatedAt: testNow.Add(-time.Hour)}))

	user, err := e.users.Remember(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, earlier.CreatedAt, user.CreatedAt, "creation time survives")
	assert.Equal(t, testNow, user.UpdatedAt)
	assert.Equal(t, "Nimal", user.Name)

	last, err := e.users.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", last.ID)
	assert.Equal(t, owner, AsIdentity(last))

	got, err := e.users.Get(ctx, "u-0")
	require.NoError(t, err)
	assert.Equal(t, "u-0", got.ID)
	_, err = e.users.Get(ctx, "nobody")
	assert.ErrorAs(t, err, &notFound)

	_, err = e.users.Remember(ctx, identity.Identity{NIC: ownerNIC})
	assert.True(t, syncerr.IsMissingIdentity(err))
}
