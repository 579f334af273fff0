package repository

import (
	"context"

	"go.uber.org/zap"

	"evsync/backend/libs/pii"
	"evsync/backend/services/sync-agent/internal/cache"
	"evsync/backend/services/sync-agent/internal/identity"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

// Users remembers who signed in on this device.
type Users struct {
	base
	store cache.Store[models.User]
}

// NewUsers returns repository.
func NewUsers(d Deps, store cache.Store[models.User]) *Users {
	return &Users{base: newBase(d, "users"), store: store}
}

// Remember caches id as a user, keeping the original creation time of a known user.
func (u *Users) Remember(ctx context.Context, id identity.Identity) (models.User, error) {
	if id.UserID == "" {
		return models.User{}, syncerr.ErrMissingIdentity
	}
	now := u.now()
	user := id.User(now)
	if known, ok, err := u.store.Get(ctx, id.UserID); err == nil && ok {
		user.CreatedAt = known.CreatedAt
		if user.NIC == "" {
			user.NIC = known.NIC
		}
	}
	if err := u.store.Upsert(ctx, user); err != nil {
		return models.User{}, err
	}
	u.logger.Debug("user remembered", zap.String("user", user.ID), zap.String("nic", pii.Fingerprint(user.NIC)))
	return user, nil
}

// Get returns a cached user.
func (u *Users) Get(ctx context.Context, id string) (models.User, error) {
	user, ok, err := u.store.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if !ok {
		return models.User{}, &syncerr.NotFoundError{Entity: "user", ID: id}
	}
	return user, nil
}

// Last returns the most recently seen user, for offline use when no caller token is present.
func (u *Users) Last(ctx context.Context) (models.User, error) {
	all, err := u.store.GetAll(ctx)
	if err != nil {
		return models.User{}, err
	}
	if len(all) == 0 {
		return models.User{}, &syncerr.NotFoundError{Entity: "user"}
	}
	last := all[0]
	for _, user := range all[1:] {
		if user.UpdatedAt.After(last.UpdatedAt) {
			last = user
		}
	}
	return last, nil
}

// AsIdentity turns a cached user back into an identity.
func AsIdentity(user models.User) identity.Identity {
	return identity.Identity{UserID: user.ID, NIC: user.NIC, Name: user.Name, Email: user.Email, Role: user.Role}
}
