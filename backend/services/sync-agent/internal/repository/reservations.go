package repository

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"evsync/backend/libs/pii"
	"evsync/backend/services/sync-agent/internal/cache"
	"evsync/backend/services/sync-agent/internal/clients"
	"evsync/backend/services/sync-agent/internal/identity"
	"evsync/backend/services/sync-agent/internal/lifecycle"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/samples"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

// CreateInput is a booking request from the signed-in owner.
type CreateInput struct {
	StationID       string    `json:"stationId"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"durationMinutes"`
	SlotNumber      int       `json:"slotNumber,omitempty"`
}

// Reservations is the synchronizing repository for bookings.
type Reservations struct {
	base
	store cache.Store[models.Reservation]
}

// NewReservations returns repository.
func NewReservations(d Deps, store cache.Store[models.Reservation]) *Reservations {
	return &Reservations{base: newBase(d, "reservations"), store: store}
}

func ownedBy(owner string) cache.Filter[models.Reservation] {
	return func(r models.Reservation) bool { return r.OwnerID == owner }
}

func (in CreateInput) validate(now time.Time) error {
	switch {
	case strings.TrimSpace(in.StationID) == "":
		return &syncerr.ValidationError{Field: "stationId", Reason: "required"}
	case in.Start.IsZero():
		return &syncerr.ValidationError{Field: "start", Reason: "required"}
	case !in.Start.After(now):
		return &syncerr.ValidationError{Field: "start", Reason: "must be in the future"}
	case in.DurationMinutes < models.MinBookingMinutes:
		return &syncerr.ValidationError{Field: "durationMinutes", Reason: "must be at least 15 minutes"}
	case in.SlotNumber < 0:
		return &syncerr.ValidationError{Field: "slotNumber", Reason: "must not be negative"}
	}
	return nil
}

// Create books a slot for the caller and caches the confirmed booking.
func (r *Reservations) Create(ctx context.Context, in CreateInput) (models.Reservation, error) {
	who, err := caller(ctx)
	if err != nil {
		return models.Reservation{}, err
	}
	if err := in.validate(r.now()); err != nil {
		return models.Reservation{}, err
	}
	owner := ownerKey(who)

	body, err := r.remote.CreateBooking(ctx, clients.CreateBookingRequest{
		StationID:           strings.TrimSpace(in.StationID),
		EVOwnerNIC:          owner,
		ReservationDateTime: in.Start.UTC(),
		DurationMinutes:     in.DurationMinutes,
		SlotNumber:          in.SlotNumber,
	})
	if err != nil {
		r.remoteFailed(cache.FamilyReservations, "create", err)
		return models.Reservation{}, err
	}
	if emptyBody(body) {
		return models.Reservation{}, &syncerr.NotFoundError{Entity: "reservation"}
	}
	created, err := r.tr.Reservation(body)
	if err != nil {
		r.remoteFailed(cache.FamilyReservations, "create", err)
		return models.Reservation{}, err
	}
	created.OwnerID = owner

	if err := r.store.Upsert(ctx, created); err != nil {
		r.logger.Warn("cache write failed", zap.String("reservation", created.ID), zap.Error(err))
	}
	r.metrics.Write(cache.FamilyReservations, "create")
	r.logger.Info("reservation created",
		zap.String("reservation", created.ID),
		zap.String("station", created.StationID),
		zap.String("owner", pii.Fingerprint(owner)),
	)
	return created, nil
}

// Get reads one booking; offline it serves the cached copy.
func (r *Reservations) Get(ctx context.Context, id string) (Fetched[models.Reservation], error) {
	return pointRead(ctx, r.base, r.store, cache.FamilyReservations, id, func(ctx context.Context) (models.Reservation, error) {
		body, err := r.remote.GetBooking(ctx, id)
		if err != nil {
			return models.Reservation{}, err
		}
		if emptyBody(body) {
			return models.Reservation{}, &syncerr.NotFoundError{Entity: "reservation", ID: id}
		}
		return r.tr.Reservation(body)
	})
}

// ListMine reads the caller's bookings. A fresh answer replaces every cached booking of the caller.
func (r *Reservations) ListMine(ctx context.Context) (Listing[models.Reservation], error) {
	who, err := caller(ctx)
	if err != nil {
		return Listing[models.Reservation]{}, err
	}
	owner := ownerKey(who)

	return readThrough(ctx, r.base, cache.FamilyReservations, "list_mine",
		func(ctx context.Context) ([]models.Reservation, error) {
			body, err := r.remote.OwnerBookings(ctx, owner)
			if err != nil {
				return nil, err
			}
			items, rejected, err := r.tr.Reservations(body)
			logRejected(r.logger, cache.FamilyReservations, rejected)
			// Every row of this endpoint belongs to the caller; the scope key must match ownedBy.
			for i := range items {
				items[i].OwnerID = owner
			}
			return items, err
		},
		func(ctx context.Context, items []models.Reservation) error {
			return r.store.ReplaceScope(ctx, ownedBy(owner), items)
		},
		func(ctx context.Context) ([]models.Reservation, bool, error) {
			all, err := r.store.GetAll(ctx)
			mine := cache.Select(all, ownedBy(owner))
			return mine, len(mine) > 0, err
		},
		func() []models.Reservation {
			return samples.Reservations(owner, r.now())
		},
	)
}

// List reads a page of bookings with the query passed through unchanged; returned rows replace
// their cached copies.
func (r *Reservations) List(ctx context.Context, q BookingQuery) (Listing[models.Reservation], error) {
	return readThrough(ctx, r.base, cache.FamilyReservations, "list",
		func(ctx context.Context) ([]models.Reservation, error) {
			body, err := r.remote.ListBookings(ctx, q)
			if err != nil {
				return nil, err
			}
			items, rejected, err := r.tr.Reservations(body)
			logRejected(r.logger, cache.FamilyReservations, rejected)
			return items, err
		},
		func(ctx context.Context, items []models.Reservation) error {
			return r.store.Upsert(ctx, items...)
		},
		func(ctx context.Context) ([]models.Reservation, bool, error) {
			all, err := r.store.GetAll(ctx)
			if err != nil || len(all) == 0 {
				return nil, false, err
			}
			if q.Status == "" {
				return all, true, nil
			}
			status := lifecycle.NormalizeStatus(q.Status)
			return cache.Select(all, func(res models.Reservation) bool { return res.Status == status }), true, nil
		},
		func() []models.Reservation {
			owner := ""
			if who, ok := identity.FromContext(ctx); ok {
				owner = ownerKey(who)
			}
			return samples.Reservations(owner, r.now())
		},
	)
}

// Cancel cancels a booking remotely and, once acknowledged, mirrors the cancellation locally.
// A cached booking that can no longer be cancelled is rejected before the remote is called.
func (r *Reservations) Cancel(ctx context.Context, id, reason string) (models.Reservation, error) {
	who, err := caller(ctx)
	if err != nil {
		return models.Reservation{}, err
	}
	if id == "" {
		return models.Reservation{}, &syncerr.ValidationError{Field: "id", Reason: "required"}
	}
	cached, found, err := r.store.Get(ctx, id)
	if err != nil {
		r.logger.Warn("cache read failed", zap.String("reservation", id), zap.Error(err))
	}
	if found {
		if err := lifecycle.CanTransition(cached.Status, models.StatusCancelled); err != nil {
			return models.Reservation{}, &syncerr.ValidationError{Field: "status", Reason: err.Error()}
		}
	}

	body, err := r.remote.CancelBooking(ctx, id, reason)
	if err != nil {
		r.remoteFailed(cache.FamilyReservations, "cancel", err)
		return models.Reservation{}, err
	}

	now := r.now()
	cancelled, ok := r.acknowledged(body, id)
	switch {
	case ok && cancelled.Status == models.StatusCancelled:
		if cancelled.Cancellation == nil || cancelled.Cancellation.Actor == "" {
			cancelled.Cancellation = &models.Cancellation{Reason: strings.TrimSpace(reason), Actor: who.UserID, ActorRole: who.Role, At: now}
		}
	case ok:
		cancelled, err = lifecycle.Cancel(cancelled, reason, who.UserID, who.Role, now)
	case found:
		cancelled, err = lifecycle.Cancel(cached, reason, who.UserID, who.Role, now)
	default:
		r.logger.Info("cancelled reservation not cached", zap.String("reservation", id))
		return models.Reservation{
			ID:           id,
			Status:       models.StatusCancelled,
			Cancellation: &models.Cancellation{Reason: strings.TrimSpace(reason), Actor: who.UserID, ActorRole: who.Role, At: now},
			UpdatedAt:    now,
		}, nil
	}
	if err != nil {
		// The remote acknowledged the cancel and is authoritative.
		r.logger.Warn("local lifecycle disagrees with remote cancel", zap.String("reservation", id), zap.Error(err))
		cancelled.Status = models.StatusCancelled
	}
	if cancelled.OwnerID == "" && found {
		cancelled.OwnerID = cached.OwnerID
	}

	if err := r.store.Upsert(ctx, cancelled); err != nil {
		r.logger.Warn("cache write failed", zap.String("reservation", id), zap.Error(err))
	}
	r.metrics.Write(cache.FamilyReservations, "cancel")
	r.logger.Info("reservation cancelled",
		zap.String("reservation", id),
		zap.String("owner", pii.Fingerprint(cancelled.OwnerID)),
		zap.String("actor_role", string(who.Role)),
	)
	return cancelled, nil
}

// acknowledged translates a write acknowledgement that echoes the booking.
func (r *Reservations) acknowledged(body []byte, id string) (models.Reservation, bool) {
	if emptyBody(body) {
		return models.Reservation{}, false
	}
	res, err := r.tr.Reservation(body)
	if err != nil {
		r.logger.Debug("acknowledgement without booking", zap.String("reservation", id), zap.Error(err))
		return models.Reservation{}, false
	}
	if res.ID != id {
		return models.Reservation{}, false
	}
	return res, true
}

// Upcoming is ListMine filtered to bookings still ahead or in progress.
func (r *Reservations) Upcoming(ctx context.Context) (Listing[models.Reservation], error) {
	listing, err := r.ListMine(ctx)
	if err != nil {
		return listing, err
	}
	listing.Items, _ = lifecycle.Classify(listing.Items, r.now())
	return listing, nil
}

// Past is ListMine filtered to finished or elapsed bookings.
func (r *Reservations) Past(ctx context.Context) (Listing[models.Reservation], error) {
	listing, err := r.ListMine(ctx)
	if err != nil {
		return listing, err
	}
	_, listing.Items = lifecycle.Classify(listing.Items, r.now())
	return listing, nil
}

// Purge drops bookings from the cache only.
func (r *Reservations) Purge(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return &syncerr.ValidationError{Field: "id", Reason: "required"}
	}
	if err := r.store.Delete(ctx, ids...); err != nil {
		return err
	}
	r.metrics.Write(cache.FamilyReservations, "purge")
	r.logger.Info("reservations purged", zap.Strings("reservations", ids))
	return nil
}

// Watch streams the caller's cached bookings after every cache change.
func (r *Reservations) Watch(ctx context.Context) (<-chan []models.Reservation, error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.Subscribe(ctx, ownedBy(ownerKey(who))), nil
}
