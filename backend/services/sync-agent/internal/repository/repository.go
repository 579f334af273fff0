// Package repository synchronizes the Remote Booking Service with the local cache.
//
// Writes are write-then-confirm: the remote must acknowledge before the cache changes.
// Reads are read-through: remote first, then the cache, then the built-in samples.
package repository

import (
	"bytes"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"evsync/backend/services/sync-agent/internal/cache"
	"evsync/backend/services/sync-agent/internal/clients"
	"evsync/backend/services/sync-agent/internal/identity"
	"evsync/backend/services/sync-agent/internal/metrics"
	"evsync/backend/services/sync-agent/internal/syncerr"
	"evsync/backend/services/sync-agent/internal/translator"
)

// Source tells the caller which tier served a read.
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
	SourceSample Source = "sample"
)

// Listing is a read result. Cause is the remote failure that forced a fallback.
type Listing[T any] struct {
	Items  []T
	Source Source
	Cause  error
}

// Stale reports whether the items did not come from the remote.
func (l Listing[T]) Stale() bool { return l.Source != SourceRemote }

// Fetched is a point-read result.
type Fetched[T any] struct {
	Value  T
	Source Source
	Cause  error
}

type (
	StationQuery = clients.StationQuery
	BookingQuery = clients.BookingQuery
)

// BookingService is the remote surface the repositories consume. *clients.BookingAPI implements it.
type BookingService interface {
	CreateBooking(ctx context.Context, req clients.CreateBookingRequest) ([]byte, error)
	GetBooking(ctx context.Context, id string) ([]byte, error)
	OwnerBookings(ctx context.Context, nic string) ([]byte, error)
	CancelBooking(ctx context.Context, id, reason string) ([]byte, error)
	ListBookings(ctx context.Context, q clients.BookingQuery) ([]byte, error)
	ValidateSession(ctx context.Context, reservationID, userID string) ([]byte, error)
	CloseSession(ctx context.Context, reservationID string) ([]byte, error)
	NearbyStations(ctx context.Context, lat, lon, radiusKM float64) ([]byte, error)
	ListStations(ctx context.Context, q clients.StationQuery) ([]byte, error)
	GetStation(ctx context.Context, id string) ([]byte, error)
}

// Deps are shared by every repository.
type Deps struct {
	Remote     BookingService
	Translator *translator.Translator
	Logger     *zap.Logger
	Metrics    *metrics.Recorder
	Clock      func() time.Time
}

type base struct {
	remote  BookingService
	tr      *translator.Translator
	logger  *zap.Logger
	metrics *metrics.Recorder
	clock   func() time.Time
}

func newBase(d Deps, component string) base {
	b := base{remote: d.Remote, tr: d.Translator, logger: d.Logger, metrics: d.Metrics, clock: d.Clock}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.logger = b.logger.Named(component)
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.tr == nil {
		b.tr = translator.New(time.UTC, translator.WithClock(b.clock))
	}
	return b
}

func (b base) now() time.Time { return b.clock().UTC() }

// remoteFailed records a failed remote call.
func (b base) remoteFailed(family, op string, err error) {
	b.metrics.RemoteFailure(family, op, syncerr.Kind(err))
}

// caller returns the authenticated identity or the missing-identity precondition error.
func caller(ctx context.Context) (identity.Identity, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return identity.Identity{}, syncerr.ErrMissingIdentity
	}
	return id, nil
}

// ownerKey is how the remote correlates bookings with an owner.
func ownerKey(id identity.Identity) string {
	if id.NIC != "" {
		return id.NIC
	}
	return id.UserID
}

func emptyBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}

// readThrough is the three-tier read. fetch covers the remote call and translation and
// reconcile mirrors a fresh result into the cache. cached answers from the cache and reports
// whether the cache holds anything for the query's family scope; sample is used only when it does not.
func readThrough[T cache.Entity](
	ctx context.Context,
	b base,
	family, op string,
	fetch func(context.Context) ([]T, error),
	reconcile func(context.Context, []T) error,
	cached func(context.Context) ([]T, bool, error),
	sample func() []T,
) (Listing[T], error) {
	items, err := fetch(ctx)
	if err == nil {
		if rerr := reconcile(ctx, items); rerr != nil {
			b.logger.Warn("cache reconcile failed", zap.String("family", family), zap.String("op", op), zap.Error(rerr))
		}
		b.metrics.Read(family, string(SourceRemote))
		return Listing[T]{Items: items, Source: SourceRemote}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Listing[T]{}, ctxErr
	}
	b.remoteFailed(family, op, err)

	fallback, populated, cerr := cached(ctx)
	if cerr != nil {
		b.logger.Warn("cache read failed", zap.String("family", family), zap.String("op", op), zap.Error(cerr))
	}
	if populated {
		b.logger.Warn("serving cached data", zap.String("family", family), zap.String("op", op),
			zap.Int("count", len(fallback)), zap.Error(err))
		b.metrics.Read(family, string(SourceCache))
		return Listing[T]{Items: fallback, Source: SourceCache, Cause: err}, nil
	}

	b.logger.Warn("serving sample data", zap.String("family", family), zap.String("op", op), zap.Error(err))
	b.metrics.Read(family, string(SourceSample))
	return Listing[T]{Items: sample(), Source: SourceSample, Cause: err}, nil
}

// pointRead fetches one entity, falling back to the cached copy only. A reachable remote that
// answers without the entity is authoritative: the cached copy is dropped and NotFound returned.
func pointRead[T cache.Entity](
	ctx context.Context,
	b base,
	store cache.Store[T],
	family, id string,
	fetch func(context.Context) (T, error),
) (Fetched[T], error) {
	var zero Fetched[T]
	if id == "" {
		return zero, &syncerr.ValidationError{Field: "id", Reason: "required"}
	}
	item, err := fetch(ctx)
	if err == nil {
		if werr := store.Upsert(ctx, item); werr != nil {
			b.logger.Warn("cache write failed", zap.String("family", family), zap.String("id", id), zap.Error(werr))
		}
		b.metrics.Read(family, string(SourceRemote))
		return Fetched[T]{Value: item, Source: SourceRemote}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	var notFound *syncerr.NotFoundError
	if errors.As(err, &notFound) {
		if derr := store.Delete(ctx, id); derr != nil {
			b.logger.Warn("cache delete failed", zap.String("family", family), zap.String("id", id), zap.Error(derr))
		}
		return zero, err
	}
	b.remoteFailed(family, "get", err)

	cachedItem, ok, cerr := store.Get(ctx, id)
	if cerr != nil {
		b.logger.Warn("cache read failed", zap.String("family", family), zap.String("id", id), zap.Error(cerr))
	}
	if !ok {
		return zero, err
	}
	b.logger.Warn("serving cached entity", zap.String("family", family), zap.String("id", id), zap.Error(err))
	b.metrics.Read(family, string(SourceCache))
	return Fetched[T]{Value: cachedItem, Source: SourceCache, Cause: err}, nil
}

func logRejected(logger *zap.Logger, family string, rejected []error) {
	for _, err := range rejected {
		logger.Warn("skipped unmappable entry", zap.String("family", family), zap.Error(err))
	}
}
