package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evsync/backend/services/sync-agent/internal/cache"
	"evsync/backend/services/sync-agent/internal/lifecycle"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

// sessionID builds session_{reservationId}_{epochMillis}_{random}. The random suffix keeps
// ids unique when one reservation is validated twice within a millisecond.
var sessionID = func(reservationID string, now time.Time) string {
	return fmt.Sprintf("session_%s_%d_%s", reservationID, now.UnixMilli(), uuid.NewString()[:8])
}

// ValidationOutcome is the result of an operator validating a booking at the station.
type ValidationOutcome struct {
	Valid       bool                    `json:"valid"`
	Message     string                  `json:"message,omitempty"`
	Session     *models.OperatorSession `json:"session,omitempty"`
	Reservation *models.Reservation     `json:"reservation,omitempty"`
}

// OperatorSessions is the repository for operator-side charging sessions.
type OperatorSessions struct {
	base
	store        cache.Store[models.OperatorSession]
	reservations cache.Store[models.Reservation]
}

// NewOperatorSessions returns repository. reservations receives the booking echoed by a validation
// and the completion that follows a close.
func NewOperatorSessions(d Deps, store cache.Store[models.OperatorSession], reservations cache.Store[models.Reservation]) *OperatorSessions {
	return &OperatorSessions{base: newBase(d, "operator_sessions"), store: store, reservations: reservations}
}

func forReservation(reservationID string) cache.Filter[models.OperatorSession] {
	return func(s models.OperatorSession) bool { return s.ReservationID == reservationID }
}

// Validate asks the remote whether reservationID may start charging. A denial writes nothing and
// comes back as a DeniedError alongside the outcome. Revalidating a reservation whose session
// is still open refreshes that session instead of opening a second one.
func (o *OperatorSessions) Validate(ctx context.Context, reservationID, operatorID string) (ValidationOutcome, error) {
	reservationID = strings.TrimSpace(reservationID)
	if reservationID == "" {
		return ValidationOutcome{}, &syncerr.ValidationError{Field: "reservationId", Reason: "required"}
	}
	if operatorID == "" {
		who, err := caller(ctx)
		if err != nil {
			return ValidationOutcome{}, err
		}
		operatorID = who.UserID
	}

	body, err := o.remote.ValidateSession(ctx, reservationID, operatorID)
	if err != nil {
		o.remoteFailed(cache.FamilyOperatorSession, "validate", err)
		return ValidationOutcome{}, err
	}
	answer, err := o.tr.Validation(body)
	if err != nil {
		o.remoteFailed(cache.FamilyOperatorSession, "validate", err)
		return ValidationOutcome{}, err
	}

	outcome := ValidationOutcome{Valid: answer.Valid, Message: answer.Message, Reservation: answer.Reservation}
	if !answer.Valid {
		o.logger.Info("session validation denied", zap.String("reservation", reservationID), zap.String("message", answer.Message))
		reason := answer.Message
		if reason == "" {
			reason = "denied by booking service"
		}
		return outcome, &syncerr.DeniedError{Op: "session validation", Reason: reason}
	}

	now := o.now()
	session, reused := o.openSession(ctx, reservationID)
	if reused {
		session = lifecycle.Revalidate(session, operatorID, now)
	} else {
		session = lifecycle.NewValidatedSession(sessionID(reservationID, now), reservationID, operatorID, now)
	}
	if err := o.store.Upsert(ctx, session); err != nil {
		o.logger.Warn("cache write failed", zap.String("session", session.ID), zap.Error(err))
	}
	if answer.Reservation != nil {
		if err := o.reservations.Upsert(ctx, *answer.Reservation); err != nil {
			o.logger.Warn("cache write failed", zap.String("reservation", answer.Reservation.ID), zap.Error(err))
		}
	}
	o.metrics.Write(cache.FamilyOperatorSession, "validate")
	o.logger.Info("session validated",
		zap.String("session", session.ID),
		zap.String("reservation", reservationID),
		zap.Bool("revalidated", reused),
	)
	outcome.Session = &session
	return outcome, nil
}

// Start records locally that charging began for a validated session. The cached booking is
// left alone: its status only changes on a remote acknowledgement.
func (o *OperatorSessions) Start(ctx context.Context, reservationID string) (models.OperatorSession, error) {
	if reservationID == "" {
		return models.OperatorSession{}, &syncerr.ValidationError{Field: "reservationId", Reason: "required"}
	}
	session, ok := o.openSession(ctx, reservationID)
	if !ok {
		return models.OperatorSession{}, &syncerr.NotFoundError{Entity: "operator session", ID: reservationID}
	}
	now := o.now()
	started, err := lifecycle.StartCharging(session, now)
	if err != nil {
		return models.OperatorSession{}, &syncerr.ValidationError{Field: "status", Reason: err.Error()}
	}
	if err := o.store.Upsert(ctx, started); err != nil {
		return models.OperatorSession{}, err
	}
	o.metrics.Write(cache.FamilyOperatorSession, "start")
	return started, nil
}

// Close ends charging for reservationID. After the remote acknowledges, the session found by
// reservation id is marked CLOSED whatever its local state; with no local record one is
// synthesized, since the remote is authoritative. The cached booking completes when it can.
func (o *OperatorSessions) Close(ctx context.Context, reservationID string) (models.OperatorSession, error) {
	reservationID = strings.TrimSpace(reservationID)
	if reservationID == "" {
		return models.OperatorSession{}, &syncerr.ValidationError{Field: "reservationId", Reason: "required"}
	}
	if _, err := o.remote.CloseSession(ctx, reservationID); err != nil {
		o.remoteFailed(cache.FamilyOperatorSession, "close", err)
		return models.OperatorSession{}, err
	}

	now := o.now()
	session, found := o.latestSession(ctx, reservationID)
	if !found {
		operatorID := ""
		if who, err := caller(ctx); err == nil {
			operatorID = who.UserID
		}
		session = models.OperatorSession{ID: sessionID(reservationID, now), ReservationID: reservationID, OperatorID: operatorID}
		o.logger.Info("closing session without local record", zap.String("reservation", reservationID))
	}
	session = lifecycle.MarkClosed(session, now)
	if err := o.store.Upsert(ctx, session); err != nil {
		o.logger.Warn("cache write failed", zap.String("session", session.ID), zap.Error(err))
	}

	if res, ok, err := o.reservations.Get(ctx, reservationID); err == nil && ok {
		if completed, err := lifecycle.Complete(res, now); err == nil {
			if err := o.reservations.Upsert(ctx, completed); err != nil {
				o.logger.Warn("cache write failed", zap.String("reservation", reservationID), zap.Error(err))
			}
		}
	}
	o.metrics.Write(cache.FamilyOperatorSession, "close")
	o.logger.Info("session closed", zap.String("session", session.ID), zap.String("reservation", reservationID))
	return session, nil
}

// List returns every cached session, newest first.
func (o *OperatorSessions) List(ctx context.Context) ([]models.OperatorSession, error) {
	all, err := o.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	newestFirst(all)
	return all, nil
}

// ForReservation returns the cached sessions of one reservation, newest first.
func (o *OperatorSessions) ForReservation(ctx context.Context, reservationID string) ([]models.OperatorSession, error) {
	all, err := o.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	mine := cache.Select(all, forReservation(reservationID))
	newestFirst(mine)
	return mine, nil
}

func (o *OperatorSessions) openSession(ctx context.Context, reservationID string) (models.OperatorSession, bool) {
	sessions, err := o.ForReservation(ctx, reservationID)
	if err != nil {
		o.logger.Warn("cache read failed", zap.String("reservation", reservationID), zap.Error(err))
		return models.OperatorSession{}, false
	}
	for _, s := range sessions {
		if lifecycle.IsOpen(s) {
			return s, true
		}
	}
	return models.OperatorSession{}, false
}

// latestSession prefers an open session and otherwise the newest one.
func (o *OperatorSessions) latestSession(ctx context.Context, reservationID string) (models.OperatorSession, bool) {
	if s, ok := o.openSession(ctx, reservationID); ok {
		return s, true
	}
	sessions, err := o.ForReservation(ctx, reservationID)
	if err != nil || len(sessions) == 0 {
		return models.OperatorSession{}, false
	}
	return sessions[0], true
}

func newestFirst(sessions []models.OperatorSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})
}
