// Package lifecycle holds the reservation and operator session state machines.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"evsync/backend/services/sync-agent/internal/models"
)

// progression is the forward order of active booking states.
var progression = map[models.ReservationStatus]int{
	models.StatusPending:    0,
	models.StatusApproved:   1,
	models.StatusConfirmed:  2,
	models.StatusInProgress: 3,
	models.StatusCompleted:  4,
}

var statusAliases = map[string]models.ReservationStatus{
	"CANCELED": models.StatusCancelled,
	"ACTIVE":   models.StatusInProgress,
	"CHARGING": models.StatusInProgress,
	"DONE":     models.StatusCompleted,
}

// TransitionError rejects a status change.
type TransitionError struct {
	From models.ReservationStatus
	To   models.ReservationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("reservation cannot move from %s to %s", e.From, e.To)
}

// NormalizeStatus upper-cases a wire status, maps known aliases, and keeps unknown values verbatim.
func NormalizeStatus(raw string) models.ReservationStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	if alias, ok := statusAliases[s]; ok {
		return alias
	}
	return models.ReservationStatus(s)
}

// Known reports whether status is one of the lifecycle states.
func Known(status models.ReservationStatus) bool {
	if status == models.StatusCancelled {
		return true
	}
	_, ok := progression[status]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(status models.ReservationStatus) bool {
	return status == models.StatusCompleted || status == models.StatusCancelled
}

// IsActive reports whether status counts towards upcoming bookings.
func IsActive(status models.ReservationStatus) bool {
	switch status {
	case models.StatusPending, models.StatusApproved, models.StatusConfirmed, models.StatusInProgress:
		return true
	}
	return false
}

// CanTransition validates a local status change. Bookings only advance along
// PENDING → APPROVED → CONFIRMED → IN_PROGRESS → COMPLETED, skipping steps the remote may have taken
// unobserved; CANCELLED is reachable from every non-terminal state, including unrecognized legacy ones.
func CanTransition(from, to models.ReservationStatus) error {
	if IsTerminal(from) || from == to {
		return &TransitionError{From: from, To: to}
	}
	if to == models.StatusCancelled {
		return nil
	}
	fromRank, okFrom := progression[from]
	toRank, okTo := progression[to]
	if !okFrom || !okTo || toRank <= fromRank {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Cancel returns a copy of r moved to CANCELLED with the cancellation metadata stamped.
func Cancel(r models.Reservation, reason, actor string, role models.Role, now time.Time) (models.Reservation, error) {
	if err := CanTransition(r.Status, models.StatusCancelled); err != nil {
		return r, err
	}
	r.Status = models.StatusCancelled
	r.CanModify = false
	r.Cancellation = &models.Cancellation{
		Reason:    strings.TrimSpace(reason),
		Actor:     actor,
		ActorRole: role,
		At:        now,
	}
	r.UpdatedAt = now
	return r, nil
}

// Complete returns a copy of r moved to COMPLETED.
func Complete(r models.Reservation, now time.Time) (models.Reservation, error) {
	if err := CanTransition(r.Status, models.StatusCompleted); err != nil {
		return r, err
	}
	r.Status = models.StatusCompleted
	r.CanModify = false
	r.UpdatedAt = now
	return r, nil
}

// IsUpcoming: an active status and either charging now or starting in the future.
func IsUpcoming(r models.Reservation, now time.Time) bool {
	if !IsActive(r.Status) {
		return false
	}
	return r.Status == models.StatusInProgress || r.Start.After(now)
}

// Classify splits reservations into upcoming and past, preserving input order. An item classified
// upcoming is never also past. Terminal bookings are past regardless of start; anything else that is
// not upcoming, unrecognized statuses included, becomes past once its start has elapsed.
func Classify(items []models.Reservation, now time.Time) (upcoming, past []models.Reservation) {
	upcoming = make([]models.Reservation, 0, len(items))
	past = make([]models.Reservation, 0, len(items))
	for _, r := range items {
		switch {
		case IsUpcoming(r, now):
			upcoming = append(upcoming, r)
		case IsTerminal(r.Status) || !r.Start.After(now):
			past = append(past, r)
		}
	}
	return upcoming, past
}
