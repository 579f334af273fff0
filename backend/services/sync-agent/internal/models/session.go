package models

import "time"

// SessionStatus is the operator session lifecycle state.
type SessionStatus string

const (
	SessionValidated  SessionStatus = "VALIDATED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionClosed     SessionStatus = "CLOSED"
)

// OperatorSession is the operator-side record of a charging event tied to one reservation.
type OperatorSession struct {
	ID                  string        `json:"id"`
	ReservationID       string        `json:"reservationId"`
	OperatorID          string        `json:"operatorId"`
	Status              SessionStatus `json:"status"`
	ValidationTimestamp *time.Time    `json:"validationTimestamp,omitempty"`
	CloseTimestamp      *time.Time    `json:"closeTimestamp,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// CacheKey implements cache.Entity.
func (s OperatorSession) CacheKey() string { return s.ID }
