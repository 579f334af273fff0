package lifecycle

import (
	"fmt"
	"time"

	"evsync/backend/services/sync-agent/internal/models"
)

// SessionTransitionError rejects an operator session status change.
type SessionTransitionError struct {
	From models.SessionStatus
	To   models.SessionStatus
}

func (e *SessionTransitionError) Error() string {
	return fmt.Sprintf("operator session cannot move from %s to %s", e.From, e.To)
}

var sessionEdges = map[models.SessionStatus][]models.SessionStatus{
	models.SessionValidated:  {models.SessionInProgress, models.SessionClosed},
	models.SessionInProgress: {models.SessionClosed},
}

// CanTransitionSession validates VALIDATED → IN_PROGRESS → CLOSED (IN_PROGRESS is optional).
func CanTransitionSession(from, to models.SessionStatus) error {
	for _, next := range sessionEdges[from] {
		if next == to {
			return nil
		}
	}
	return &SessionTransitionError{From: from, To: to}
}

// IsOpen reports whether a session still accepts a close.
func IsOpen(s models.OperatorSession) bool {
	return s.Status != models.SessionClosed
}

// NewValidatedSession builds the record persisted after a remote validation succeeded.
func NewValidatedSession(id, reservationID, operatorID string, now time.Time) models.OperatorSession {
	validated := now
	return models.OperatorSession{
		ID:                  id,
		ReservationID:       reservationID,
		OperatorID:          operatorID,
		Status:              models.SessionValidated,
		ValidationTimestamp: &validated,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Revalidate refreshes an open session after a repeated successful validation.
func Revalidate(s models.OperatorSession, operatorID string, now time.Time) models.OperatorSession {
	validated := now
	s.ValidationTimestamp = &validated
	if operatorID != "" {
		s.OperatorID = operatorID
	}
	s.UpdatedAt = now
	return s
}

// StartCharging moves a validated session to IN_PROGRESS.
func StartCharging(s models.OperatorSession, now time.Time) (models.OperatorSession, error) {
	if err := CanTransitionSession(s.Status, models.SessionInProgress); err != nil {
		return s, err
	}
	s.Status = models.SessionInProgress
	s.UpdatedAt = now
	return s, nil
}

// MarkClosed stamps CLOSED unconditionally; it mirrors an acknowledged remote close.
func MarkClosed(s models.OperatorSession, now time.Time) models.OperatorSession {
	closed := now
	s.Status = models.SessionClosed
	s.CloseTimestamp = &closed
	s.UpdatedAt = now
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	return s
}
