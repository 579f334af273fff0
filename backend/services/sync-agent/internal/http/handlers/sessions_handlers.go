package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/repository"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

// SessionsHandlers serves the operator workflow at the station.
type SessionsHandlers struct {
	sessions *repository.OperatorSessions
	logger   *zap.Logger
}

// NewSessionsHandlers returns handler.
func NewSessionsHandlers(sessions *repository.OperatorSessions, logger *zap.Logger) *SessionsHandlers {
	return &SessionsHandlers{sessions: sessions, logger: logger}
}

type sessionRequest struct {
	ReservationID string `json:"reservationId"`
	OperatorID    string `json:"operatorId"`
}

func (h *SessionsHandlers) decode(w http.ResponseWriter, r *http.Request) (sessionRequest, bool) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, h.logger, err)
		return req, false
	}
	req.ReservationID = strings.TrimSpace(req.ReservationID)
	if req.ReservationID == "" {
		writeFailure(w, h.logger, &syncerr.ValidationError{Field: "reservationId", Reason: "required"})
		return req, false
	}
	return req, true
}

// List handles GET /operator/sessions[?reservationId=].
func (h *SessionsHandlers) List(w http.ResponseWriter, r *http.Request) {
	var (
		sessions []models.OperatorSession
		err      error
	)
	if id := strings.TrimSpace(r.URL.Query().Get("reservationId")); id != "" {
		sessions, err = h.sessions.ForReservation(r.Context(), id)
	} else {
		sessions, err = h.sessions.List(r.Context())
	}
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	if sessions == nil {
		sessions = []models.OperatorSession{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": sessions})
}

// Validate handles POST /operator/sessions/validate. A denial answers 400 with the outcome.
func (h *SessionsHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	outcome, err := h.sessions.Validate(r.Context(), req.ReservationID, req.OperatorID)
	var denied *syncerr.DeniedError
	switch {
	case errors.As(err, &denied):
		writeJSON(w, http.StatusBadRequest, outcome)
		return
	case err != nil:
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// Start handles POST /operator/sessions/start.
func (h *SessionsHandlers) Start(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	session, err := h.sessions.Start(r.Context(), req.ReservationID)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Close handles POST /operator/sessions/close.
func (h *SessionsHandlers) Close(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	session, err := h.sessions.Close(r.Context(), req.ReservationID)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
