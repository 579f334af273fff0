package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/repository"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

// Views accepted by GET /bookings/me.
const (
	ViewAll      = "all"
	ViewUpcoming = "upcoming"
	ViewPast     = "past"
)

// BookingsHandlers serves owner bookings.
type BookingsHandlers struct {
	reservations *repository.Reservations
	logger       *zap.Logger
}

// NewBookingsHandlers returns handler.
func NewBookingsHandlers(reservations *repository.Reservations, logger *zap.Logger) *BookingsHandlers {
	return &BookingsHandlers{reservations: reservations, logger: logger}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// List handles GET /bookings.
func (h *BookingsHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	pageSize, err := queryInt(r, "pageSize")
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	result, err := h.reservations.List(r.Context(), repository.BookingQuery{
		Page:      page,
		PageSize:  pageSize,
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		FromDate:  q.Get("fromDate"),
		ToDate:    q.Get("toDate"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listing(result))
}

// Mine handles GET /bookings/me?view=all|upcoming|past.
func (h *BookingsHandlers) Mine(w http.ResponseWriter, r *http.Request) {
	var read func(context.Context) (repository.Listing[models.Reservation], error)
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("view"))) {
	case "", ViewAll:
		read = h.reservations.ListMine
	case ViewUpcoming:
		read = h.reservations.Upcoming
	case ViewPast:
		read = h.reservations.Past
	default:
		writeFailure(w, h.logger, &syncerr.ValidationError{Field: "view", Reason: "must be all, upcoming or past"})
		return
	}
	result, err := read(r.Context())
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listing(result))
}

// Create handles POST /bookings.
func (h *BookingsHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in repository.CreateInput
	if err := decodeBody(r, &in); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	created, err := h.reservations.Create(r.Context(), in)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Get handles GET /bookings/{id}.
func (h *BookingsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.reservations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fetched(result))
}

// Cancel handles POST /bookings/{id}/cancel.
func (h *BookingsHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	cancelled, err := h.reservations.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

// Purge handles POST /bookings/{id}/purge.
func (h *BookingsHandlers) Purge(w http.ResponseWriter, r *http.Request) {
	if err := h.reservations.Purge(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
