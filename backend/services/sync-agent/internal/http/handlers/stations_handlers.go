package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"evsync/backend/services/sync-agent/internal/repository"
	"evsync/backend/services/sync-agent/internal/syncerr"
)

const defaultRadiusKM = 10

// StationsHandlers serves the station catalogue.
type StationsHandlers struct {
	stations *repository.Stations
	logger   *zap.Logger
}

// NewStationsHandlers returns handler.
func NewStationsHandlers(stations *repository.Stations, logger *zap.Logger) *StationsHandlers {
	return &StationsHandlers{stations: stations, logger: logger}
}

// List handles GET /stations.
func (h *StationsHandlers) List(w http.ResponseWriter, r *http.Request) {
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
	result, err := h.stations.List(r.Context(), repository.StationQuery{
		Page:     page,
		PageSize: pageSize,
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
	})
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listing(result))
}

// Nearby handles GET /stations/nearby?lat=&lon=&radiusKm=.
func (h *StationsHandlers) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	for _, key := range []string{"lat", "lon"} {
		if strings.TrimSpace(q.Get(key)) == "" {
			writeFailure(w, h.logger, &syncerr.ValidationError{Field: key, Reason: "required"})
			return
		}
	}
	lat, err := queryFloat(r, "lat", 0)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	lon, err := queryFloat(r, "lon", 0)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	radius, err := queryFloat(r, "radiusKm", defaultRadiusKM)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	result, err := h.stations.Nearby(r.Context(), lat, lon, radius)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listing(result))
}

// Get handles GET /stations/{id}.
func (h *StationsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.stations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fetched(result))
}
