package httpserver

import (
	"net/http"
	"sort"
	"strings"

	"evsync/backend/services/sync-agent/internal/http/handlers"
	"evsync/backend/services/sync-agent/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	StationsHandlers *handlers.StationsHandlers
	BookingsHandlers *handlers.BookingsHandlers
	SessionsHandlers *handlers.SessionsHandlers
	WatchHandler     *handlers.WatchHandler
	HealthHandler    http.HandlerFunc
	MetricsHandler   http.Handler
}

// NewRouter wires HTTP routes. Health and metrics skip authMiddleware.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))
	if deps.MetricsHandler != nil {
		mux.Handle("/metrics", method(http.MethodGet, deps.MetricsHandler))
	}

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	mux.Handle("/stations", method(http.MethodGet, authenticated(deps.StationsHandlers.List)))
	mux.Handle("/stations/nearby", method(http.MethodGet, authenticated(deps.StationsHandlers.Nearby)))
	mux.Handle("/stations/{id}", method(http.MethodGet, authenticated(deps.StationsHandlers.Get)))

	mux.Handle("/bookings", methods(map[string]http.Handler{
		http.MethodGet:  authenticated(deps.BookingsHandlers.List),
		http.MethodPost: authenticated(deps.BookingsHandlers.Create),
	}))
	mux.Handle("/bookings/me", method(http.MethodGet, authenticated(deps.BookingsHandlers.Mine)))
	mux.Handle("/bookings/{id}", method(http.MethodGet, authenticated(deps.BookingsHandlers.Get)))
	mux.Handle("/bookings/{id}/cancel", method(http.MethodPost, authenticated(deps.BookingsHandlers.Cancel)))
	mux.Handle("/bookings/{id}/purge", method(http.MethodPost, authenticated(deps.BookingsHandlers.Purge)))

	mux.Handle("/operator/sessions", method(http.MethodGet, authenticated(deps.SessionsHandlers.List)))
	mux.Handle("/operator/sessions/validate", method(http.MethodPost, authenticated(deps.SessionsHandlers.Validate)))
	mux.Handle("/operator/sessions/start", method(http.MethodPost, authenticated(deps.SessionsHandlers.Start)))
	mux.Handle("/operator/sessions/close", method(http.MethodPost, authenticated(deps.SessionsHandlers.Close)))

	mux.Handle("/ws/bookings", method(http.MethodGet, authenticated(deps.WatchHandler.Bookings)))

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func methods(byMethod map[string]http.Handler) http.Handler {
	allow := make([]string, 0, len(byMethod))
	for m := range byMethod {
		allow = append(allow, m)
	}
	sort.Strings(allow)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := byMethod[r.Method]
		if !ok {
			w.Header().Set("Allow", strings.Join(allow, ", "))
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
