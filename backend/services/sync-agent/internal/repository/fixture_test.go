package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evsync/backend/services/sync-agent/internal/cache"
	"evsync/backend/services/sync-agent/internal/clients"
	"evsync/backend/services/sync-agent/internal/identity"
	"evsync/backend/services/sync-agent/internal/metrics"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/translator"
)

var (
	testNow  = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ownerNIC = "199012345678"
	owner    = identity.Identity{UserID: "u-1", NIC: ownerNIC, Name: "Nimal", Role: models.RoleOwner}
	operator = identity.Identity{UserID: "op-1", Name: "Kamal", Role: models.RoleOperator}
)

type reply struct {
	status int
	body   string
}

// fakeRemote routes "METHOD /path" to canned replies. Unrouted calls answer 503.
type fakeRemote struct {
	mu     sync.Mutex
	routes map[string]reply
	hits   []string
}

func (f *fakeRemote) on(route string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = reply{status: status, body: body}
}

func (f *fakeRemote) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hits...)
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.hits = append(f.hits, route)
	rep, ok := f.routes[route]
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"title":"Gateway.ServiceUnavailable","status":503,"detail":"upstream offline"}`))
		return
	}
	w.WriteHeader(rep.status)
	_, _ = w.Write([]byte(rep.body))
}

type env struct {
	remote       *fakeRemote
	registry     *prometheus.Registry
	stationStore *cache.MemoryStore[models.Station]
	resStore     *cache.MemoryStore[models.Reservation]
	sessionStore *cache.MemoryStore[models.OperatorSession]
	userStore    *cache.MemoryStore[models.User]
	stations     *Stations
	reservations *Reservations
	sessions     *OperatorSessions
	users        *Users
}

func newEnv(t *testing.T) *env {
	t.Helper()
	remote := &fakeRemote{routes: make(map[string]reply)}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)
	return buildEnv(t, remote, srv.URL)
}

func buildEnv(t *testing.T, remote *fakeRemote, baseURL string) *env {
	t.Helper()
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)

	clock := func() time.Time { return testNow }
	deps := Deps{
		Remote:     clients.NewBookingAPI(baseURL, clients.NewDefaultHTTPClient(2*time.Second, "")),
		Translator: translator.New(time.UTC, translator.WithClock(clock)),
		Logger:     logger,
		Metrics:    rec,
		Clock:      clock,
	}
	e := &env{
		remote:       remote,
		registry:     reg,
		stationStore: cache.NewMemoryStore[models.Station](cache.FamilyStations, logger),
		resStore:     cache.NewMemoryStore[models.Reservation](cache.FamilyReservations, logger),
		sessionStore: cache.NewMemoryStore[models.OperatorSession](cache.FamilyOperatorSession, logger),
		userStore:    cache.NewMemoryStore[models.User](cache.FamilyUsers, logger),
	}
	e.stations = NewStations(deps, e.stationStore)
	e.reservations = NewReservations(deps, e.resStore)
	e.sessions = NewOperatorSessions(deps, e.sessionStore, e.resStore)
	e.users = NewUsers(deps, e.userStore)
	return e
}

func as(id identity.Identity) context.Context {
	return identity.WithIdentity(context.Background(), id)
}

func booking(id, ownerID string, status models.ReservationStatus, start time.Time) models.Reservation {
	return models.Reservation{
		ID: id, StationID: "st-1", OwnerID: ownerID, Status: status,
		Start: start, End: start.Add(time.Hour), DurationMinutes: 60,
		CreatedAt: testNow, UpdatedAt: testNow,
	}
}

func station(id string, lat, lon float64) models.Station {
	return models.Station{ID: id, Name: id, Latitude: lat, Longitude: lon, Type: models.ChargerAC, Reservable: true, Available: true, CreatedAt: testNow, UpdatedAt: testNow}
}
