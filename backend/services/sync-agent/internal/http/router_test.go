package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evsync/backend/services/sync-agent/internal/cache"
	"evsync/backend/services/sync-agent/internal/clients"
	"evsync/backend/services/sync-agent/internal/http/handlers"
	"evsync/backend/services/sync-agent/internal/http/middleware"
	"evsync/backend/services/sync-agent/internal/identity"
	"evsync/backend/services/sync-agent/internal/metrics"
	"evsync/backend/services/sync-agent/internal/models"
	"evsync/backend/services/sync-agent/internal/repository"
	"evsync/backend/services/sync-agent/internal/translator"
)

const secret = "agent-test-secret"

var (
	owner    = identity.Identity{UserID: "u-1", NIC: "199012345678", Name: "Nimal", Role: models.RoleOwner}
	operator = identity.Identity{UserID: "op-1", Name: "Kamal", Role: models.RoleOperator}
)

// upstream answers routed "METHOD /path" calls and 503 otherwise; it records the forwarded token.
type upstream struct {
	mu     sync.Mutex
	routes map[string]string
	status map[string]int
	auth   []string
}

func (u *upstream) on(route string, status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[route] = body
	u.status[route] = status
}

func (u *upstream) tokens() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.auth...)
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	u.mu.Lock()
	u.auth = append(u.auth, r.Header.Get("Authorization"))
	body, ok := u.routes[route]
	status := u.status[route]
	u.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"title":"Gateway.ServiceUnavailable","status":503,"detail":"upstream offline"}`))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

type agent struct {
	upstream *upstream
	server   *httptest.Server
	bookings *cache.MemoryStore[models.Reservation]
	users    *cache.MemoryStore[models.User]
}

func newAgent(t *testing.T) *agent {
	t.Helper()
	up := &upstream{routes: map[string]string{}, status: map[string]int{}}
	remote := httptest.NewServer(up)
	t.Cleanup(remote.Close)

	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)

	deps := repository.Deps{
		Remote:     clients.NewBookingAPI(remote.URL, clients.NewDefaultHTTPClient(2*time.Second, "")),
		Translator: translator.New(time.UTC),
		Logger:     logger,
		Metrics:    rec,
	}
	a := &agent{
		upstream: up,
		bookings: cache.NewMemoryStore[models.Reservation](cache.FamilyReservations, logger),
		users:    cache.NewMemoryStore[models.User](cache.FamilyUsers, logger),
	}
	stations := repository.NewStations(deps, cache.NewMemoryStore[models.Station](cache.FamilyStations, logger))
	reservations := repository.NewReservations(deps, a.bookings)
	sessions := repository.NewOperatorSessions(deps, cache.NewMemoryStore[models.OperatorSession](cache.FamilyOperatorSession, logger), a.bookings)
	users := repository.NewUsers(deps, a.users)

	router := NewRouter(RouterDeps{
		StationsHandlers: handlers.NewStationsHandlers(stations, logger),
		BookingsHandlers: handlers.NewBookingsHandlers(reservations, logger),
		SessionsHandlers: handlers.NewSessionsHandlers(sessions, logger),
		WatchHandler:     handlers.NewWatchHandler(reservations, time.Second, logger),
		HealthHandler:    handlers.NewHealthHandler("test", time.Now()),
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, middleware.AuthMiddleware(secret, middleware.RememberFunc(func(ctx context.Context, id identity.Identity) error {
		_, err := users.Remember(ctx, id)
		return err
	}), logger))

	srv := NewServer(":0", router, logger, middleware.RecoveryMiddleware(logger), middleware.LoggingMiddleware(logger))
	a.server = httptest.NewServer(srv.Handler())
	t.Cleanup(a.server.Close)
	return a
}

func (a *agent) do(t *testing.T, method, path, body string, who *identity.Identity) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if who != nil {
		token, err := identity.Sign(*who, secret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func TestHealthAndMethodGuard(t *testing.T) {
	a := newAgent(t)

	status, body := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = a.do(t, http.MethodDelete, "/stations", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	status, _ = a.do(t, http.MethodPut, "/bookings", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestStationsOfflineServeSamplesWithWarning(t *testing.T) {
	a := newAgent(t)

	status, body := a.do(t, http.MethodGet, "/stations", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sample", body["source"])
	assert.Equal(t, true, body["stale"])
	assert.Len(t, body["items"], 4)
	warning, ok := body["warning"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Service Unavailable", warning["title"])
	assert.Equal(t, "upstream offline", warning["detail"])

	_, metricsBody := a.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Nil(t, metricsBody, "metrics are text exposition")
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	a := newAgent(t)

	status, body := a.do(t, http.MethodGet, "/stations/nearby?lon=79.8", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "lat")

	status, body = a.do(t, http.MethodGet, "/stations/nearby?lat=6.9&lon=79.8&radiusKm=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "radiusKm")
}

func TestMyBookingsNeedIdentity(t *testing.T) {
	a := newAgent(t)

	status, body := a.do(t, http.MethodGet, "/bookings/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["detail"], "no authenticated user")

	req, err := http.NewRequest(http.MethodGet, a.server.URL+"/bookings/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, a.upstream.tokens())
}

func TestMyBookingsForwardTokenAndRememberUser(t *testing.T) {
	a := newAgent(t)
	a.upstream.on("GET /api/v1/bookings/evowner/199012345678", http.StatusOK,
		`[{"id": "r1", "stationId": "st-1", "status": "CONFIRMED", "reservationDateTime": "2099-01-01T10:00:00Z", "durationMinutes": 60}]`)

	status, body := a.do(t, http.MethodGet, "/bookings/me?view=upcoming", "", &owner)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "remote", body["source"])
	assert.Len(t, body["items"], 1)

	tokens := a.upstream.tokens()
	require.Len(t, tokens, 1)
	assert.True(t, strings.HasPrefix(tokens[0], "Bearer "))

	user, ok, err := a.users.Get(context.Background(), "u-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Nimal", user.Name)

	status, _ = a.do(t, http.MethodGet, "/bookings/me?view=soon", "", &owner)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCancelPassesRemoteStatus(t *testing.T) {
	a := newAgent(t)
	a.upstream.on("POST /api/v1/bookings/r1/cancel", http.StatusConflict,
		`{"title":"Booking.CancellationWindowClosed","status":409,"detail":"Bookings cannot be cancelled within 12 hours"}`)

	status, body := a.do(t, http.MethodPost, "/bookings/r1/cancel", `{"reason": "sick"}`, &owner)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Cancellation Window Closed", body["title"])
	assert.Equal(t, "Bookings cannot be cancelled within 12 hours", body["detail"])
}

func TestCreateAndPurge(t *testing.T) {
	a := newAgent(t)
	a.upstream.on("POST /api/v1/bookings", http.StatusCreated,
		`{"id": "r9", "stationId": "st-1", "status": "PENDING", "reservationDateTime": "2099-01-01T10:00:00Z", "durationMinutes": 30}`)

	status, body := a.do(t, http.MethodPost, "/bookings", `{"stationId": "st-1", "start": "2099-01-01T10:00:00Z", "durationMinutes": 30}`, &owner)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "r9", body["id"])

	_, ok, err := a.bookings.Get(context.Background(), "r9")
	require.NoError(t, err)
	assert.True(t, ok)

	status, _ = a.do(t, http.MethodPost, "/bookings/r9/purge", "", &owner)
	assert.Equal(t, http.StatusNoContent, status)
	_, ok, err = a.bookings.Get(context.Background(), "r9")
	require.NoError(t, err)
	assert.False(t, ok)

	status, body = a.do(t, http.MethodPost, "/bookings", `{"stationId": "st-1"`, &owner)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "malformed json")
}

func TestOperatorValidateDenied(t *testing.T) {
	a := newAgent(t)
	a.upstream.on("POST /api/v1/validateSession", http.StatusOK, `{"valid": false, "message": "Booking is not confirmed"}`)

	status, body := a.do(t, http.MethodPost, "/operator/sessions/validate", `{"reservationId": "r1"}`, &operator)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Booking is not confirmed", body["message"])

	status, body = a.do(t, http.MethodPost, "/operator/sessions/start", `{}`, &operator)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "reservationId")

	status, body = a.do(t, http.MethodGet, "/operator/sessions", "", &operator)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["items"])
}

func TestWatchStreamsSnapshots(t *testing.T) {
	a := newAgent(t)
	ctx := context.Background()
	require.NoError(t, a.bookings.Upsert(ctx, models.Reservation{ID: "r1", OwnerID: owner.NIC, Status: models.StatusConfirmed}))

	token, err := identity.Sign(owner, secret, time.Hour)
	require.NoError(t, err)
	wsURL := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws/bookings?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var first struct {
		Items []models.Reservation `json:"items"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	require.Len(t, first.Items, 1)

	require.NoError(t, a.bookings.Upsert(ctx, models.Reservation{ID: "r2", OwnerID: owner.NIC, Status: models.StatusPending}))
	var second struct {
		Items []models.Reservation `json:"items"`
	}
	require.NoError(t, conn.ReadJSON(&second))
	assert.Len(t, second.Items, 2)
}

func TestWatchRejectsAnonymous(t *testing.T) {
	a := newAgent(t)
	wsURL := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws/bookings"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
