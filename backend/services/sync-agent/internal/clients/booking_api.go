package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// StationQuery is passed through to the remote station listing unchanged.
type StationQuery struct {
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
	Search   string `json:"search,omitempty"`
}

// BookingQuery is passed through to the remote booking listing unchanged.
type BookingQuery struct {
	Page      int    `json:"page,omitempty"`
	PageSize  int    `json:"pageSize,omitempty"`
	Search    string `json:"search,omitempty"`
	Status    string `json:"status,omitempty"`
	FromDate  string `json:"fromDate,omitempty"`
	ToDate    string `json:"toDate,omitempty"`
	SortBy    string `json:"sortBy,omitempty"`
	SortOrder string `json:"sortOrder,omitempty"`
}

// CreateBookingRequest is the remote create payload.
type CreateBookingRequest struct {
	StationID           string    `json:"stationId"`
	EVOwnerNIC          string    `json:"evOwnerNic"`
	ReservationDateTime time.Time `json:"reservationDateTime"`
	DurationMinutes     int       `json:"durationMinutes"`
	SlotNumber          int       `json:"slotNumber,omitempty"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

type validateSessionRequest struct {
	ReservationID string `json:"reservationId"`
	UserID        string `json:"userId"`
}

type closeSessionRequest struct {
	ReservationID string `json:"reservationId"`
}

// BookingAPI talks to the Remote Booking Service. Every method returns the raw 2xx body;
// transport failures come back as *syncerr.NetworkError and non-2xx answers as *syncerr.RemoteError.
type BookingAPI struct {
	base *BaseClient
}

// NewBookingAPI returns client.
func NewBookingAPI(baseURL string, httpClient HTTPDoer) *BookingAPI {
	return &BookingAPI{base: NewBaseClient(baseURL, httpClient)}
}

func (c *BookingAPI) CreateBooking(ctx context.Context, req CreateBookingRequest) ([]byte, error) {
	return c.base.Do(ctx, http.MethodPost, "/api/v1/bookings", req)
}

func (c *BookingAPI) GetBooking(ctx context.Context, id string) ([]byte, error) {
	return c.base.Do(ctx, http.MethodGet, "/api/v1/bookings/"+url.PathEscape(id), nil)
}

func (c *BookingAPI) OwnerBookings(ctx context.Context, nic string) ([]byte, error) {
	return c.base.Do(ctx, http.MethodGet, "/api/v1/bookings/evowner/"+url.PathEscape(nic), nil)
}

func (c *BookingAPI) CancelBooking(ctx context.Context, id, reason string) ([]byte, error) {
	return c.base.Do(ctx, http.MethodPost, "/api/v1/bookings/"+url.PathEscape(id)+"/cancel", cancelBookingRequest{Reason: reason})
}

func (c *BookingAPI) ListBookings(ctx context.Context, q BookingQuery) ([]byte, error) {
	params := url.Values{}
	setInt(params, "page", q.Page)
	setInt(params, "pageSize", q.PageSize)
	setString(params, "search", q.Search)
	setString(params, "status", q.Status)
	setString(params, "fromDate", q.FromDate)
	setString(params, "toDate", q.ToDate)
	setString(params, "sortBy", q.SortBy)
	setString(params, "sortOrder", q.SortOrder)
	return c.base.Do(ctx, http.MethodGet, withQuery("/api/v1/bookings", params), nil)
}

func (c *BookingAPI) ValidateSession(ctx context.Context, reservationID, userID string) ([]byte, error) {
	return c.base.Do(ctx, http.MethodPost, "/api/v1/validateSession", validateSessionRequest{ReservationID: reservationID, UserID: userID})
}

func (c *BookingAPI) CloseSession(ctx context.Context, reservationID string) ([]byte, error) {
	return c.base.Do(ctx, http.MethodPost, "/api/v1/closeSession", closeSessionRequest{ReservationID: reservationID})
}

func (c *BookingAPI) NearbyStations(ctx context.Context, lat, lon, radiusKM float64) ([]byte, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("radiusKm", strconv.FormatFloat(radiusKM, 'f', -1, 64))
	return c.base.Do(ctx, http.MethodGet, withQuery("/api/v1/charging-stations/nearby", params), nil)
}

func (c *BookingAPI) ListStations(ctx context.Context, q StationQuery) ([]byte, error) {
	params := url.Values{}
	setInt(params, "page", q.Page)
	setInt(params, "pageSize", q.PageSize)
	setString(params, "search", q.Search)
	return c.base.Do(ctx, http.MethodGet, withQuery("/api/v1/charging-stations", params), nil)
}

func (c *BookingAPI) GetStation(ctx context.Context, id string) ([]byte, error) {
	return c.base.Do(ctx, http.MethodGet, "/api/v1/charging-stations/"+url.PathEscape(id), nil)
}

func setInt(params url.Values, key string, v int) {
	if v > 0 {
		params.Set(key, strconv.Itoa(v))
	}
}

func setString(params url.Values, key, v string) {
	if v != "" {
		params.Set(key, v)
	}
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}
