package clients

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evsync/backend/services/sync-agent/internal/syncerr"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func answer(status int, body string) doerFunc {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}, nil
	}
}

func TestBaseClientHeaders(t *testing.T) {
	var seen []*http.Request
	client := NewBaseClient("http://remote/", doerFunc(func(r *http.Request) (*http.Response, error) {
		seen = append(seen, r)
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{}`))}, nil
	}))

	_, err := client.Do(context.Background(), http.MethodGet, "/api/v1/bookings?page=2", nil)
	require.NoError(t, err)
	_, err = client.Do(context.Background(), http.MethodPost, "/api/v1/closeSession", closeSessionRequest{ReservationID: "r1"})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, "http://remote/api/v1/bookings?page=2", seen[0].URL.String())
	assert.Equal(t, "application/json", seen[0].Header.Get("Accept"))
	assert.Empty(t, seen[0].Header.Get("Content-Type"))
	assert.Equal(t, "application/json", seen[1].Header.Get("Content-Type"))
}

func TestBaseClientSortsFailures(t *testing.T) {
	ctx := context.Background()

	_, err := NewBaseClient("http://remote", answer(http.StatusBadGateway, `upstream down`)).Do(ctx, http.MethodGet, "/x", nil)
	var remote *syncerr.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadGateway, remote.Code)
	assert.Equal(t, "upstream down", string(remote.Body))

	refused := doerFunc(func(*http.Request) (*http.Response, error) { return nil, errors.New("connection refused") })
	_, err = NewBaseClient("http://remote", refused).Do(ctx, http.MethodGet, "/api/v1/bookings?status=PENDING", nil)
	var netErr *syncerr.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "GET /api/v1/bookings", netErr.Op)

	huge := bytes.Repeat([]byte("a"), maxResponseBytes+1)
	_, err = NewBaseClient("http://remote", answer(http.StatusOK, string(huge))).Do(ctx, http.MethodGet, "/x", nil)
	var decodeErr *syncerr.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, errResponseTooLarge)

	body, err := NewBaseClient("http://remote", answer(http.StatusNoContent, ``)).Do(ctx, http.MethodPost, "/x", nil)
	require.NoError(t, err)
	assert.Empty(t, body)
}
