package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"evsync/backend/services/sync-agent/internal/syncerr"
)

// maxResponseBytes caps one remote answer; listings are paged well below this.
const maxResponseBytes = 8 << 20

var errResponseTooLarge = errors.New("response exceeds size limit")

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// BaseClient sends JSON requests to the Remote Booking Service and sorts every failure into the
// sync error taxonomy: no answer is a NetworkError, a non-2xx answer is a RemoteError carrying
// the raw body.
type BaseClient struct {
	baseURL string
	client  HTTPDoer
}

// NewBaseClient builds client with base URL.
func NewBaseClient(baseURL string, client HTTPDoer) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Do encodes payload (when non-nil) and returns the body of a 2xx answer.
func (c *BaseClient) Do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	op := method + " " + stripQuery(path)

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &syncerr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &syncerr.NetworkError{Op: op, Err: err}
	}
	if len(body) > maxResponseBytes {
		return nil, &syncerr.DecodeError{Entity: op, Err: errResponseTooLarge}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &syncerr.RemoteError{Code: resp.StatusCode, Body: body}
	}
	return body, nil
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// NewDefaultHTTPClient returns *http.Client with timeout and bearer forwarding.
func NewDefaultHTTPClient(timeout time.Duration, staticToken string) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &BearerTransport{StaticToken: staticToken},
	}
}
