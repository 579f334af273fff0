package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"evsync/backend/services/sync-agent/internal/repository"
	"evsync/backend/services/sync-agent/internal/syncerr"
	"evsync/backend/services/sync-agent/internal/translator"
)

const maxBodyBytes = 1 << 20

// listingResponse wraps a repository read so the UI can show a stale-data banner.
type listingResponse[T any] struct {
	Items   []T                 `json:"items"`
	Source  repository.Source   `json:"source"`
	Stale   bool                `json:"stale"`
	Warning *translator.Message `json:"warning,omitempty"`
}

type itemResponse[T any] struct {
	Item    T                   `json:"item"`
	Source  repository.Source   `json:"source"`
	Stale   bool                `json:"stale"`
	Warning *translator.Message `json:"warning,omitempty"`
}

func listing[T any](l repository.Listing[T]) listingResponse[T] {
	items := l.Items
	if items == nil {
		items = []T{}
	}
	return listingResponse[T]{Items: items, Source: l.Source, Stale: l.Stale(), Warning: warning(l.Cause)}
}

func fetched[T any](f repository.Fetched[T]) itemResponse[T] {
	return itemResponse[T]{Item: f.Value, Source: f.Source, Stale: f.Source != repository.SourceRemote, Warning: warning(f.Cause)}
}

func warning(cause error) *translator.Message {
	if cause == nil {
		return nil
	}
	msg := translator.Describe(cause)
	return &msg
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeFailure maps a repository error onto a status and a {title, detail} body.
func writeFailure(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	msg := translator.Describe(err)
	msg.Status = status
	if status >= http.StatusInternalServerError {
		logger.Warn("request failed", zap.Int("status", status), zap.String("kind", syncerr.Kind(err)), zap.Error(err))
	}
	writeJSON(w, status, msg)
}

func statusFor(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	switch syncerr.Kind(err) {
	case syncerr.KindValidation:
		if syncerr.IsMissingIdentity(err) {
			return http.StatusUnauthorized
		}
		return http.StatusBadRequest
	case syncerr.KindDenied:
		return http.StatusBadRequest
	case syncerr.KindNotFound:
		return http.StatusNotFound
	case syncerr.KindRemote:
		var remote *syncerr.RemoteError
		if errors.As(err, &remote) && remote.Code >= 400 && remote.Code <= 599 {
			return remote.Code
		}
		return http.StatusBadGateway
	case syncerr.KindNetwork:
		return http.StatusServiceUnavailable
	case syncerr.KindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return &syncerr.ValidationError{Field: "body", Reason: err.Error()}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &syncerr.ValidationError{Field: "body", Reason: "malformed json"}
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &syncerr.ValidationError{Field: key, Reason: "must be an integer"}
	}
	return v, nil
}

func queryFloat(r *http.Request, key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &syncerr.ValidationError{Field: key, Reason: "must be a number"}
	}
	return v, nil
}
