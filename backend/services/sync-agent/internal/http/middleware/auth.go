package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"evsync/backend/services/sync-agent/internal/clients"
	"evsync/backend/services/sync-agent/internal/identity"
	"evsync/backend/services/sync-agent/internal/translator"
)

// Rememberer records the identity behind an accepted token.
type Rememberer interface {
	Remember(ctx context.Context, id identity.Identity) error
}

// RememberFunc adapts a function to Rememberer.
type RememberFunc func(ctx context.Context, id identity.Identity) error

// Remember implements Rememberer.
func (f RememberFunc) Remember(ctx context.Context, id identity.Identity) error { return f(ctx, id) }

// AuthMiddleware decodes an optional bearer token into the request identity and forwards the
// token to the booking service. Requests without a token pass through anonymously; repositories
// reject them where an identity is required. A token that does not decode is a 401.
func AuthMiddleware(secret string, users Rememberer, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "invalid authorization header")
				return
			}
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := identity.FromToken(tokenStr, secret)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				unauthorized(w, "invalid token")
				return
			}

			ctx := identity.WithIdentity(r.Context(), id)
			ctx = clients.WithBearerToken(ctx, tokenStr)
			if users != nil {
				if err := users.Remember(ctx, id); err != nil {
					logger.Warn("remember user failed", zap.String("user", id.UserID), zap.Error(err))
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads the Authorization header, falling back to the access_token query
// parameter used by browser websockets. ok is false for a malformed header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader == "" {
		return strings.TrimSpace(r.URL.Query().Get("access_token")), true
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(mustJSON(translator.Message{Title: "Unauthorized", Status: http.StatusUnauthorized, Detail: detail}))
}
