package clients

import (
	"context"
	"net/http"
	"strings"
)

type bearerKey struct{}

// WithBearerToken attaches a caller token to be forwarded to the remote.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, strings.TrimSpace(token))
}

// BearerTokenFrom returns the token attached by WithBearerToken.
func BearerTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// BearerTransport sets Authorization from the request context, falling back to StaticToken.
// A 401 is passed through untouched; there is no refresh.
type BearerTransport struct {
	Base        http.RoundTripper
	StaticToken string
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	token := BearerTokenFrom(req.Context())
	if token == "" {
		token = t.StaticToken
	}
	if token == "" || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}
