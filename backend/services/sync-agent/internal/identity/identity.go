// Package identity decodes caller bearer tokens into the acting user.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"evsync/backend/services/sync-agent/internal/models"
)

// Claims is the JWT payload issued by the Remote Booking Service.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	NIC    string `json:"nic,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated user acting on this device.
type Identity struct {
	UserID string
	NIC    string
	Name   string
	Email  string
	Role   models.Role
}

// IsOperator reports whether the identity acts as a station operator.
func (i Identity) IsOperator() bool { return i.Role == models.RoleOperator }

// User converts the identity into the cached user record.
func (i Identity) User(now time.Time) models.User {
	return models.User{
		ID:        i.UserID,
		NIC:       i.NIC,
		Name:      i.Name,
		Email:     i.Email,
		Role:      i.Role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var errNoSubject = errors.New("identity: token carries no subject")

// FromToken decodes token. With a secret the HMAC signature and expiry are verified;
// without one the claims are read as-is and the remote stays the verifier.
func FromToken(token, secret string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, errors.New("identity: empty token")
	}

	claims := &Claims{}
	if secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return Identity{}, err
		}
	} else {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("identity: unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			return Identity{}, err
		}
		if !parsed.Valid {
			return Identity{}, errors.New("identity: invalid token")
		}
	}

	id := Identity{
		UserID: firstNonEmpty(claims.Subject, claims.UserID, claims.NIC),
		NIC:    strings.TrimSpace(claims.NIC),
		Name:   claims.Name,
		Email:  claims.Email,
		Role:   NormalizeRole(claims.Role),
	}
	if id.UserID == "" {
		return Identity{}, errNoSubject
	}
	return id, nil
}

// Sign issues an HS256 token for id. The agent never mints tokens for the remote; this serves
// local tooling and tests.
func Sign(id Identity, secret string, ttl time.Duration) (string, error) {
	if id.UserID == "" {
		return "", errNoSubject
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now().UTC()
	claims := Claims{
		NIC:   id.NIC,
		Name:  id.Name,
		Email: id.Email,
		Role:  string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// NormalizeRole maps the remote's role spellings ("EVOwner", "StationOperator", ...) to a Role.
func NormalizeRole(role string) models.Role {
	if strings.Contains(strings.ToUpper(role), "OPERATOR") {
		return models.RoleOperator
	}
	return models.RoleOwner
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
