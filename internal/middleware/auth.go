// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"community-points-api/internal/service"
)

// contextKey is unexported so only this package can place or read values
// under its keys.
type contextKey string

const userIDKey contextKey = "userID"

// identityClaims are the token claims issued by the identity provider.
// The subject carries the numeric user ID.
type identityClaims struct {
	Username    string `json:"preferred_username"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
}

func parseIdentity(r *http.Request, secret []byte) (*identityClaims, int64, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, 0, fmt.Errorf("missing bearer token")
	}

	var claims identityClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("invalid token: %w", err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, 0, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	return &claims, userID, nil
}

// RequireAuth validates the bearer token, lazily creates the member row for
// first-time identities, and stores the user ID in the request context.
func RequireAuth(secret string, users *service.UserService) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, userID, err := parseIdentity(r, key)
			if err != nil {
				unauthorized(w)
				return
			}

			username := claims.Username
			if username == "" {
				username = claims.DisplayName
			}
			if _, _, err := users.EnsureUser(r.Context(), userID, username, claims.DisplayName, claims.Email); err != nil {
				log.Error().Err(err).Int64("user_id", userID).Msg("failed to bootstrap user")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"store_unavailable","message":"temporary failure, retry later"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests from authenticated users that are not in
// the configured admin list. Must run after RequireAuth.
func RequireAdmin(isAdmin func(int64) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok || !isAdmin(userID) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","message":"admin access required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext retrieves the authenticated user's ID, or false for an
// anonymous request.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// WithUserID returns a context carrying the given user ID. Used by handler
// tests to simulate an authenticated request.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
