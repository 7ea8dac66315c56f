// Package middleware provides HTTP middlewares for authentication, request
// logging, metrics and rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	// APIKeyHeader carries the admin secret on API calls from the CLI.
	APIKeyHeader = "x-api-key"
	// AuthCookie carries the admin secret for dashboard sessions.
	AuthCookie = "auth_token"
)

type ctxKey string

const authSourceKey ctxKey = "auth-source"

// PresentedKey returns the key a request authenticates with. The header wins
// over the cookie when both are present.
func PresentedKey(r *http.Request) (key, source string) {
	if v := r.Header.Get(APIKeyHeader); v != "" {
		return v, "header"
	}
	if c, err := r.Cookie(AuthCookie); err == nil && c.Value != "" {
		return c.Value, "cookie"
	}
	return "", ""
}

// APIKeyAuth rejects requests whose presented key does not pass check with
// 401 {"error":"Unauthorized"}.
//
// On success the credential source ("header" or "cookie") is stored in the
// request context for downstream logging.
func APIKeyAuth(check func(string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, source := PresentedKey(r)
			if !check(key) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), authSourceKey, source)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthSourceFromContext returns how the request was authenticated,
// or an empty string for unauthenticated requests.
func AuthSourceFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(authSourceKey).(string); ok {
		return s
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
