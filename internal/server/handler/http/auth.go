// Package http provides the REST API of the env store: login and logout,
// project and environment listing, environment read/write and status.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/atinyakov/envmanager/internal/middleware"
)

// CookieMaxAge is the lifetime of the auth cookie set on login.
const CookieMaxAge = 30 * 24 * time.Hour

// KeyChecker validates a presented API key.
type KeyChecker interface {
	Check(key string) bool
}

// AuthHandler handles dashboard login and logout.
type AuthHandler struct {
	Auth KeyChecker
	// CookieSecure marks the auth cookie Secure. Enable it behind HTTPS.
	CookieSecure bool
}

// LoginRequest is the JSON payload for login.
type LoginRequest struct {
	APIKey string `json:"apiKey"`
}

// SetAuthCookie stores key in the auth cookie.
func SetAuthCookie(w http.ResponseWriter, key string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookie,
		Value:    key,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie expires the auth cookie.
func ClearAuthCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Login checks {"apiKey": "..."} against the admin secret and sets the auth
// cookie on success. A malformed body is treated as a wrong key.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !h.Auth.Check(req.APIKey) {
		writeError(w, http.StatusUnauthorized, "Invalid API Key")
		return
	}

	SetAuthCookie(w, req.APIKey, h.CookieSecure)
	writeJSON(w, http.StatusOK, successBody)
}

// Logout clears the auth cookie. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearAuthCookie(w, h.CookieSecure)
	writeJSON(w, http.StatusOK, successBody)
}
