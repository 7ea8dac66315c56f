package service

import "crypto/subtle"

// AuthService checks presented API keys against the configured admin secret.
type AuthService struct {
	secret []byte
}

// NewAuthService constructs an AuthService for the given admin secret.
func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

// Check reports whether key equals the admin secret. The comparison runs in
// constant time; an empty key never matches.
func (s *AuthService) Check(key string) bool {
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), s.secret) == 1
}
