package models

import "time"

// User is the authenticated identity as reported by the provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session holds the bearer credential and identity for the current user.
// It exists only while authenticated and is owned by the identity provider;
// the local copy is a cache invalidated on sign-out or expiry.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token's lifetime has passed.
func (s *Session) Expired() bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}
