package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aura-detect/aura/internal/models"
)

// enrichFromToken fills identity and expiry from access-token claims when the
// provider response omitted them. The signature is not verified: the signing
// secret never leaves the provider, and the backend re-validates the token
// on every call.
func enrichFromToken(sess *models.Session) {
	if sess == nil || sess.AccessToken == "" {
		return
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(sess.AccessToken, jwt.MapClaims{})
	if err != nil {
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return
	}

	if sess.User.ID == "" {
		sess.User.ID = readString(claims, "sub")
	}
	if sess.User.Email == "" {
		sess.User.Email = readString(claims, "email")
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = readExpiry(claims["exp"])
	}
}

func readString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func readExpiry(v any) time.Time {
	switch exp := v.(type) {
	case float64:
		return time.Unix(int64(exp), 0)
	case int64:
		return time.Unix(exp, 0)
	}
	return time.Time{}
}
