package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/drallgood/ebook-reader/internal/logger"
)

// tokenExpiry reads the exp claim without verifying the signature.
// ok is false for opaque tokens and tokens without exp.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// warnIfExpired only logs: the server decides whether a restored token is
// still accepted.
func warnIfExpired(log *logger.Logger, token string) {
	exp, ok := tokenExpiry(token)
	if !ok || time.Now().Before(exp) {
		return
	}
	log.Warn("Stored access token looks expired", map[string]interface{}{
		"expired_at": exp.Format(time.RFC3339),
	})
}
