package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser()

// DecodeExpiry returns the exp claim of a JWT without verifying its signature.
// Verification is the backend's job; the dashboard only needs to know when to
// stop presenting the token.
func DecodeExpiry(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, &DecodeError{Reason: "empty token"}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, &DecodeError{Reason: "malformed token", Err: err}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, &DecodeError{Reason: "missing exp claim"}
	}
	return claims.ExpiresAt.Time, nil
}

// Expired is fail-closed: a token that cannot be decoded counts as expired.
func Expired(token string, now time.Time) bool {
	exp, err := DecodeExpiry(token)
	if err != nil {
		return true
	}
	return exp.Before(now)
}
