package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/pkg/errors"
)

// check returns ErrForbidden if provided does not match token in constant
// time. token == "" means dev mode: every request passes.
func check(token, provided string) error {
	if token == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		return ErrForbidden
	}
	return nil
}

// ServiceToken returns middleware that validates the X-Service-Token header.
// If token is empty (dev mode), all requests are allowed through.
func ServiceToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(token, r.Header.Get("X-Service-Token")); errors.Is(err, ErrForbidden) {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
