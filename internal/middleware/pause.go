package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/pkg/errors"
)

// PauseFlag stands in for the external maintenance/pause collaborator spec.md
// §6/§7 names: when set, mutating operations (upload, delete) fail with
// Paused before the core is entered, same as the admin-permission check.
type PauseFlag struct {
	paused atomic.Bool
}

// Set updates the paused state.
func (p *PauseFlag) Set(paused bool) { p.paused.Store(paused) }

// Paused reports the current state.
func (p *PauseFlag) Paused() bool { return p.paused.Load() }

// check returns ErrPaused if the flag is set, mirroring the
// errors.Is-checked sentinel pattern internal/handler/upload.go uses for
// upload.ErrBadRequest.
func (p *PauseFlag) check() error {
	if p.Paused() {
		return ErrPaused
	}
	return nil
}

// Guard returns middleware that rejects requests with 503 while paused.
func (p *PauseFlag) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := p.check(); errors.Is(err, ErrPaused) {
			http.Error(w, `{"error":"paused for maintenance"}`, http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}
