// Package cleanup reclaims abandoned in-progress uploads.
//
// When a client sends the first chunk of a path but then disconnects
// (network drop, crash, timeout) without ever completing or explicitly
// deleting it, the Upload Assembler's session for that path would otherwise
// live forever, holding its preallocated buffer in memory indefinitely.
// RunPeriodic evicts any session whose last-touched time is older than the
// configured TTL.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Assembler is the subset of upload.Assembler this package depends on, kept
// as a local interface so cleanup never imports the upload package's
// session internals.
type Assembler interface {
	Touched() map[string]time.Time
	CleanUploading(path string)
}

// Sessions sweeps assembler for sessions last touched before ttl ago.
// Safe to call concurrently with active uploads: it only evicts sessions
// whose last-touched time pre-dates the cutoff, so in-progress ones
// (recently touched) are left untouched. onExpire, if non-nil, is called
// once per evicted path — cmd/server wires it to internal/handler's
// SessionsExpired counter, so this package never imports internal/handler.
func Sessions(assembler Assembler, ttl time.Duration, logger *slog.Logger, onExpire func(path string)) {
	cutoff := time.Now().Add(-ttl)
	var removed int
	for path, touched := range assembler.Touched() {
		if touched.Before(cutoff) {
			age := time.Since(touched).Round(time.Minute)
			assembler.CleanUploading(path)
			removed++
			if onExpire != nil {
				onExpire(path)
			}
			logger.Info("cleanup: removed stale upload session", "path", path, "age", age)
		}
	}
	if removed > 0 {
		logger.Info("cleanup: cycle complete", "removed", removed)
	}
}

// RunPeriodic starts a background goroutine that calls Sessions on every
// interval until ctx is cancelled. A first pass runs immediately at startup
// to flush sessions left over from a previous crash or restart. The returned
// channel is closed once the goroutine has observed ctx.Done and returned,
// so callers can wait for the current pass to finish during shutdown.
//
// Recommended values: ttl=24h, interval=1h.
func RunPeriodic(ctx context.Context, assembler Assembler, ttl, interval time.Duration, logger *slog.Logger, onExpire func(path string)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		Sessions(assembler, ttl, logger, onExpire)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				Sessions(assembler, ttl, logger, onExpire)
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
