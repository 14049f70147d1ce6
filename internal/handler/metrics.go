package handler

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics holds process-lifetime atomic counters exposed at GET /metrics.
// All writes use atomic operations so there is no lock contention on hot paths.
type Metrics struct {
	UploadsTotal           atomic.Int64 // UploadingArg chunks received, accepted or rejected
	UploadsFailed          atomic.Int64 // UploadingArg chunks rejected (ErrBadRequest)
	SessionsComplete       atomic.Int64 // in-progress uploads assembled into the store
	SessionsExpired        atomic.Int64 // in-progress uploads reclaimed by internal/cleanup
	DedupHits              atomic.Int64 // trust-declared-hash fast-path binds
	DedupMisses            atomic.Int64 // UploadingArg chunks that did not qualify for the fast path
	BytesServed            atomic.Int64 // payload bytes returned by GET /v1/files/{path}, POST /v1/http and POST /v1/stream
	StreamingContinuations atomic.Int64 // POST /v1/stream calls
	Deletes                atomic.Int64 // paths processed by DELETE /v1/files
}

// NewMetrics returns a zeroed Metrics, constructed outside Handler.New so
// main can wire internal/cleanup's eviction callback to SessionsExpired
// before the HTTP routes exist.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// metricsHandler returns the http.HandlerFunc that serialises the current
// counter snapshot as a flat JSON object. activeFunc reports the real-time
// active-upload count from the limiter.
func (m *Metrics) metricsHandler(activeFunc func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{ //nolint:errcheck
			"uploads_total":           m.UploadsTotal.Load(),
			"uploads_failed":          m.UploadsFailed.Load(),
			"sessions_complete":       m.SessionsComplete.Load(),
			"sessions_expired":        m.SessionsExpired.Load(),
			"dedup_hits":              m.DedupHits.Load(),
			"dedup_misses":            m.DedupMisses.Load(),
			"bytes_served":            m.BytesServed.Load(),
			"streaming_continuations": m.StreamingContinuations.Load(),
			"deletes":                 m.Deletes.Load(),
			"active_uploads":          int64(activeFunc()),
		})
	}
}
