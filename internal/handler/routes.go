package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/zynqcloud/assetvault/internal/assets"
	"github.com/zynqcloud/assetvault/internal/config"
	"github.com/zynqcloud/assetvault/internal/middleware"
	"github.com/zynqcloud/assetvault/internal/persistence"
	"github.com/zynqcloud/assetvault/internal/upload"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	cfg       *config.Config
	store     *assets.Store
	assembler *upload.Assembler
	responder *Responder
	logger    *slog.Logger
	metrics   *Metrics
	pause     *middleware.PauseFlag
}

// New registers all routes and returns the root http.Handler.
// Uses Go 1.22 method+path pattern syntax — no external router needed.
//
// Middleware stack (outer → inner):
//
//	RequestLog → ServeMux → PauseFlag.Guard → ServiceToken auth → UploadLimiter → handler
func New(cfg *config.Config, store *assets.Store, assembler *upload.Assembler, pause *middleware.PauseFlag, logger *slog.Logger, metrics *Metrics) http.Handler {
	h := &Handler{
		cfg:       cfg,
		store:     store,
		assembler: assembler,
		responder: NewResponder(store, Options{
			MaxResponseBytes:             cfg.MaxResponseBytes,
			StoredHeadersOverrideControl: cfg.StoredHeadersOverrideControl,
		}),
		logger:  logger,
		metrics: metrics,
		pause:   pause,
	}

	// SessionsComplete counts every session the Assembler itself finishes
	// and hands to the Asset Store — wired here, not in cmd/server, so the
	// hook lives next to the rest of the metrics wiring.
	assembler.OnComplete = func(path string) { h.metrics.SessionsComplete.Add(1) }

	auth := middleware.ServiceToken(cfg.ServiceToken)
	logMW := middleware.RequestLog(logger)
	limiter := middleware.NewUploadLimiter(cfg.MaxConcurrentUploads)

	mux := http.NewServeMux()

	// ── Read path — list, download, generic responder, streaming ──────────
	mux.Handle("GET /v1/files", auth(http.HandlerFunc(h.List)))
	mux.Handle("GET /v1/files/{path...}", auth(http.HandlerFunc(h.Download)))
	mux.Handle("GET /{$}", http.HandlerFunc(h.Index))
	mux.Handle("POST /v1/http", auth(http.HandlerFunc(h.HTTPRequest)))
	mux.Handle("POST /v1/stream", auth(http.HandlerFunc(h.Stream)))

	// ── Write path — upload (paused + limited), delete (paused) ───────────
	mux.Handle("POST /v1/uploads",
		h.pause.Guard(auth(limiter.Limit(http.HandlerFunc(h.Upload)))))
	mux.Handle("DELETE /v1/files",
		h.pause.Guard(auth(http.HandlerFunc(h.Delete))))

	// ── Observability ───────────────────────────────────────────────────
	//
	// GET /health        — liveness probe: fast 200 while the process is alive.
	// GET /healthz/ready — readiness probe: checks the snapshot directory and
	//                      free disk space.
	// GET /metrics       — atomic process counters as flat JSON.
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /healthz/ready", auth(http.HandlerFunc(h.Readiness)))
	mux.Handle("GET /metrics", auth(h.metrics.metricsHandler(limiter.Active)))

	return logMW(mux)
}

// Readiness is the Kubernetes readiness probe handler.
// Returns 200 when the service can accept uploads; 503 when it cannot.
func (h *Handler) Readiness(w http.ResponseWriter, _ *http.Request) {
	type check struct {
		Name string `json:"name"`
		OK   bool   `json:"ok"`
		Msg  string `json:"msg,omitempty"`
	}
	var checks []check
	allOK := true

	dir := filepath.Dir(h.cfg.SnapshotPath)
	avail, total := persistence.DiskStats(dir)
	if total > 0 {
		const minFreeBytes = 64 << 20
		if avail < minFreeBytes {
			checks = append(checks, check{
				"disk_space", false,
				fmt.Sprintf("%d MB free — need %d MB", avail>>20, minFreeBytes>>20),
			})
			allOK = false
		} else {
			checks = append(checks, check{
				"disk_space", true,
				fmt.Sprintf("%d MB free of %d MB", avail>>20, total>>20),
			})
		}
	}

	if h.pause.Paused() {
		checks = append(checks, check{"paused", false, "maintenance mode"})
		allOK = false
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": allOK, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
