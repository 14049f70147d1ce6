package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/zynqcloud/assetvault/internal/assets"
	"github.com/zynqcloud/assetvault/internal/cleanup"
	"github.com/zynqcloud/assetvault/internal/config"
	"github.com/zynqcloud/assetvault/internal/handler"
	"github.com/zynqcloud/assetvault/internal/middleware"
	"github.com/zynqcloud/assetvault/internal/persistence"
	"github.com/zynqcloud/assetvault/internal/upload"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	store := assets.New()
	assembler := upload.New(upload.Limits{
		MaxFileBytes:   cfg.MaxFileBytes,
		HeaderNameMax:  cfg.HeaderNameMax,
		HeaderValueMax: cfg.HeaderValueMax,
	}, cfg.TrustDeclaredHash)

	persister := persistence.New(cfg.SnapshotPath)
	if err := persister.Load(store, assembler); err != nil {
		logger.Error("failed to load snapshot", "path", cfg.SnapshotPath, "err", err)
		os.Exit(1)
	}

	pause := &middleware.PauseFlag{}
	metrics := handler.NewMetrics()

	// Root context — cancelled when a shutdown signal arrives. All
	// long-running background goroutines receive this context so they stop
	// cleanly without needing their own signal wiring.
	ctx, cancel := context.WithCancel(context.Background())

	// Session cleanup goroutine reclaims abandoned in-progress uploads — a
	// client that sends some chunks then disconnects (crash, timeout,
	// network drop) would otherwise hold its buffer forever.
	cleanupDone := cleanup.RunPeriodic(ctx, assembler, cfg.UploadSessionTTL, 1*time.Hour, logger,
		func(string) { metrics.SessionsExpired.Add(1) })

	// Snapshot persistence goroutine, so a restart does not lose finished
	// assets or in-progress uploads.
	persistDone := persister.RunPeriodic(ctx, store, assembler, cfg.SnapshotInterval, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.New(cfg, store, assembler, pause, logger, metrics),
		// ReadHeaderTimeout closes Slowloris: a client that never finishes
		// sending headers holds a goroutine until this fires.
		ReadHeaderTimeout: 10 * time.Second,
		// ReadTimeout and WriteTimeout are intentionally disabled (0 = no
		// limit) — a 2 GiB upload at 1 MB/s takes over half an hour. The
		// reverse proxy in front of this service is the correct layer to
		// enforce an outer connection timeout.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("asset vault starting",
			"port", cfg.Port,
			"snapshot_path", cfg.SnapshotPath,
			"max_concurrent_uploads", cfg.MaxConcurrentUploads,
			"upload_session_ttl", cfg.UploadSessionTTL,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// shutdownSignals is defined in signals.go (os.Interrupt) and extended by
	// signals_unix.go (+ SIGTERM) via build tags — no OS-specific imports here.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, shutdownSignals...)
	<-quit

	logger.Info("shutdown signal received — draining connections")

	// Pause writes immediately so no new upload or delete is accepted while
	// we drain and take the final snapshot.
	pause.Set(true)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}

	// Cancel the root context only after in-flight requests have drained, so
	// persistence.Persister.RunPeriodic's final save sees every write accepted
	// before the pause; cleanup.RunPeriodic simply stops, with no final pass.
	cancel()

	<-cleanupDone
	<-persistDone

	logger.Info("asset vault stopped")
}
