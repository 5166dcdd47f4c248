// Command server runs the CEA transactions analytics HTTP API: it opens
// the read-only store, constructs the two response-cache pools, and serves
// the STORE/PLAN/AGG/CACHE/COND endpoints until interrupted. Grounded on
// the teacher's startHTTPServer/examples/http-server main — signal-driven
// graceful shutdown via http.Server.Shutdown, trading the teacher's
// net.Listen-on-loopback-only binding for a configurable address since this
// service is meant to be reachable beyond the host it runs on.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cea-insights/analytics-engine/internal/cache"
	"github.com/cea-insights/analytics-engine/internal/config"
	"github.com/cea-insights/analytics-engine/internal/httpapi"
	"github.com/cea-insights/analytics-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(os.Getenv("CEA_CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := bootstrapData(ctx, cfg.Store, logger); err != nil {
		return fmt.Errorf("bootstrap data directory: %w", err)
	}

	s, err := store.Open(ctx, store.Config{
		DataDir:       cfg.Store.DataDir,
		PageCacheKB:   cfg.Store.PageCacheKB,
		MmapSizeBytes: cfg.Store.MmapSizeBytes,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	apiPool := cache.New(cfg.APICache.Capacity, cfg.APICache.TTL)
	statsPool := cache.New(cfg.StatsCache.Capacity, cfg.StatsCache.TTL)

	router := httpapi.NewRouter(httpapi.Deps{
		Store:        s,
		APICache:     apiPool,
		StatsCache:   statsPool,
		QueryTimeout: cfg.Query.Timeout,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "dataDir", cfg.Store.DataDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// bootstrapData fetches the database file and catalog from S3 when
// cfg.S3Bucket is set and they aren't already present locally, a no-op
// otherwise.
func bootstrapData(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) error {
	if cfg.S3Bucket == "" {
		return nil
	}
	logger.Info("bootstrapping data directory from S3", "bucket", cfg.S3Bucket, "dataDir", cfg.DataDir)
	return store.Bootstrap(ctx, cfg.DataDir, store.S3BootstrapConfig{
		Bucket: cfg.S3Bucket,
		Region: cfg.S3Region,
		Prefix: cfg.S3Prefix,
	})
}
