package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/maneesh/licitafiles/internal/config"
	"github.com/maneesh/licitafiles/internal/files"
	"github.com/maneesh/licitafiles/internal/handlers"
	"github.com/maneesh/licitafiles/internal/logging"
	"github.com/maneesh/licitafiles/internal/storage"
	"github.com/maneesh/licitafiles/internal/tracing"
	"github.com/spf13/cobra"
)

// NewServeCommand starts the HTTP server
func NewServeCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the files HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, logging.New(cfg.LogLevel, cfg.LogFormat))
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Info("Starting service", "service", cfg.ServiceName, "port", cfg.ServicePort, "environment", cfg.Environment)

	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName, version, cfg.OTelEndpoint, logger)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Error("Error shutting down tracer", "err", err)
		}
	}()

	// Resolve the storage backend once
	selector := storage.NewSelector(cfg.BlobStorageURL,
		storage.WithBucketBootstrap(cfg.BlobCreateBucket),
		storage.WithURLExpiry(cfg.DownloadURLExpiry),
		storage.WithLogger(logger),
	)
	backend, err := selector.Resolve(ctx, storage.NewMemoryBackend())
	if err != nil {
		return err
	}
	logger.Info("Storage backend resolved", "backend", backend.Name(), "degraded", backend.Degraded())

	if cfg.RedisURL != "" && !backend.Degraded() {
		cache, err := storage.NewRedisCache(cfg.RedisURL, "licitafiles:listing:"+backend.Name(), cfg.ListingCacheTTL)
		if err != nil {
			return err
		}
		defer cache.Close()
		backend = storage.NewCachedBackend(backend, cache, logger)
		logger.Info("Listing cache enabled", "ttl", cfg.ListingCacheTTL)
	}

	opts := []files.Option{
		files.WithLogger(logger),
		files.WithStrictMockDelete(cfg.MockStrictDelete),
	}
	if cfg.AuditDSN != "" {
		audit, err := storage.NewMySQLAuditLog(cfg.AuditDSN)
		if err != nil {
			return err
		}
		defer audit.Close()
		opts = append(opts, files.WithAuditLog(audit))
		logger.Info("Audit log enabled")
	}

	service := files.NewService(backend, opts...)
	filesHandler := handlers.NewFilesHandler(service, logger, !cfg.IsProduction())
	router := handlers.NewRouter(filesHandler, logger)

	// Uploads of up to 100 MiB need generous read and write timeouts
	srv := &http.Server{
		Addr:         cfg.GetListenAddr(),
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}

	logger.Info("Server exited")
	return nil
}
