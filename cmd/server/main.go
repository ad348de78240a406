// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/order-tracker/internal/admin"
	"github.com/andresuchdata/order-tracker/internal/api"
	"github.com/andresuchdata/order-tracker/internal/cache"
	"github.com/andresuchdata/order-tracker/internal/config"
	"github.com/andresuchdata/order-tracker/internal/domain"
	"github.com/andresuchdata/order-tracker/internal/drive"
	"github.com/andresuchdata/order-tracker/internal/service"
	"github.com/andresuchdata/order-tracker/internal/source"
	"github.com/andresuchdata/order-tracker/internal/storage"
	"github.com/andresuchdata/order-tracker/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if cfg.Server.LogFormat == "json" {
		logger.UseJSON(os.Stdout)
	}
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	fetcher, err := source.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("kind", cfg.Source.Kind).Msg("Failed to configure sheet source")
	}

	rawCache, err := cache.NewRawCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Shared payload cache unavailable, continuing without it")
		rawCache = cache.NewNoopRawCache()
	}

	snapshots := cache.NewSnapshotCache(fetcher, rawCache, cache.OptionsFromConfig(cfg))

	pipeline := domain.NewPipeline(cfg.Tracker.Pipeline, cfg.Tracker.UnrankedProgress, cfg.Tracker.DefaultProgress)
	tracker := service.NewTrackerService(snapshots, service.LookupConfig{
		KeyColumn:    cfg.Source.KeyColumn,
		StatusColumn: cfg.Source.StatusColumn,
		Pipeline:     pipeline,
	}, cfg.Tracker.KeyLabel)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{Tracker: tracker}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	servers := []*http.Server{srv}
	if cfg.Admin.Port != "" {
		servers = append(servers, &http.Server{
			Addr:         ":" + cfg.Admin.Port,
			Handler:      admin.NewRouter(newAdminHandler(ctx, cfg, snapshots)),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		})
	}

	logger.Log.Info().
		Str("source", fetcher.Name()).
		Strs("pipeline", pipeline.Labels()).
		Dur("ttl", cfg.Cache.SnapshotTTL()).
		Msg("Order tracker configured")

	// Start servers in goroutines
	for _, s := range servers {
		go func(s *http.Server) {
			logger.Log.Info().Str("addr", s.Addr).Msg("Starting server")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Fatal().Err(err).Str("addr", s.Addr).Msg("Failed to start server")
			}
		}(s)
	}

	// Wait for interrupt signal to gracefully shut down the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Str("addr", s.Addr).Msg("Server forced to shutdown")
		}
	}

	logger.Log.Info().Msg("Server exiting")
}

// newAdminHandler wires the browsing endpoints for the configured source kind.
func newAdminHandler(ctx context.Context, cfg *config.Config, snapshots *cache.SnapshotCache) *admin.Handler {
	var (
		files   admin.FileBrowser
		objects storage.ObjectStorage
	)

	switch cfg.Source.Kind {
	case config.SourceDrive:
		svc, err := drive.NewService(ctx, cfg.Source.DriveCredentialJSON)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Drive browsing disabled")
		} else {
			files = svc
		}
	case config.SourceS3:
		client, err := source.NewObjectStore(cfg.Source.S3)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Bucket browsing disabled")
		} else {
			objects = client
		}
	}

	return admin.NewHandler(snapshots, files, objects)
}
