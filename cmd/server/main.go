package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/api"
	"github.com/Loutxo/bam-backend-sub000/internal/api/middleware"
	"github.com/Loutxo/bam-backend-sub000/internal/config"
	"github.com/Loutxo/bam-backend-sub000/internal/geofence"
	"github.com/Loutxo/bam-backend-sub000/internal/handlers"
	"github.com/Loutxo/bam-backend-sub000/internal/realtime"
	"github.com/Loutxo/bam-backend-sub000/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Run migrations
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")
	}

	// Durable store: PostgreSQL when configured, SQLite otherwise
	var ds store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		ds = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		ds = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite store")
	}
	defer ds.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Realtime engine: registry -> rooms -> broadcaster -> dispatcher.
	// Everything is handed around by reference; no globals.
	registry := realtime.NewRegistry(logger)
	rooms := realtime.NewRooms(registry, logger)
	broadcaster := realtime.NewBroadcaster(registry, rooms, logger)

	var sink realtime.EventSink
	if redisStore != nil {
		sink = redisStore
	}
	dispatcher := realtime.NewDispatcher(broadcaster, registry, sink, cfg.BanDisconnectGrace, logger)

	evaluator := geofence.NewEvaluator(ds, dispatcher, geofence.Config{
		DebounceMeters:    cfg.DebounceMeters,
		DebounceWindow:    cfg.DebounceWindow,
		MaxAccuracyMeters: cfg.MaxAccuracyMeters,
		ProximityRadius:   cfg.ProximityRadius,
	}, logger)

	auth := middleware.NewAuthMiddleware(cfg.JWTSecret)
	h := handlers.NewHandler(ds, redisStore, registry, rooms, dispatcher, evaluator, auth, cfg, logger)

	// Create router
	router := api.NewRouter(logger, cfg, h, auth, redisStore)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting BAM realtime server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
