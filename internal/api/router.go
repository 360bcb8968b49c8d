package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/api/middleware"
	"github.com/Loutxo/bam-backend-sub000/internal/config"
	"github.com/Loutxo/bam-backend-sub000/internal/handlers"
	"github.com/Loutxo/bam-backend-sub000/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, cfg *config.Config, h *handlers.Handler, auth *middleware.AuthMiddleware, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (requires Redis; dev setups without it skip limiting)
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger)
		r.Use(limiter.Middleware)
	}

	// CORS - the mobile and web clients call from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)

	// The websocket endpoint authenticates its token itself: browsers
	// cannot set an Authorization header on the upgrade request.
	r.Get("/ws", h.WebSocket)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/locations", h.SubmitLocation)

		r.Get("/zones", h.ListZones)
		r.Post("/zones", h.CreateZone)
		r.Delete("/zones/{id}", h.DeleteZone)

		r.Get("/alerts", h.ListAlerts)
		r.Post("/alerts/{id}/read", h.MarkAlertRead)

		r.Post("/events", h.PushEvent)

		r.Get("/presence/stats", h.Stats)
		r.Get("/presence/{id}", h.Presence)
		r.Get("/rooms/{id}/online", h.RoomMembers)
		r.Get("/rooms/{id}/events", h.RoomEvents)
	})

	return r
}
