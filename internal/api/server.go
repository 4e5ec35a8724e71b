// Package api provides the HTTP API server and handlers for BookWorm.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bookwormapp/bookworm/internal/http/response"
	"github.com/bookwormapp/bookworm/internal/logger"
	"github.com/bookwormapp/bookworm/internal/media/images"
	"github.com/bookwormapp/bookworm/internal/ratelimit"
	"github.com/bookwormapp/bookworm/internal/store"
)

// Config holds the HTTP-facing settings of the server.
type Config struct {
	Version            string
	BodyLimit          int64 // Max bytes for book uploads
	AllowedOrigins     []string
	RateLimitPerMinute int // Auth requests per IP
	RateLimitBurst     int
}

// DocumentCounter reports the size of the search index for health checks.
type DocumentCounter interface {
	DocumentCount() (uint64, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           store.Store
	services        *Services
	images          *images.Storage
	search          DocumentCounter
	cfg             Config
	router          *chi.Mux
	api             huma.API
	authRateLimiter *ratelimit.KeyedRateLimiter
	logger          *slog.Logger
}

// NewServer creates the HTTP server with all routes configured.
// imageStorage and searchIndex may be nil; the matching routes then report
// the component as unavailable.
func NewServer(st store.Store, services *Services, imageStorage *images.Storage, searchIndex DocumentCounter, cfg Config, log *slog.Logger) *Server {
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}

	s := &Server{
		store:           st,
		services:        services,
		images:          imageStorage,
		search:          searchIndex,
		cfg:             cfg,
		router:          chi.NewRouter(),
		authRateLimiter: ratelimit.PerMinute(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		logger:          logger.OrDiscard(log),
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("BookWorm API", cfg.Version)
	humaConfig.Info.Description = "Share book recommendations with cover photos."
	humaConfig.CreateHooks = nil // plain JSON bodies, no $schema links
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, used by tests and OpenAPI tooling.
func (s *Server) API() huma.API {
	return s.api
}

// Shutdown releases background resources held by the server.
func (s *Server) Shutdown() {
	s.authRateLimiter.Stop()
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(s.rateLimitAuth)
	s.router.Use(authMiddleware(s.services.Auth))

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Not found", s.logger)
	})
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerBookRoutes()
	s.registerSearchRoutes()
	s.registerImageRoutes()
}
