// Package api provides the HTTP API server and handlers for ThreadStash.
package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/threadstash/threadstash-server/internal/config"
	"github.com/threadstash/threadstash-server/internal/logger"
	"github.com/threadstash/threadstash-server/internal/store"
)

// apiVersion is reported in the OpenAPI document and health responses.
const apiVersion = "1.0.0"

// Server holds dependencies for the HTTP handlers.
type Server struct {
	store           store.Store
	services        *Services
	router          *chi.Mux
	api             huma.API
	logger          *logger.Logger
	authRateLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg *config.Config, st store.Store, services *Services, log *logger.Logger) *Server {
	router := chi.NewRouter()
	authRateLimiter := NewRateLimiter(20, time.Minute, 10)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Credential endpoints are brute-forceable, so they get a per-IP limit.
	router.Use(middleware.Maybe(
		RateLimitMiddleware(authRateLimiter, log),
		func(r *http.Request) bool {
			return r.Method == http.MethodPost &&
				(r.URL.Path == "/api/v1/auth/login" || r.URL.Path == "/api/v1/auth/setup")
		},
	))

	humaConfig := huma.DefaultConfig("ThreadStash API", apiVersion)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}

	humaAPI := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:           st,
		services:        services,
		router:          router,
		api:             humaAPI,
		logger:          log,
		authRateLimiter: authRateLimiter,
	}

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerThreadRoutes()
	s.registerCollectionRoutes()
	s.registerTagRoutes()
	s.registerSearchRoutes()
	s.registerSyncRoutes()
	s.registerSettingsRoutes()
	s.registerBackupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
