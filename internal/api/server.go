// Package api provides the HTTP API server and handlers for the Kopa
// taxonomy: search, the tag tree, suggestions and their moderation,
// notifications and login.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kopa-app/kopa-server/internal/config"
	"github.com/kopa-app/kopa-server/internal/sse"
	"github.com/kopa-app/kopa-server/internal/store"
)

// streamRatePerMinute bounds event stream (re)connects per address.
const streamRatePerMinute = 30

// Server holds dependencies for HTTP handlers.
type Server struct {
	store         store.Store
	services      *Services
	sseManager    *sse.Manager
	index         IndexStats
	router        *chi.Mux
	api           huma.API
	logger        *slog.Logger
	loginLimiter  *RateLimiter
	streamLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
// index may be nil when the search index is disabled.
func NewServer(st store.Store, services *Services, sseManager *sse.Manager, index IndexStats, cfg *config.Config, logger *slog.Logger) *Server {
	loginRate := cfg.Auth.LoginRatePerMinute
	if loginRate <= 0 {
		loginRate = 10
	}

	s := &Server{
		store:         st,
		services:      services,
		sseManager:    sseManager,
		index:         index,
		router:        chi.NewRouter(),
		logger:        logger,
		loginLimiter:  NewRateLimiter(loginRate, time.Minute, loginRate),
		streamLimiter: NewRateLimiter(streamRatePerMinute, time.Minute, streamRatePerMinute),
	}

	s.setupMiddleware(cfg.Server.CORSAllowedOrigins)
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.loginLimiter.Stop()
	s.streamLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.services != nil && s.services.Auth != nil {
		s.router.Use(authMiddleware(s.services.Auth))
	}
}

// setupRoutes mounts the plain chi endpoints and the huma API.
func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	if s.sseManager != nil {
		stream := sse.NewHandler(s.sseManager, s.identifyStream, s.logger)
		s.router.With(RateLimitMiddleware(s.streamLimiter, s.logger)).
			Get("/api/v1/notifications/stream", stream.ServeHTTP)
	}

	humaConfig := huma.DefaultConfig("Kopa API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler(s.logger)

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerTagRoutes()
	s.registerSuggestionRoutes()
	s.registerAdminTagRoutes()
	s.registerNotificationRoutes()
}

// identifyStream authenticates an event stream request. Browsers cannot set
// headers on EventSource, so a token query parameter is accepted as well.
func (s *Server) identifyStream(r *http.Request) (string, bool, bool) {
	if claims, err := GetClaims(r.Context()); err == nil {
		return claims.UserID, claims.CanModerate(), true
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		return "", false, false
	}
	claims, err := s.services.Auth.Authenticate(r.Context(), token)
	if err != nil {
		return "", false, false
	}
	return claims.UserID, claims.CanModerate(), true
}
