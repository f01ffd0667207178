// Package api provides the HTTP API server and handlers for the sticky notes
// service.
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

	"github.com/stickynotes/stickynotes-server/internal/auth"
	"github.com/stickynotes/stickynotes-server/internal/authstate"
	"github.com/stickynotes/stickynotes-server/internal/cache"
	"github.com/stickynotes/stickynotes-server/internal/http/response"
	"github.com/stickynotes/stickynotes-server/internal/metrics"
	"github.com/stickynotes/stickynotes-server/internal/ratelimit"
	"github.com/stickynotes/stickynotes-server/internal/service"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Services holds the collaborators the handlers call into.
type Services struct {
	Storage *service.Storage
	Tokens  *auth.TokenService
	Bus     *authstate.Bus              // optional; session events are dropped when nil
	Cache   *cache.Cache                // optional; reported by the health check
	Metrics *metrics.Metrics            // optional; /metrics is not mounted when nil
	Limiter *ratelimit.KeyedRateLimiter // optional; nil disables rate limiting
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// corsOrigins lists the origins allowed to call the API from a browser.
func NewServer(services *Services, corsOrigins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		services: services,
		router:   chi.NewRouter(),
		logger:   logger,
	}

	s.setupMiddleware(corsOrigins)

	humaConfig := huma.DefaultConfig("Sticky Notes API", Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerSessionRoutes()
	s.registerBucketRoutes()
	s.registerNoteRoutes()
	s.registerSearchRoutes()
	s.registerTagRoutes()

	if services.Metrics != nil {
		s.router.Handle("/metrics", services.Metrics.Handler())
	}
	s.router.NotFound(response.NotFound)
	s.router.MethodNotAllowed(response.MethodNotAllowed)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(corsOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.services.Limiter != nil {
		s.router.Use(RateLimitMiddleware(s.services.Limiter, s.logger))
	}
	s.router.Use(authMiddleware(s.services.Tokens))
}

// requestLogger logs one line per request at debug level, and at warn level
// for server errors.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// bearer marks an operation as requiring an access token.
var bearer = []map[string][]string{{"bearer": {}}}
