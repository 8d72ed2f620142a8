// Package api exposes conversions over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mumuon/drivefinder/kml-service/internal/config"
	"github.com/mumuon/drivefinder/kml-service/internal/service"
)

// Converter runs conversions for the handlers.
type Converter interface {
	Convert(ctx context.Context, uri string) (*service.Conversion, error)
	ConvertBytes(ctx context.Context, name string, data []byte) (*service.Conversion, error)
}

// Metrics instruments the router and serves the exposition endpoint.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Server handles HTTP requests for KML conversion.
type Server struct {
	server      *http.Server
	router      *mux.Router
	converter   Converter
	store       *Store
	metrics     Metrics
	metricsPath string
	logger      *slog.Logger
	config      config.ServerConfig
	schemes     map[string]bool // URI schemes clients may ask the server to fetch
	version     string
	started     time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts the metrics middleware and exposes them at path.
func WithMetrics(m Metrics, path string) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsPath = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a new API server.
func NewServer(cfg config.ServerConfig, conv Converter, opts ...Option) *Server {
	s := &Server{
		converter:   conv,
		store:       NewStore(cfg.StoreSize),
		metricsPath: "/metrics",
		logger:      slog.Default(),
		config:      cfg,
		schemes:     make(map[string]bool, len(cfg.AllowedSchemes)),
		version:     "dev",
		started:     time.Now(),
	}
	for _, scheme := range cfg.AllowedSchemes {
		s.schemes[strings.ToLower(scheme)] = true
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle(s.metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/conversions", s.handleCreateConversion).Methods(http.MethodPost)
	api.HandleFunc("/conversions", s.handleListConversions).Methods(http.MethodGet)
	api.HandleFunc("/conversions/{id}", s.handleGetConversion).Methods(http.MethodGet)
	api.HandleFunc("/conversions/{id}", s.handleDeleteConversion).Methods(http.MethodDelete)
	api.HandleFunc("/conversions/{id}/summary", s.handleGetSummary).Methods(http.MethodGet)
	api.HandleFunc("/conversions/{id}/details", s.handleGetDetails).Methods(http.MethodGet)

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				s.writeError(w, http.StatusInternalServerError, "internal server error", "internal")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
