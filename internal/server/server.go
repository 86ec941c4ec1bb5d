// Package server provides the HTTP status surface for the mirror.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/requestmirror/internal/database"
	"github.com/aristath/requestmirror/internal/events"
	"github.com/aristath/requestmirror/internal/queue"
	"github.com/aristath/requestmirror/internal/work"
)

// StatusProvider exposes the worker's last published snapshot.
type StatusProvider interface {
	Snapshot() *work.Snapshot
	SkippedTicks() uint64
}

// TaskLister lists pending tasks in execution order.
type TaskLister interface {
	Pending() []queue.Task
}

// MirrorCounter reports how many requests are mirrored per track.
type MirrorCounter interface {
	CountByTrack() (map[string]int, error)
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Port     int
	DevMode  bool
	DataDir  string
	DB       *database.DB
	Status   StatusProvider
	Queue    TaskLister
	Requests MirrorCounter
	Metrics  http.Handler
	Bus      *events.Bus
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	statusHandlers *StatusHandlers
	systemHandlers *SystemHandlers
	eventsStream   *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.statusHandlers = NewStatusHandlers(cfg.Status, cfg.Queue, cfg.Requests, cfg.Log)
	s.systemHandlers = NewSystemHandlers(cfg.DB, cfg.Status, cfg.DataDir, cfg.Log)
	if cfg.Bus != nil {
		s.eventsStream = NewEventsStreamHandler(cfg.Bus, cfg.Log)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream holds its connection open.
		// REST routes are bounded by the Timeout middleware instead.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Long-lived stream, outside the timeout and compression group
	if s.eventsStream != nil {
		s.router.Get("/api/events/ws", s.eventsStream.ServeHTTP)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !s.cfg.DevMode {
			r.Use(middleware.Compress(5))
		}

		r.Get("/health", s.handleHealth)
		if s.cfg.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", s.statusHandlers.HandleStatus)
			r.Get("/tracks", s.statusHandlers.HandleTracks)
			r.Get("/queue", s.statusHandlers.HandleQueue)
			r.Get("/system", s.systemHandlers.HandleSystemStatus)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth reports liveness and database reachability
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if s.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.DB.QuickCheck(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Health check: database unreachable")
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]string{"status": status})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
