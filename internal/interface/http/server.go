// Package http implements the staff REST API, the public attendance pages and
// the participant portal.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/application/query"
	"github.com/solvera/ojt-core/internal/infrastructure/telemetry"
	"github.com/solvera/ojt-core/internal/interface/http/handlers"
	"github.com/solvera/ojt-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// MaxBodyBytes caps API request bodies.
	MaxBodyBytes int64

	// AllowedOrigins enables CORS when non-empty.
	AllowedOrigins []string

	EnableMetrics bool

	// RateLimitPerMinute is the per-client request budget; 0 disables limiting.
	RateLimitPerMinute int

	APIKeyHeader string
	APIKeys      []string

	// PortalRealm is the Basic auth realm of /my pages.
	PortalRealm string

	// BaseURL makes QR and join links absolute.
	BaseURL string

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       1 << 20,
		EnableMetrics:      true,
		RateLimitPerMinute: 120,
		APIKeyHeader:       "X-API-Key",
		PortalRealm:        "OJT Portal",
		BaseURL:            "http://localhost:8080",
		Version:            "dev",
	}
}

// ConfigFrom builds the server configuration from application config.
func ConfigFrom(app config.AppConfig, h config.HTTPConfig, o config.ObservabilityConfig) Config {
	c := DefaultConfig()
	c.Addr = h.Addr
	c.ReadTimeout = h.ReadTimeout
	c.WriteTimeout = h.WriteTimeout
	c.IdleTimeout = h.IdleTimeout
	c.AllowedOrigins = h.CORSOrigins
	c.RateLimitPerMinute = h.RateLimit
	c.APIKeys = h.APIKeys
	c.PortalRealm = h.PortalRealm
	c.EnableMetrics = o.MetricsEnabled
	c.BaseURL = app.BaseURL
	c.Version = app.Version
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all handlers and services needed by the server.
type Dependencies struct {
	Commands *command.Handlers
	Queries  *query.Queries

	// Authenticator verifies portal logins. Without it /my answers 401.
	Authenticator handlers.Authenticator

	HealthChecker handlers.HealthChecker
	Metrics       *telemetry.Metrics
	Features      *config.FeatureFlags
	Logger        *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP server.
type Server struct {
	config      Config
	deps        Dependencies
	httpServer  *http.Server
	router      *chi.Mux
	logger      *logger.Logger
	rateLimiter *handlers.RateLimiter
	pages       *pages

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Commands == nil || deps.Queries == nil {
		return nil, errors.New("http: commands and queries are required")
	}
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	s.pages = p

	if cfg.RateLimitPerMinute > 0 {
		s.rateLimiter = handlers.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handlers.RequestLogger(s.logger))
	r.Use(handlers.Recoverer(s.logger, writeJSONError))
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(handlers.CORS(s.config.AllowedOrigins))
	}
	r.Use(s.deps.Metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)
	if s.config.EnableMetrics {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Public attendance pages (token is the credential)
	// ─────────────────────────────────────────────────────────────────────────
	r.Route("/ojt", func(r chi.Router) {
		r.Use(s.limit)
		r.Use(handlers.SecurityHeadersMiddleware)
		r.Use(handlers.NoCacheMiddleware)
		r.Get("/q/{token}", s.handleQRCheckIn)
		r.Get("/a/{token}", s.handleJoinCheckIn)
		r.Get("/qrimg/{token}", s.handleQRImage)
		r.Get("/qrpng/{token}", s.handleQRPNG)
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Participant portal (HTTP Basic)
	// ─────────────────────────────────────────────────────────────────────────
	r.Route("/my", func(r chi.Router) {
		r.Use(s.limit)
		r.Use(handlers.SecurityHeadersMiddleware)
		r.Use(handlers.NewBasicAuth(s.deps.Authenticator, s.config.PortalRealm, s.logger).Middleware)
		r.Get("/ojt", s.handlePortalDashboard)
		r.Get("/ojt/participant/{id}", s.handlePortalParticipant)
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Staff API v1 (API key)
	// ─────────────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(handlers.NewAPIKeyAuth(s.config.APIKeyHeader, s.config.APIKeys, writeJSONError).Middleware)
		r.Use(handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes, writeJSONError))

		r.Route("/batches", func(r chi.Router) {
			r.Get("/", s.handleListBatches)
			r.Post("/", s.handleCreateBatch)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetBatch)
				r.Patch("/", s.handleUpdateBatch)
				r.Post("/state", s.handleChangeBatchState)
				r.Post("/publish", s.handlePublishBatch)
				r.Get("/participants", s.handleListParticipants)
				r.Post("/participants", s.handleEnrollParticipant)
				r.Get("/event-links", s.handleListEventLinks)
				r.Post("/event-links", s.handleCreateEventLink)
				r.Post("/assignments", s.handleCreateAssignment)
				r.Post("/certificates", s.handleIssueBatchCertificates)
			})
		})

		r.Patch("/jobs/{id}", s.handleUpdateJob)
		r.Post("/applicants/{id}/stage", s.handleMoveApplicantStage)

		r.Route("/participants/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetParticipant)
			r.Post("/state", s.handleSetParticipantState)
			r.Post("/batch", s.handleChangeParticipantBatch)
			r.Post("/mentor-score", s.handleSetMentorScore)
			r.Post("/recompute", s.handleRecomputeMetrics)
			r.Post("/certificate", s.handleIssueCertificate)
		})

		r.Route("/event-links/{id}", func(r chi.Router) {
			r.Patch("/", s.handleUpdateEventLink)
			r.Get("/attendance", s.handleListSessionAttendance)
			r.Post("/attendance", s.handleGenerateAttendance)
		})

		r.Route("/assignments/{id}", func(r chi.Router) {
			r.Get("/", s.handleAssignmentOverview)
			r.Post("/state", s.handleChangeAssignmentState)
			r.Post("/submissions", s.handleCreateSubmission)
		})

		r.Post("/submissions/{id}/submit", s.handleSubmitSubmission)
		r.Post("/submissions/{id}/score", s.handleScoreSubmission)

		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", s.handleListAttendance)
			r.Post("/check-in", s.handleAPICheckIn)
			r.Post("/auto-absent", s.handleAutoAbsent)
			r.Post("/auto-checkout", s.handleAutoCheckout)
			r.Post("/{id}/check-out", s.handleCheckOut)
			r.Patch("/{id}", s.handleManualAttendance)
		})
	})

	return r
}

// limit applies the per-client rate limit to the public surfaces.
func (s *Server) limit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}
	return s.rateLimiter.Middleware(writeJSONError)(next)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "OJT Core API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":  "/health",
			"api":     "/api/v1",
			"portal":  "/my/ojt",
			"metrics": "/metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"uptime":  s.Uptime().String(),
			"version": s.config.Version,
		})
		return
	}
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSONErrorWithDetails(w, r, http.StatusServiceUnavailable, "not_ready", status.Message, status.Checks)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
