// Package server exposes the chat API over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/fretlab/guitar-mastery/internal/config"
	"github.com/fretlab/guitar-mastery/internal/middleware"
	"github.com/fretlab/guitar-mastery/internal/orchestrator"
	"github.com/fretlab/guitar-mastery/internal/routing"
	"github.com/fretlab/guitar-mastery/internal/security"
	"github.com/fretlab/guitar-mastery/internal/store"
)

// CatalogAgent is the read-only agent surface the API publishes.
type CatalogAgent interface {
	Name() string
	Role() string
	Provider() string
	ToolNames() []string
}

// Server wires the coordinator, session store, and middleware stack into an
// HTTP server. When coordinator is nil the server runs in routing-only mode:
// messages are classified and the decision is returned, but no agent runs.
type Server struct {
	coordinator *orchestrator.Coordinator
	sessions    *orchestrator.SessionStore
	classifier  *routing.Classifier
	catalog     []CatalogAgent
	store       *store.Store
	stack       *middleware.Stack
	cfg         *config.Config
	logger      *logrus.Logger
	httpServer  *http.Server
}

// New creates a server over the given components.
func New(
	cfg *config.Config,
	coordinator *orchestrator.Coordinator,
	sessions *orchestrator.SessionStore,
	classifier *routing.Classifier,
	catalog []CatalogAgent,
	st *store.Store,
	logger *logrus.Logger,
) *Server {
	stack := middleware.NewStack(&middleware.StackConfig{
		Auth: &security.AuthConfig{
			APIKeys:   cfg.Security.APIKeys,
			JWTSecret: cfg.Security.JWTSecret,
		},
		RateLimit: &security.RateLimitConfig{
			Enabled:           cfg.Security.RateLimiting.Enabled,
			RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMin,
			BurstSize:         cfg.Security.RateLimiting.BurstSize,
		},
		Validation: &security.ValidationConfig{
			MaxRequestSize:   cfg.Security.RequestValidation.MaxRequestSize,
			MaxMessageLength: cfg.Security.RequestValidation.MaxMessageLength,
		},
		Audit: &security.AuditConfig{Enabled: true},
		CORS: &middleware.CORSConfig{
			AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
			AllowedMethods: cfg.Security.CORS.AllowedMethods,
			AllowedHeaders: cfg.Security.CORS.AllowedHeaders,
		},
	}, logger)

	return &Server{
		coordinator: coordinator,
		sessions:    sessions,
		classifier:  classifier,
		catalog:     catalog,
		store:       st,
		stack:       stack,
		cfg:         cfg,
		logger:      logger,
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:           s.cfg.Addr(),
		Handler:        s.Routes(),
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}

	s.logger.WithFields(logrus.Fields{
		"addr":         s.cfg.Addr(),
		"routing_only": s.coordinator == nil,
	}).Info("Starting chat server")

	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping chat server")
	s.stack.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Routes builds the full route table with middleware applied.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/chat", s.handleChat).Methods("POST")
	api.HandleFunc("/chat/agents", s.handleListAgents).Methods("GET")
	api.HandleFunc("/chat/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/chat/classify", s.handleClassify).Methods("POST")
	api.HandleFunc("/admin/health", s.handleAdminHealth).Methods("GET")
	api.HandleFunc("/admin/config", s.handleAdminConfig).Methods("GET")
	api.HandleFunc("/admin/token", s.handleIssueToken).Methods("POST")

	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	return s.stack.Handler()(r)
}

// startTime anchors the uptime reported by the health endpoints.
var startTime = time.Now()
