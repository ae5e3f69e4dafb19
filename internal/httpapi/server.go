// Copyright 2025 James Ross
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jrossdev/cogsim/internal/config"
	"github.com/jrossdev/cogsim/internal/service"
)

// Server is the HTTP control plane over a Service.
type Server struct {
	cfg      *config.Config
	svc      *service.Service
	logger   *zap.Logger
	server   *http.Server
	auditLog *AuditLogger
}

func NewServer(cfg *config.Config, svc *service.Service, logger *zap.Logger) (*Server, error) {
	var auditLog *AuditLogger
	if cfg.HTTP.AuditEnabled {
		var err error
		auditLog, err = NewAuditLogger(cfg.HTTP.AuditLogPath, cfg.HTTP.AuditMaxSizeMB, cfg.HTTP.AuditMaxBackups)
		if err != nil {
			return nil, err
		}
	}

	return &Server{cfg: cfg, svc: svc, logger: logger, auditLog: auditLog}, nil
}

// Start blocks serving on cfg.HTTP.ListenAddr until the server shuts down.
func (s *Server) Start() error {
	handler := s.applyMiddleware(s.setupRoutes())

	s.server = &http.Server{
		Addr:         s.cfg.HTTP.ListenAddr,
		Handler:      handler,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}

	s.logger.Info("starting http server",
		zap.String("addr", s.cfg.HTTP.ListenAddr),
		zap.Bool("auth_enabled", s.cfg.HTTP.APIKey != ""),
		zap.Bool("rate_limit_enabled", s.cfg.HTTP.RateLimitEnabled))

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and closes the audit log.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.auditLog != nil {
		_ = s.auditLog.Close()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler returns the fully wired handler, exported for testing.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

func (s *Server) setupRoutes() http.Handler {
	r := mux.NewRouter()
	h := NewHandler(s.svc, s.logger)

	r.HandleFunc("/jobs", h.CreateJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/run", h.RunJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/enqueue", h.EnqueueJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}", h.GetJobDetail).Methods(http.MethodGet)

	r.HandleFunc("/queue/run-next", h.RunNextQueued).Methods(http.MethodPost)
	r.HandleFunc("/queue/purge", h.PurgeQueue).Methods(http.MethodPost)
	r.HandleFunc("/queue/{id}/cancel", h.CancelJob).Methods(http.MethodPost)
	r.HandleFunc("/queue/{id}/replay", h.ReplayDead).Methods(http.MethodPost)
	r.HandleFunc("/queue/{id}", h.QueueStatus).Methods(http.MethodGet)

	r.HandleFunc("/experiments/suggest", h.Suggest).Methods(http.MethodPost)

	r.HandleFunc("/health/live", h.HealthLive).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", h.HealthReady).Methods(http.MethodGet)
	r.HandleFunc("/health/backends", h.HealthBackends).Methods(http.MethodGet)

	r.HandleFunc("/summary", h.Summary).Methods(http.MethodGet)
	r.HandleFunc("/config/effective", h.ConfigEffective).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
	})

	return r
}

// applyMiddleware chains recovery, request-id, audit, rate-limit and auth,
// outermost first, so a panic or an audited request always sees the final
// response status before the chain unwinds.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	if s.cfg.HTTP.APIKey != "" {
		handler = AuthMiddleware(s.cfg.HTTP.APIKey)(handler)
	}
	if s.cfg.HTTP.RateLimitEnabled {
		handler = RateLimitMiddleware(s.cfg.HTTP.RateLimitMax, s.cfg.HTTP.RateLimitWindow)(handler)
	}
	if s.cfg.HTTP.AuditEnabled && s.auditLog != nil {
		handler = AuditMiddleware(s.auditLog, s.logger)(handler)
	}

	handler = RequestIDMiddleware()(handler)
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}
