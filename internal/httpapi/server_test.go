// Copyright 2025 James Ross
package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jrossdev/cogsim/internal/adapter"
	"github.com/jrossdev/cogsim/internal/config"
	"github.com/jrossdev/cogsim/internal/service"
	"github.com/jrossdev/cogsim/internal/simjob"
	"github.com/jrossdev/cogsim/internal/store"
	"github.com/jrossdev/cogsim/internal/worker"
)

func newTestServer(t *testing.T) (*Server, *service.Service) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{}
	cfg.Adapters.Workdir = filepath.Join(dir, "jobs")
	cfg.Worker.Count = 1
	cfg.Worker.DefaultAttempts = 3
	cfg.Worker.IdlePollMin = 10 * time.Millisecond
	cfg.Worker.IdlePollMax = 50 * time.Millisecond
	cfg.Worker.StuckThreshold = time.Minute
	cfg.CircuitBreaker = config.CircuitBreaker{FailureThreshold: 0.9, Window: time.Minute, CooldownPeriod: time.Second, MinSamples: 100}
	cfg.Engine.MemoryPath = filepath.Join(dir, "memory.jsonl")
	cfg.HTTP.ListenAddr = ":0"
	cfg.HTTP.ReadTimeout = 5 * time.Second
	cfg.HTTP.WriteTimeout = 5 * time.Second
	cfg.HTTP.RateLimitEnabled = false
	cfg.HTTP.AuditEnabled = false

	registry := adapter.NewRegistry(adapter.NewCFDDriver(""))
	w := worker.New(cfg, st, registry, zap.NewNop())
	svc := service.New(cfg, st, registry, w, zap.NewNop())

	srv, err := NewServer(cfg, svc, zap.NewNop())
	require.NoError(t, err)
	return srv, svc
}

func TestCreateJobAndQueueHappyPath(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	body, _ := json.Marshal(map[string]interface{}{"backend": "cfd-driver", "inputs": map[string]interface{}{"case": "pipe_flow"}})
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var job simjob.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	require.NotEmpty(t, job.JobID)
}

func TestAuthMiddlewareRejectsMissingKey(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.cfg.HTTP.APIKey = "secret"
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCancelUnknownJobReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/queue/does-not-exist/cancel?reason=operator", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "QUEUE_NOT_FOUND", env.Error.Code)
}
