// Copyright 2025 James Ross
package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jrossdev/cogsim/internal/adapter"
	"github.com/jrossdev/cogsim/internal/config"
	"github.com/jrossdev/cogsim/internal/simjob"
	"github.com/jrossdev/cogsim/internal/store"
	"github.com/jrossdev/cogsim/internal/worker"
)

func newTestService(t *testing.T) *Service {
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

	registry := adapter.NewRegistry(adapter.NewCFDDriver(""))
	w := worker.New(cfg, st, registry, zap.NewNop())

	return New(cfg, st, registry, w, zap.NewNop())
}

func TestQueueHappyPath(t *testing.T) {
	s := newTestService(t)

	job, err := s.CreateJob("cfd-driver", map[string]interface{}{"case": "pipe_flow"})
	require.NoError(t, err)

	data, err := json.Marshal(map[string]interface{}{"metrics": map[string]float64{"Cl": 1.0}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(job.Workdir, "metrics.json"), data, 0o644))

	_, err = s.Enqueue(job.JobID, 1)
	require.NoError(t, err)

	res, err := s.RunNextQueued()
	require.NoError(t, err)
	require.Equal(t, worker.StepProcessed, res.Status)

	rec, err := s.QueueStatus(job.JobID)
	require.NoError(t, err)
	require.Equal(t, simjob.StateCompleted, rec.State)
}

func TestCancelWhileRunningForbidden(t *testing.T) {
	s := newTestService(t)

	job, err := s.CreateJob("cfd-driver", map[string]interface{}{})
	require.NoError(t, err)
	_, err = s.Enqueue(job.JobID, 1)
	require.NoError(t, err)

	// Force the record into running, as the scenario directs, bypassing the
	// worker's normal claim path.
	require.NoError(t, s.store.StartJob(job.JobID))

	err = s.Cancel(job.JobID, "operator request")
	require.Error(t, err)
}

func TestReplayDeadResetsAttempts(t *testing.T) {
	s := newTestService(t)

	job, err := s.CreateJob("cfd-driver", map[string]interface{}{})
	require.NoError(t, err)
	_, err = s.Enqueue(job.JobID, 1)
	require.NoError(t, err)
	require.NoError(t, s.store.StartJob(job.JobID))
	require.NoError(t, s.store.FinishJob(job.JobID, simjob.StateDead, "boom"))

	rec, err := s.ReplayDead(job.JobID, 1)
	require.NoError(t, err)
	require.Equal(t, simjob.StateQueued, rec.State)
	require.Equal(t, 0, rec.AttemptCount)
}

func TestPurgeFinished(t *testing.T) {
	s := newTestService(t)

	job, err := s.CreateJob("cfd-driver", map[string]interface{}{})
	require.NoError(t, err)
	_, err = s.Enqueue(job.JobID, 1)
	require.NoError(t, err)
	require.NoError(t, s.store.StartJob(job.JobID))
	require.NoError(t, s.store.FinishJob(job.JobID, simjob.StateCompleted, ""))

	deleted, err := s.PurgeFinished(0)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	_, err = s.QueueStatus(job.JobID)
	require.Error(t, err)
}
