// Copyright 2025 James Ross
package worker

import (
	"context"
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
)

func newTestWorker(t *testing.T, registry *adapter.Registry) (*Worker, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{}
	cfg.Worker.Count = 1
	cfg.Worker.IdlePollMin = 10 * time.Millisecond
	cfg.Worker.IdlePollMax = 50 * time.Millisecond
	cfg.Worker.StuckThreshold = time.Minute
	cfg.CircuitBreaker = config.CircuitBreaker{FailureThreshold: 0.9, Window: time.Minute, CooldownPeriod: time.Second, MinSamples: 100}

	w := New(cfg, st, registry, zap.NewNop())
	return w, st
}

func writeMetrics(t *testing.T, workdir string, metrics map[string]float64) {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"metrics": metrics})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "metrics.json"), data, 0o644))
}

func TestRunNextQueuedIdleOnEmptyQueue(t *testing.T) {
	registry := adapter.NewRegistry(adapter.NewCFDDriver(""))
	w, _ := newTestWorker(t, registry)
	res, err := w.RunNextQueued(context.Background())
	require.NoError(t, err)
	require.Equal(t, StepIdle, res.Status)
}

func TestRunNextQueuedProcessesPreseededMetrics(t *testing.T) {
	a := adapter.NewCFDDriver("")
	registry := adapter.NewRegistry(a)
	w, st := newTestWorker(t, registry)

	job, err := a.CreateJob("job-eeeeeeee", t.TempDir(), map[string]interface{}{"case": "pipe_flow"})
	require.NoError(t, err)
	writeMetrics(t, job.Workdir, map[string]float64{"Cl": 1.0})

	require.NoError(t, st.UpsertJob(job))
	require.NoError(t, st.Enqueue(job.JobID, 1))

	res, err := w.RunNextQueued(context.Background())
	require.NoError(t, err)
	require.Equal(t, StepProcessed, res.Status)

	rec, err := st.QueueState(job.JobID)
	require.NoError(t, err)
	require.Equal(t, simjob.StateCompleted, rec.State)
}

func TestRunNextQueuedRetriesThenDeadLetters(t *testing.T) {
	a := adapter.NewSU2Driver()
	registry := adapter.NewRegistry(a)
	w, st := newTestWorker(t, registry)

	job, err := a.CreateJob("job-ffffffff", t.TempDir(), map[string]interface{}{})
	require.NoError(t, err)
	t.Setenv("SU2_CMD", "definitely-not-a-real-executable-xyz")

	require.NoError(t, st.UpsertJob(job))
	require.NoError(t, st.Enqueue(job.JobID, 2))

	res, err := w.RunNextQueued(context.Background())
	require.NoError(t, err)
	require.Equal(t, StepRequeued, res.Status)

	res, err = w.RunNextQueued(context.Background())
	require.NoError(t, err)
	require.Equal(t, StepDead, res.Status)

	rec, err := st.QueueState(job.JobID)
	require.NoError(t, err)
	require.Equal(t, simjob.StateDead, rec.State)
	require.Equal(t, 2, rec.AttemptCount)
}
