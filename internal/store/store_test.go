// Copyright 2025 James Ross
package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrossdev/cogsim/internal/simjob"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service.db")
	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedJob(t *testing.T, s *Store, jobID, backend string) {
	t.Helper()
	require.NoError(t, s.UpsertJob(simjob.Job{
		JobID:     jobID,
		Backend:   backend,
		Workdir:   "/tmp/" + jobID,
		Inputs:    map[string]interface{}{"case": "pipe_flow"},
		CreatedAt: time.Now().UTC(),
	}))
}

func TestEnqueueStartFinishHappyPath(t *testing.T) {
	s := newTestStore(t)
	seedJob(t, s, "job-aaaaaaaa", "cfd-driver")

	require.NoError(t, s.Enqueue("job-aaaaaaaa", 1))
	next, err := s.NextQueuedJobID()
	require.NoError(t, err)
	require.Equal(t, "job-aaaaaaaa", next)

	require.NoError(t, s.StartJob("job-aaaaaaaa"))
	rec, err := s.QueueState("job-aaaaaaaa")
	require.NoError(t, err)
	require.Equal(t, simjob.StateRunning, rec.State)
	require.Equal(t, 1, rec.AttemptCount)

	require.NoError(t, s.FinishJob("job-aaaaaaaa", simjob.StateCompleted, ""))
	rec, err = s.QueueState("job-aaaaaaaa")
	require.NoError(t, err)
	require.Equal(t, simjob.StateCompleted, rec.State)
	require.NotNil(t, rec.FinishedAt)
}

func TestRetryThenDead(t *testing.T) {
	s := newTestStore(t)
	seedJob(t, s, "job-bbbbbbbb", "cfd-driver")
	require.NoError(t, s.Enqueue("job-bbbbbbbb", 2))

	require.NoError(t, s.StartJob("job-bbbbbbbb"))
	retry, err := s.ShouldRetry("job-bbbbbbbb")
	require.NoError(t, err)
	require.True(t, retry)
	require.NoError(t, s.RequeueForRetry("job-bbbbbbbb", "boom"))

	require.NoError(t, s.StartJob("job-bbbbbbbb"))
	retry, err = s.ShouldRetry("job-bbbbbbbb")
	require.NoError(t, err)
	require.False(t, retry)
	require.NoError(t, s.FinishJob("job-bbbbbbbb", simjob.StateDead, "boom"))

	rec, err := s.QueueState("job-bbbbbbbb")
	require.NoError(t, err)
	require.Equal(t, simjob.StateDead, rec.State)
	require.Equal(t, 2, rec.AttemptCount)
}

func TestReplayDeadResetsAttempts(t *testing.T) {
	s := newTestStore(t)
	seedJob(t, s, "job-cccccccc", "cfd-driver")
	require.NoError(t, s.Enqueue("job-cccccccc", 1))
	require.NoError(t, s.StartJob("job-cccccccc"))
	require.NoError(t, s.FinishJob("job-cccccccc", simjob.StateDead, "boom"))

	require.NoError(t, s.ReplayDead("job-cccccccc", 1))
	rec, err := s.QueueState("job-cccccccc")
	require.NoError(t, err)
	require.Equal(t, simjob.StateQueued, rec.State)
	require.Equal(t, 0, rec.AttemptCount)

	err = s.ReplayDead("job-cccccccc", 1)
	require.Error(t, err, "replay must fail when the record is not dead")
}

func TestClaimNextQueuedIsExclusive(t *testing.T) {
	s := newTestStore(t)
	seedJob(t, s, "job-dddddddd", "cfd-driver")
	require.NoError(t, s.Enqueue("job-dddddddd", 1))

	first, err := s.ClaimNextQueued()
	require.NoError(t, err)
	require.Equal(t, "job-dddddddd", first)

	second, err := s.ClaimNextQueued()
	require.NoError(t, err)
	require.Empty(t, second, "a claimed job must not be claimable again")
}

func TestPurgeFinishedKeepsLatestAndDeletesCascade(t *testing.T) {
	s := newTestStore(t)
	for i, id := range []string{"job-11111111", "job-22222222", "job-33333333"} {
		seedJob(t, s, id, "cfd-driver")
		require.NoError(t, s.Enqueue(id, 1))
		require.NoError(t, s.StartJob(id))
		require.NoError(t, s.FinishJob(id, simjob.StateCompleted, ""))
		_ = i
	}

	deleted, err := s.PurgeFinished(1)
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	rec, err := s.QueueState("job-33333333")
	require.NoError(t, err)
	require.NotNil(t, rec, "most recent terminal record must survive purge")

	job, err := s.GetJob("job-11111111")
	require.NoError(t, err)
	require.Nil(t, job, "evicted job row must be deleted")
}
