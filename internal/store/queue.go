// Copyright 2025 James Ross
package store

import (
	"database/sql"
	"time"

	"github.com/jrossdev/cogsim/internal/errs"
	"github.com/jrossdev/cogsim/internal/simjob"
)

// Enqueue inserts or resets a QueueRecord to state=queued with a fresh
// attempt budget. max_attempts is clamped to max(1, n).
func (s *Store) Enqueue(jobID string, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	now := time.Now().UTC()
	_, err := s.write.Exec(
		`INSERT INTO queue (job_id, state, error, attempt_count, max_attempts, enqueued_at, started_at, finished_at)
		 VALUES (?, 'queued', NULL, 0, ?, ?, NULL, NULL)
		 ON CONFLICT(job_id) DO UPDATE SET state='queued', error=NULL, attempt_count=0,
		   max_attempts=excluded.max_attempts, enqueued_at=excluded.enqueued_at, started_at=NULL, finished_at=NULL`,
		jobID, maxAttempts, now,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "ENQUEUE_FAILED", "insert queue record", err)
	}
	return nil
}

// StartJob transitions a queued record to running, incrementing the
// attempt counter. Must only be called when the prior state was queued.
func (s *Store) StartJob(jobID string) error {
	now := time.Now().UTC()
	res, err := s.write.Exec(
		`UPDATE queue SET state='running', started_at=?, error=NULL, attempt_count=attempt_count+1
		 WHERE job_id = ? AND state = 'queued'`,
		now, jobID,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "START_JOB_FAILED", "update queue record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, "START_JOB_FAILED", "rows affected", err)
	}
	if n == 0 {
		return errs.StateConflictf("START_JOB_FAILED", "job %s is not queued", jobID)
	}
	return nil
}

// FinishJob writes a terminal state. Preserved permissive per the design
// notes: no guard on the prior state, so cancel/purge flows never get
// rejected here, but callers should treat unusual transitions (finishing a
// record that was not running) as worth a warning log.
func (s *Store) FinishJob(jobID string, state simjob.QueueState, errMsg string) error {
	now := time.Now().UTC()
	res, err := s.write.Exec(
		`UPDATE queue SET state=?, error=?, finished_at=? WHERE job_id = ?`,
		string(state), nullString(errMsg), now, jobID,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "FINISH_JOB_FAILED", "update queue record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, "FINISH_JOB_FAILED", "rows affected", err)
	}
	if n == 0 {
		return errs.NotFoundf("FINISH_JOB_FAILED", "no queue record for job %s", jobID)
	}
	return nil
}

// ShouldRetry reports whether attempt_count is still under max_attempts.
func (s *Store) ShouldRetry(jobID string) (bool, error) {
	var attempt, max int
	err := s.read.QueryRow(`SELECT attempt_count, max_attempts FROM queue WHERE job_id = ?`, jobID).Scan(&attempt, &max)
	if err == sql.ErrNoRows {
		return false, errs.NotFoundf("SHOULD_RETRY_FAILED", "no queue record for job %s", jobID)
	}
	if err != nil {
		return false, errs.Wrap(errs.Internal, "SHOULD_RETRY_FAILED", "query queue record", err)
	}
	return attempt < max, nil
}

// RequeueForRetry moves a record back to queued, preserving attempt_count
// and recording the failure reason.
func (s *Store) RequeueForRetry(jobID string, errMsg string) error {
	now := time.Now().UTC()
	res, err := s.write.Exec(
		`UPDATE queue SET state='queued', enqueued_at=?, started_at=NULL, finished_at=NULL, error=?
		 WHERE job_id = ?`,
		now, nullString(errMsg), jobID,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "REQUEUE_FAILED", "update queue record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, "REQUEUE_FAILED", "rows affected", err)
	}
	if n == 0 {
		return errs.NotFoundf("REQUEUE_FAILED", "no queue record for job %s", jobID)
	}
	return nil
}

// Cancel forces a terminal cancelled state regardless of the prior state.
// The service facade is responsible for forbidding cancel while running.
func (s *Store) Cancel(jobID, reason string) error {
	now := time.Now().UTC()
	res, err := s.write.Exec(
		`UPDATE queue SET state='cancelled', error=?, finished_at=? WHERE job_id = ?`,
		nullString(reason), now, jobID,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "CANCEL_FAILED", "update queue record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, "CANCEL_FAILED", "rows affected", err)
	}
	if n == 0 {
		return errs.NotFoundf("CANCEL_FAILED", "no queue record for job %s", jobID)
	}
	return nil
}

// ReplayDead resets a dead record to queued with a fresh attempt budget.
// Only succeeds when the prior state is dead.
func (s *Store) ReplayDead(jobID string, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	now := time.Now().UTC()
	res, err := s.write.Exec(
		`UPDATE queue SET state='queued', attempt_count=0, max_attempts=?, error=NULL,
		   enqueued_at=?, started_at=NULL, finished_at=NULL
		 WHERE job_id = ? AND state = 'dead'`,
		maxAttempts, now, jobID,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "REPLAY_FAILED", "update queue record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, "REPLAY_FAILED", "rows affected", err)
	}
	if n == 0 {
		return errs.StateConflictf("REPLAY_FAILED", "job %s is not dead", jobID)
	}
	return nil
}

// NextQueuedJobID returns the queued job with the oldest enqueued_at, or ""
// when none exists.
func (s *Store) NextQueuedJobID() (string, error) {
	var jobID string
	err := s.read.QueryRow(
		`SELECT job_id FROM queue WHERE state = 'queued' ORDER BY enqueued_at ASC, rowid ASC LIMIT 1`,
	).Scan(&jobID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.Internal, "NEXT_QUEUED_FAILED", "query queue", err)
	}
	return jobID, nil
}

// ClaimNextQueued atomically picks the oldest queued job and transitions it
// to running in a single write transaction, so concurrent workers never
// observe and claim the same job.
func (s *Store) ClaimNextQueued() (string, error) {
	tx, err := s.write.Begin()
	if err != nil {
		return "", errs.Wrap(errs.Internal, "CLAIM_FAILED", "begin tx", err)
	}
	defer tx.Rollback()

	var jobID string
	err = tx.QueryRow(
		`SELECT job_id FROM queue WHERE state = 'queued' ORDER BY enqueued_at ASC, rowid ASC LIMIT 1`,
	).Scan(&jobID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.Internal, "CLAIM_FAILED", "select candidate", err)
	}

	now := time.Now().UTC()
	res, err := tx.Exec(
		`UPDATE queue SET state='running', started_at=?, error=NULL, attempt_count=attempt_count+1
		 WHERE job_id = ? AND state = 'queued'`,
		now, jobID,
	)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "CLAIM_FAILED", "claim candidate", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", errs.Wrap(errs.Internal, "CLAIM_FAILED", "rows affected", err)
	}
	if n == 0 {
		// Lost a race within the same process (shouldn't happen given
		// SetMaxOpenConns(1), but stay defensive for future multi-writer use).
		return "", nil
	}
	if err := tx.Commit(); err != nil {
		return "", errs.Wrap(errs.Internal, "CLAIM_FAILED", "commit", err)
	}
	return jobID, nil
}

// QueueState returns nil, nil when no queue record exists for jobID.
func (s *Store) QueueState(jobID string) (*simjob.QueueRecord, error) {
	var rec simjob.QueueRecord
	var state string
	var errStr sql.NullString
	var started, finished sql.NullTime
	err := s.read.QueryRow(
		`SELECT job_id, state, error, attempt_count, max_attempts, enqueued_at, started_at, finished_at FROM queue WHERE job_id = ?`,
		jobID,
	).Scan(&rec.JobID, &state, &errStr, &rec.AttemptCount, &rec.MaxAttempts, &rec.EnqueuedAt, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "QUEUE_STATE_FAILED", "query queue record", err)
	}
	rec.State = simjob.QueueState(state)
	rec.Error = errStr.String
	if started.Valid {
		rec.StartedAt = &started.Time
	}
	if finished.Valid {
		rec.FinishedAt = &finished.Time
	}
	return &rec, nil
}

// ReclaimStuck flips running records whose started_at predates the cutoff
// back to queued, crediting it as a consumed attempt already (StartJob
// already incremented attempt_count when the job began running, so this
// does not double-count). Returns the number reclaimed.
func (s *Store) ReclaimStuck(cutoff time.Time) (int, error) {
	now := time.Now().UTC()
	res, err := s.write.Exec(
		`UPDATE queue SET state='queued', enqueued_at=?, started_at=NULL
		 WHERE state = 'running' AND started_at < ?`,
		now, cutoff,
	)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "RECLAIM_FAILED", "reclaim stuck records", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "RECLAIM_FAILED", "rows affected", err)
	}
	return int(n), nil
}

// PurgeFinished retains the keepLatest most recent terminal records
// (ordered by coalesce(finished_at, enqueued_at) descending); for every
// evicted record it also deletes the Job and Result. Returns the count
// deleted.
func (s *Store) PurgeFinished(keepLatest int) (int, error) {
	if keepLatest < 0 {
		keepLatest = 0
	}
	tx, err := s.write.Begin()
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "PURGE_FAILED", "begin tx", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT job_id FROM queue
		 WHERE state IN ('completed', 'failed', 'dead', 'cancelled')
		 ORDER BY COALESCE(finished_at, enqueued_at) DESC`,
	)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "PURGE_FAILED", "select terminal records", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, errs.Wrap(errs.Internal, "PURGE_FAILED", "scan job id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	if len(ids) <= keepLatest {
		return 0, tx.Commit()
	}
	evict := ids[keepLatest:]

	deleted := 0
	for _, id := range evict {
		if _, err := tx.Exec(`DELETE FROM queue WHERE job_id = ?`, id); err != nil {
			return 0, errs.Wrap(errs.Internal, "PURGE_FAILED", "delete queue record", err)
		}
		if _, err := tx.Exec(`DELETE FROM results WHERE job_id = ?`, id); err != nil {
			return 0, errs.Wrap(errs.Internal, "PURGE_FAILED", "delete result", err)
		}
		if _, err := tx.Exec(`DELETE FROM jobs WHERE job_id = ?`, id); err != nil {
			return 0, errs.Wrap(errs.Internal, "PURGE_FAILED", "delete job", err)
		}
		deleted++
	}
	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.Internal, "PURGE_FAILED", "commit", err)
	}
	return deleted, nil
}
