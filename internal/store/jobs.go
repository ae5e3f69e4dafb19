// Copyright 2025 James Ross
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jrossdev/cogsim/internal/errs"
	"github.com/jrossdev/cogsim/internal/simjob"
)

// UpsertJob inserts or replaces a job row by primary key.
func (s *Store) UpsertJob(job simjob.Job) error {
	inputs, err := json.Marshal(job.Inputs)
	if err != nil {
		return errs.Wrap(errs.Internal, "UPSERT_JOB_FAILED", "marshal inputs", err)
	}
	_, err = s.write.Exec(
		`INSERT INTO jobs (job_id, backend, workdir, inputs, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET backend=excluded.backend, workdir=excluded.workdir, inputs=excluded.inputs, created_at=excluded.created_at`,
		job.JobID, job.Backend, job.Workdir, string(inputs), job.CreatedAt,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "UPSERT_JOB_FAILED", "insert job", err)
	}
	return nil
}

// GetJob returns nil, nil when no such job exists.
func (s *Store) GetJob(jobID string) (*simjob.Job, error) {
	var job simjob.Job
	var inputs string
	err := s.read.QueryRow(
		`SELECT job_id, backend, workdir, inputs, created_at FROM jobs WHERE job_id = ?`, jobID,
	).Scan(&job.JobID, &job.Backend, &job.Workdir, &inputs, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "GET_JOB_FAILED", "query job", err)
	}
	if err := json.Unmarshal([]byte(inputs), &job.Inputs); err != nil {
		return nil, errs.Wrap(errs.Internal, "GET_JOB_FAILED", "unmarshal inputs", err)
	}
	return &job, nil
}

// ListJobs returns the limit most recently created jobs, left-joined with
// their result status (defaulting to "queued" when no result row exists).
func (s *Store) ListJobs(limit int) ([]simjob.JobSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.read.Query(
		`SELECT j.job_id, j.backend, j.created_at,
		        COALESCE(r.status, 'queued') AS status,
		        COALESCE(r.updated_at, j.created_at) AS updated_at
		 FROM jobs j LEFT JOIN results r ON r.job_id = j.job_id
		 ORDER BY j.created_at DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "LIST_JOBS_FAILED", "query jobs", err)
	}
	defer rows.Close()

	var out []simjob.JobSummary
	for rows.Next() {
		var js simjob.JobSummary
		if err := rows.Scan(&js.JobID, &js.Backend, &js.CreatedAt, &js.Status, &js.UpdatedAt); err != nil {
			return nil, errs.Wrap(errs.Internal, "LIST_JOBS_FAILED", "scan job", err)
		}
		out = append(out, js)
	}
	return out, rows.Err()
}

// UpsertResult inserts or replaces a result row by primary key. A retry
// overwrites the prior result, per the data model's lifecycle rule.
func (s *Store) UpsertResult(res simjob.Result) error {
	metrics, err := json.Marshal(res.Metrics)
	if err != nil {
		return errs.Wrap(errs.Internal, "UPSERT_RESULT_FAILED", "marshal metrics", err)
	}
	artifacts, err := json.Marshal(res.Artifacts)
	if err != nil {
		return errs.Wrap(errs.Internal, "UPSERT_RESULT_FAILED", "marshal artifacts", err)
	}
	logs, err := json.Marshal(res.Logs)
	if err != nil {
		return errs.Wrap(errs.Internal, "UPSERT_RESULT_FAILED", "marshal logs", err)
	}
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = time.Now().UTC()
	}
	_, err = s.write.Exec(
		`INSERT INTO results (job_id, status, metrics, artifacts, logs, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET status=excluded.status, metrics=excluded.metrics,
		   artifacts=excluded.artifacts, logs=excluded.logs, error=excluded.error, updated_at=excluded.updated_at`,
		res.JobID, string(res.Status), string(metrics), string(artifacts), string(logs), nullString(res.Error), res.UpdatedAt,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "UPSERT_RESULT_FAILED", "insert result", err)
	}
	return nil
}

// GetResult returns nil, nil when no result has been written for jobID.
func (s *Store) GetResult(jobID string) (*simjob.Result, error) {
	var res simjob.Result
	var metrics, artifacts, logs string
	var errStr sql.NullString
	err := s.read.QueryRow(
		`SELECT job_id, status, metrics, artifacts, logs, error, updated_at FROM results WHERE job_id = ?`, jobID,
	).Scan(&res.JobID, &res.Status, &metrics, &artifacts, &logs, &errStr, &res.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "GET_RESULT_FAILED", "query result", err)
	}
	if err := json.Unmarshal([]byte(metrics), &res.Metrics); err != nil {
		return nil, errs.Wrap(errs.Internal, "GET_RESULT_FAILED", "unmarshal metrics", err)
	}
	if err := json.Unmarshal([]byte(artifacts), &res.Artifacts); err != nil {
		return nil, errs.Wrap(errs.Internal, "GET_RESULT_FAILED", "unmarshal artifacts", err)
	}
	if err := json.Unmarshal([]byte(logs), &res.Logs); err != nil {
		return nil, errs.Wrap(errs.Internal, "GET_RESULT_FAILED", "unmarshal logs", err)
	}
	res.Error = errStr.String
	return &res, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
