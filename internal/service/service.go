// Copyright 2025 James Ross

// Package service composes the persistence store, adapter registry, and
// per-domain experiment engines into the operation surface consumed by both
// the HTTP edge and the CLI. Grounded on the teacher's internal/admin
// facade style: free-function-shaped operations taking the shared
// dependencies, here attached as methods on a single Service value.
package service

import (
	"context"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/jrossdev/cogsim/internal/adapter"
	"github.com/jrossdev/cogsim/internal/config"
	"github.com/jrossdev/cogsim/internal/engine"
	"github.com/jrossdev/cogsim/internal/errs"
	"github.com/jrossdev/cogsim/internal/experiment"
	"github.com/jrossdev/cogsim/internal/memory"
	"github.com/jrossdev/cogsim/internal/planner"
	"github.com/jrossdev/cogsim/internal/simjob"
	"github.com/jrossdev/cogsim/internal/store"
	"github.com/jrossdev/cogsim/internal/worker"
)

// Service is the facade the HTTP edge and cmd/simctl both drive. The store
// is authoritative for Job/Result/QueueRecord; Service holds no in-memory
// cache of its own, per the design note that the source's caches are a
// micro-optimization safely omitted.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	registry *adapter.Registry
	worker   *worker.Worker
	log      *zap.Logger

	enginesMu sync.Mutex
	engines   map[string]*engine.Engine
}

func New(cfg *config.Config, st *store.Store, registry *adapter.Registry, w *worker.Worker, log *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		registry: registry,
		worker:   w,
		log:      log,
		engines:  make(map[string]*engine.Engine),
	}
}

// CreateJob materializes a job directory through the named backend's
// adapter and persists the Job row.
func (s *Service) CreateJob(backend string, inputs map[string]interface{}) (simjob.Job, error) {
	a, err := s.registry.Get(backend)
	if err != nil {
		return simjob.Job{}, err
	}

	jobID, err := simjob.NewJobID()
	if err != nil {
		return simjob.Job{}, errs.Wrap(errs.Internal, "CREATE_JOB_FAILED", "generate job id", err)
	}
	job, err := a.CreateJob(jobID, s.cfg.Adapters.Workdir, inputs)
	if err != nil {
		return simjob.Job{}, errs.Wrap(errs.Validation, "CREATE_JOB_FAILED", "adapter create job", err)
	}
	if err := s.store.UpsertJob(job); err != nil {
		return simjob.Job{}, err
	}
	return job, nil
}

// RunJobSync invokes the job's adapter synchronously, outside the queue,
// and persists the resulting Result.
func (s *Service) RunJobSync(jobID string) (simjob.Result, error) {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return simjob.Result{}, err
	}
	if job == nil {
		return simjob.Result{}, errs.NotFoundf("JOB_NOT_FOUND", "no job %s", jobID)
	}

	a, err := s.registry.Get(job.Backend)
	if err != nil {
		return simjob.Result{}, errs.Wrap(errs.Validation, "RUN_JOB_FAILED", "resolve adapter", err)
	}

	result := a.Run(*job)
	if err := s.store.UpsertResult(result); err != nil {
		return simjob.Result{}, err
	}
	return result, nil
}

// Enqueue inserts a queue record for jobID, clamping maxAttempts to the
// configured default when not positive.
func (s *Service) Enqueue(jobID string, maxAttempts int) (*simjob.QueueRecord, error) {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errs.NotFoundf("JOB_NOT_FOUND", "no job %s", jobID)
	}
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.Worker.DefaultAttempts
	}
	if err := s.store.Enqueue(jobID, maxAttempts); err != nil {
		return nil, err
	}
	return s.store.QueueState(jobID)
}

// RunNextQueued performs a single worker step.
func (s *Service) RunNextQueued() (worker.StepResult, error) {
	return s.worker.RunNextQueued(context.Background())
}

// QueueStatus returns nil, errs.NotFound when no queue record exists.
func (s *Service) QueueStatus(jobID string) (*simjob.QueueRecord, error) {
	rec, err := s.store.QueueState(jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errs.NotFoundf("QUEUE_NOT_FOUND", "no queue record for job %s", jobID)
	}
	return rec, nil
}

// Cancel forbids cancelling a running job, matching scenario 4's
// 400 CANCEL_FAILED behavior.
func (s *Service) Cancel(jobID, reason string) error {
	rec, err := s.store.QueueState(jobID)
	if err != nil {
		return err
	}
	if rec == nil {
		return errs.NotFoundf("QUEUE_NOT_FOUND", "no queue record for job %s", jobID)
	}
	if rec.State == simjob.StateRunning {
		return errs.StateConflictf("CANCEL_FAILED", "job %s is running", jobID)
	}
	return s.store.Cancel(jobID, reason)
}

// ReplayDead resets a dead record back to queued.
func (s *Service) ReplayDead(jobID string, maxAttempts int) (*simjob.QueueRecord, error) {
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.Worker.DefaultAttempts
	}
	if err := s.store.ReplayDead(jobID, maxAttempts); err != nil {
		return nil, err
	}
	return s.store.QueueState(jobID)
}

// PurgeFinished garbage-collects terminal queue/job/result rows, keeping
// the keepLatest most recent.
func (s *Service) PurgeFinished(keepLatest int) (int, error) {
	return s.store.PurgeFinished(keepLatest)
}

// ListJobs returns up to limit jobs, newest first.
func (s *Service) ListJobs(limit int) ([]simjob.JobSummary, error) {
	return s.store.ListJobs(limit)
}

// GetJobDetail returns the job, its result (if any), and its queue record
// (if any). Returns errs.NotFound when the job itself does not exist.
type JobDetail struct {
	Job    simjob.Job          `json:"job"`
	Result *simjob.Result      `json:"result,omitempty"`
	Queue  *simjob.QueueRecord `json:"queue,omitempty"`
}

func (s *Service) GetJobDetail(jobID string) (*JobDetail, error) {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errs.NotFoundf("JOB_NOT_FOUND", "no job %s", jobID)
	}
	result, err := s.store.GetResult(jobID)
	if err != nil {
		return nil, err
	}
	queue, err := s.store.QueueState(jobID)
	if err != nil {
		return nil, err
	}
	return &JobDetail{Job: *job, Result: result, Queue: queue}, nil
}

// BackendHealth probes each registered adapter's configured executable.
func (s *Service) BackendHealth() []adapter.Health {
	return s.registry.Health()
}

// Summary reports aggregate counts across jobs, results and queue state.
func (s *Service) Summary() (store.Summary, error) {
	return s.store.Summary()
}

// EngineFor lazily constructs the cognitive engine for domain, backed by a
// JSONL memory file named after the domain under the configured memory
// path's directory, and a surrogate-over-grid-warmup planner with the fixed
// seed 7.
func (s *Service) EngineFor(domain string, sim engine.Simulator) *engine.Engine {
	s.enginesMu.Lock()
	defer s.enginesMu.Unlock()
	if e, ok := s.engines[domain]; ok {
		e.Simulator = sim
		return e
	}

	memPath := filepath.Join(filepath.Dir(s.cfg.Engine.MemoryPath), filepath.Base(domain)+".jsonl")
	m := memory.New(memPath)
	p := planner.NewSurrogatePlanner(7, planner.UCB)
	e := engine.New(domain, p, m, sim)
	s.engines[domain] = e
	return e
}

// Suggest runs one experiment-engine iteration for domain using sim as the
// evaluator and persists the resulting RunResults.
func (s *Service) Suggest(domain string, sim engine.Simulator, space experiment.DesignSpace,
	objectives []experiment.ObjectiveSpec, constraints []experiment.ConstraintSpec,
	n int, penaltyMode engine.PenaltyMode, penaltyValue float64) ([]experiment.RunResult, error) {

	if n <= 0 {
		n = 1
	}
	e := s.EngineFor(domain, sim)
	results, err := e.RunIteration(space, objectives, constraints, n, penaltyMode, penaltyValue)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "SUGGEST_FAILED", "run experiment iteration", err)
	}
	return results, nil
}

// DemoParaboloidSimulator is the placeholder evaluator the HTTP edge and
// cmd/simctl both use for /experiments/suggest: a domain-specific engine
// wired to a real adapter can be plugged in later, but until then this
// gives suggest a deterministic, free-standing objective surface.
func DemoParaboloidSimulator(parameters map[string]float64) map[string]float64 {
	x := parameters["x"]
	y := parameters["y"]
	yield := 100.0 - (x-3.0)*(x-3.0) - (y-2.0)*(y-2.0)
	if yield < 0 {
		yield = 0
	}
	return map[string]float64{
		"yield":  yield,
		"energy": x*x + 0.5*y*y,
	}
}

// ConfigEffective returns the subset of runtime configuration safe to
// expose verbatim (no secrets).
func (s *Service) ConfigEffective() map[string]interface{} {
	return map[string]interface{}{
		"store":           s.cfg.Store,
		"worker":          s.cfg.Worker,
		"circuit_breaker": s.cfg.CircuitBreaker,
		"adapters":        s.cfg.Adapters,
		"observability":   s.cfg.Observability,
		"engine":          s.cfg.Engine,
		"http": map[string]interface{}{
			"listen_addr":        s.cfg.HTTP.ListenAddr,
			"rate_limit_enabled": s.cfg.HTTP.RateLimitEnabled,
			"rate_limit_max":     s.cfg.HTTP.RateLimitMax,
			"rate_limit_window":  s.cfg.HTTP.RateLimitWindow,
			"audit_enabled":      s.cfg.HTTP.AuditEnabled,
			"auth_enabled":       s.cfg.HTTP.APIKey != "",
		},
	}
}
