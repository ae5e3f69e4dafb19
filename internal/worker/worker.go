// Copyright 2025 James Ross
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go.uber.org/zap"

	"github.com/jrossdev/cogsim/internal/adapter"
	"github.com/jrossdev/cogsim/internal/breaker"
	"github.com/jrossdev/cogsim/internal/config"
	"github.com/jrossdev/cogsim/internal/obs"
	"github.com/jrossdev/cogsim/internal/simjob"
	"github.com/jrossdev/cogsim/internal/store"
)

// StepStatus is the outcome reported by a single RunNextQueued call.
type StepStatus string

const (
	StepIdle         StepStatus = "idle"
	StepProcessed    StepStatus = "processed"
	StepRequeued     StepStatus = "requeued"
	StepDead         StepStatus = "dead"
	StepBreakerOpen  StepStatus = "breaker_open"
)

// StepResult describes what RunNextQueued did.
type StepResult struct {
	Status StepStatus `json:"status"`
	JobID  string     `json:"job_id,omitempty"`
}

// Worker runs the queue/worker state machine: claim a queued job, invoke
// its adapter, and apply the retry-or-dead-letter policy on failure.
type Worker struct {
	cfg      *config.Config
	store    *store.Store
	registry *adapter.Registry
	log      *zap.Logger

	breakersMu sync.Mutex
	breakers   map[string]*breaker.CircuitBreaker
}

func New(cfg *config.Config, st *store.Store, registry *adapter.Registry, log *zap.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		store:    st,
		registry: registry,
		log:      log,
		breakers: make(map[string]*breaker.CircuitBreaker),
	}
}

func (w *Worker) breakerFor(backend string) *breaker.CircuitBreaker {
	w.breakersMu.Lock()
	defer w.breakersMu.Unlock()
	cb, ok := w.breakers[backend]
	if !ok {
		cb = breaker.New(w.cfg.CircuitBreaker.Window, w.cfg.CircuitBreaker.CooldownPeriod,
			w.cfg.CircuitBreaker.FailureThreshold, w.cfg.CircuitBreaker.MinSamples)
		w.breakers[backend] = cb
	}
	return cb
}

// Run spawns cfg.Worker.Count goroutines, each looping RunNextQueued until
// ctx is cancelled. Idle results pace the next poll through a rate limiter
// instead of busy-polling or sleeping a fixed duration.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Worker.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			obs.WorkerActive.Inc()
			defer obs.WorkerActive.Dec()
			w.loop(ctx, id)
		}(i)
	}

	go w.reportBreakerState(ctx)

	wg.Wait()
	return nil
}

func (w *Worker) loop(ctx context.Context, id int) {
	limiter := rate.NewLimiter(rate.Every(w.cfg.Worker.IdlePollMin), 1)
	backoff := w.cfg.Worker.IdlePollMin

	for ctx.Err() == nil {
		res, err := w.RunNextQueued(ctx)
		if err != nil {
			w.log.Error("worker step failed", zap.Int("worker", id), zap.Error(err))
			backoff = w.cfg.Worker.IdlePollMin
			continue
		}

		if res.Status == StepIdle || res.Status == StepBreakerOpen {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if backoff < w.cfg.Worker.IdlePollMax {
				backoff *= 2
				if backoff > w.cfg.Worker.IdlePollMax {
					backoff = w.cfg.Worker.IdlePollMax
				}
				limiter.SetLimit(rate.Every(backoff))
			}
			continue
		}

		backoff = w.cfg.Worker.IdlePollMin
		limiter.SetLimit(rate.Every(backoff))
	}
}

// RunNextQueued is the atomic worker step from spec: pick the oldest
// queued job, gate it through its backend's circuit breaker, run the
// adapter, and apply the retry-or-dead-letter decision.
func (w *Worker) RunNextQueued(ctx context.Context) (StepResult, error) {
	jobID, err := w.store.NextQueuedJobID()
	if err != nil {
		return StepResult{}, err
	}
	if jobID == "" {
		return StepResult{Status: StepIdle}, nil
	}

	job, err := w.store.GetJob(jobID)
	if err != nil {
		return StepResult{}, err
	}
	if job == nil {
		return StepResult{Status: StepIdle}, nil
	}

	cb := w.breakerFor(job.Backend)
	if !cb.Allow() {
		return StepResult{Status: StepBreakerOpen, JobID: jobID}, nil
	}

	if err := w.store.StartJob(jobID); err != nil {
		// Another worker claimed it first; this is a benign race, not a
		// failure of this worker's step.
		return StepResult{Status: StepIdle}, nil
	}
	obs.JobsConsumed.Inc()

	a, err := w.registry.Get(job.Backend)
	if err != nil {
		return w.finishAsFailed(jobID, *job, cb, fmt.Sprintf("no adapter for backend %q", job.Backend))
	}

	start := time.Now()
	result := a.Run(*job)
	obs.JobProcessingDuration.Observe(time.Since(start).Seconds())

	if err := w.store.UpsertResult(result); err != nil {
		return StepResult{}, err
	}

	if result.Status == simjob.ResultCompleted {
		cb.Record(true)
		if err := w.store.FinishJob(jobID, simjob.StateCompleted, ""); err != nil {
			return StepResult{}, err
		}
		obs.JobsCompleted.Inc()
		return StepResult{Status: StepProcessed, JobID: jobID}, nil
	}

	return w.finishAsFailed(jobID, *job, cb, result.Error)
}

func (w *Worker) finishAsFailed(jobID string, job simjob.Job, cb *breaker.CircuitBreaker, errMsg string) (StepResult, error) {
	prev := cb.State()
	cb.Record(false)
	if cur := cb.State(); prev != cur && cur == breaker.Open {
		obs.CircuitBreakerTrips.WithLabelValues(job.Backend).Inc()
	}
	obs.JobsFailed.Inc()

	retry, err := w.store.ShouldRetry(jobID)
	if err != nil {
		return StepResult{}, err
	}
	if retry {
		if err := w.store.RequeueForRetry(jobID, errMsg); err != nil {
			return StepResult{}, err
		}
		obs.JobsRetried.Inc()
		return StepResult{Status: StepRequeued, JobID: jobID}, nil
	}

	if err := w.store.FinishJob(jobID, simjob.StateDead, errMsg); err != nil {
		return StepResult{}, err
	}
	obs.JobsDeadLetter.Inc()
	return StepResult{Status: StepDead, JobID: jobID}, nil
}

func (w *Worker) reportBreakerState(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.breakersMu.Lock()
			for backend, cb := range w.breakers {
				switch cb.State() {
				case breaker.Closed:
					obs.CircuitBreakerState.WithLabelValues(backend).Set(0)
				case breaker.HalfOpen:
					obs.CircuitBreakerState.WithLabelValues(backend).Set(1)
				case breaker.Open:
					obs.CircuitBreakerState.WithLabelValues(backend).Set(2)
				}
			}
			w.breakersMu.Unlock()
		}
	}
}
