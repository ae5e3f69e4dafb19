// Copyright 2025 James Ross
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jrossdev/cogsim/internal/engine"
	"github.com/jrossdev/cogsim/internal/errs"
	"github.com/jrossdev/cogsim/internal/experiment"
	"github.com/jrossdev/cogsim/internal/service"
)

// Handler holds the dependencies every route needs.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// CreateJob handles POST /jobs.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}

	job, err := h.svc.CreateJob(req.Backend, req.Inputs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RunJob handles POST /jobs/{id}/run.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	result, err := h.svc.RunJobSync(jobID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// EnqueueJob handles POST /jobs/{id}/enqueue?max_attempts=N.
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	maxAttempts := queryInt(r, "max_attempts", 0)

	rec, err := h.svc.Enqueue(jobID, maxAttempts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job_id": jobID, "queue": rec})
}

// RunNextQueued handles POST /queue/run-next.
func (h *Handler) RunNextQueued(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RunNextQueued()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// QueueStatus handles GET /queue/{id}.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	rec, err := h.svc.QueueStatus(jobID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CancelJob handles POST /queue/{id}/cancel?reason=...
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	reason := r.URL.Query().Get("reason")

	if err := h.svc.Cancel(jobID, reason); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job_id": jobID, "cancelled": true})
}

// ReplayDead handles POST /queue/{id}/replay?max_attempts=N.
func (h *Handler) ReplayDead(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	maxAttempts := queryInt(r, "max_attempts", 0)

	rec, err := h.svc.ReplayDead(jobID, maxAttempts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// PurgeQueue handles POST /queue/purge?keep_latest=N.
func (h *Handler) PurgeQueue(w http.ResponseWriter, r *http.Request) {
	keepLatest := queryInt(r, "keep_latest", 0)

	deleted, err := h.svc.PurgeFinished(keepLatest)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted, "kept_latest": keepLatest})
}

// ListJobs handles GET /jobs?limit=N.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	jobs, err := h.svc.ListJobs(limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJobDetail handles GET /jobs/{id}.
func (h *Handler) GetJobDetail(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	detail, err := h.svc.GetJobDetail(jobID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Suggest handles POST /experiments/suggest.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	if req.Domain == "" || len(req.DesignSpace) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "domain and design_space are required")
		return
	}

	objectives := make([]experiment.ObjectiveSpec, 0, len(req.Objectives))
	for _, o := range req.Objectives {
		dir := experiment.Minimize
		if o.Direction == "maximize" {
			dir = experiment.Maximize
		}
		objectives = append(objectives, experiment.ObjectiveSpec{Name: o.Name, Direction: dir, Weight: o.Weight})
	}

	constraints := make([]experiment.ConstraintSpec, 0, len(req.Constraints))
	for _, c := range req.Constraints {
		constraints = append(constraints, experiment.ConstraintSpec{
			Name: c.Name, Kind: experiment.ConstraintKind(c.Kind), Field: c.Field,
			Low: c.Low, High: c.High, Value: c.Value,
		})
	}

	penaltyMode := engine.PenaltyDiscard
	if req.PenaltyMode == "soft" {
		penaltyMode = engine.PenaltySoft
	}

	space := experiment.DesignSpace{Bounds: req.DesignSpace}

	results, err := h.svc.Suggest(req.Domain, service.DemoParaboloidSimulator, space, objectives, constraints, req.N, penaltyMode, req.PenaltyValue)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HealthLive handles GET /health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "live"})
}

// HealthReady handles GET /health/ready, probing the store the same way
// the source's health_ready calls service.summary() before answering.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Summary(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "NOT_READY", "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthBackends handles GET /health/backends.
func (h *Handler) HealthBackends(w http.ResponseWriter, r *http.Request) {
	health := h.svc.BackendHealth()
	status := http.StatusOK
	for _, b := range health {
		if !b.Available {
			status = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, status, health)
}

// Summary handles GET /summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ConfigEffective handles GET /config/effective.
func (h *Handler) ConfigEffective(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ConfigEffective())
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	kind, code, message := errs.Classify(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.Validation:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.StateConflict:
		status = http.StatusBadRequest
	case errs.Internal:
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err), zap.String("code", code))
	}
	writeError(w, status, code, message)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{Code: code, Message: message}})
}
