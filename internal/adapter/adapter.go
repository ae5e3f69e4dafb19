// Copyright 2025 James Ross
package adapter

import (
	"fmt"

	"github.com/jrossdev/cogsim/internal/errs"
	"github.com/jrossdev/cogsim/internal/simjob"
)

// Adapter speaks to one external simulator family. Implementations never
// let subprocess or filesystem failures cross the boundary as Go errors for
// the run step — they're folded into Result.Status=failed instead, per the
// error-handling design. CreateJob does return an error when the job
// directory, job_inputs.json or the skeleton file cannot be written.
type Adapter interface {
	BackendName() string
	CreateJob(jobID, workdir string, inputs map[string]interface{}) (simjob.Job, error)
	Run(job simjob.Job) simjob.Result
	ParseResults(job simjob.Job) simjob.Result
}

// Registry maps backend names to their adapter implementation, the closed
// enum the service facade dispatches through instead of reflection.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.BackendName()] = a
	}
	return r
}

func (r *Registry) Get(backend string) (Adapter, error) {
	a, ok := r.adapters[backend]
	if !ok {
		return nil, errs.Validationf("UNKNOWN_BACKEND", "unknown backend %q", backend)
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// Health is the executable-reachability probe backing GET /health/backends.
type Health struct {
	Backend    string `json:"backend"`
	Executable string `json:"executable"`
	Available  bool   `json:"available"`
	Detail     string `json:"detail,omitempty"`
}

func (r *Registry) Health() []Health {
	out := make([]Health, 0, len(r.adapters))
	for _, a := range r.adapters {
		ba, ok := a.(*baseAdapter)
		if !ok {
			out = append(out, Health{Backend: a.BackendName(), Available: true})
			continue
		}
		exe, err := ba.resolveExecutable()
		h := Health{Backend: ba.name, Executable: exe}
		if err != nil {
			h.Detail = err.Error()
		} else {
			h.Available = true
		}
		out = append(out, h)
	}
	return out
}

func fmtFailed(backend string, code int) string {
	return fmt.Sprintf("%s failed with code %d", backend, code)
}
