// Copyright 2025 James Ross
package planner

import "github.com/jrossdev/cogsim/internal/experiment"

// SequentialPlanner stands in for a TPE-style Bayesian optimizer. No
// Optuna-equivalent sampler is vendored in this module, so it always takes
// the fallback branch: the surrogate planner with EI acquisition, annotated
// so callers can see the fallback occurred.
type SequentialPlanner struct {
	fallback *SurrogatePlanner
}

func NewSequentialPlanner(seed int64) *SequentialPlanner {
	return &SequentialPlanner{fallback: NewSurrogatePlanner(seed, EI)}
}

func (p *SequentialPlanner) Propose(domain string, space experiment.DesignSpace, objectives []experiment.ObjectiveSpec,
	constraints []experiment.ConstraintSpec, history []experiment.RunResult, n int) []experiment.ExperimentSpec {

	specs := p.fallback.Propose(domain, space, objectives, constraints, history, n)
	for i := range specs {
		if specs[i].Metadata == nil {
			specs[i].Metadata = map[string]string{}
		}
		specs[i].Metadata["planner"] = "optuna_tpe_fallback"
	}
	return specs
}
