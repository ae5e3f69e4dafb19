// Copyright 2025 James Ross

// Package planner implements the cognitive experiment-suggestion strategies:
// a warm-up grid planner and a surrogate model-based planner with UCB/EI/
// Thompson acquisition, plus a sequential planner that always falls back to
// the surrogate since no Bayesian-optimization library is vendored.
package planner

import (
	"fmt"

	"github.com/jrossdev/cogsim/internal/experiment"
)

// Planner proposes the next n experiments to run given accumulated history.
type Planner interface {
	Propose(domain string, space experiment.DesignSpace, objectives []experiment.ObjectiveSpec,
		constraints []experiment.ConstraintSpec, history []experiment.RunResult, n int) []experiment.ExperimentSpec
}

func scoreOutputs(outputs map[string]float64, objectives []experiment.ObjectiveSpec) float64 {
	total := 0.0
	for _, obj := range objectives {
		val := outputs[obj.Name]
		if obj.Direction == experiment.Maximize {
			total += obj.Weight * val
		} else {
			total += obj.Weight * -val
		}
	}
	return total
}

func cloneObjectives(objectives []experiment.ObjectiveSpec) []experiment.ObjectiveSpec {
	out := make([]experiment.ObjectiveSpec, len(objectives))
	copy(out, objectives)
	return out
}

func cloneConstraints(constraints []experiment.ConstraintSpec) []experiment.ConstraintSpec {
	out := make([]experiment.ConstraintSpec, len(constraints))
	copy(out, constraints)
	return out
}

func experimentID(domain, tag string, index int) string {
	return fmt.Sprintf("%s-%s-%d", domain, tag, index)
}
