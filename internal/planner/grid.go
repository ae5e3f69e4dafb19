// Copyright 2025 James Ross
package planner

import "github.com/jrossdev/cogsim/internal/experiment"

// GridPlanner is the warm-up strategy: it fans samples out linearly across
// the design space for the first ten steps (a step counts prior history plus
// the sample's index), then saturates at the upper bound. Its role is to produce at least five feasible observations so the
// surrogate planner has enough history to take over.
type GridPlanner struct{}

func NewGridPlanner() *GridPlanner { return &GridPlanner{} }

// Propose places parameter i at lo + (hi-lo) * min(1, step/max(10, step))
// with step = len(history) + i + 1. Note the denominator clamp means the
// fraction reaches 1.0 as soon as step >= 10, so every sample from step ten
// onward lands on the upper bound rather than continuing to
// interpolate; this is the documented, preserved behavior, not a bug fix.
func (p *GridPlanner) Propose(domain string, space experiment.DesignSpace, objectives []experiment.ObjectiveSpec,
	constraints []experiment.ConstraintSpec, history []experiment.RunResult, n int) []experiment.ExperimentSpec {

	historyCount := len(history)
	specs := make([]experiment.ExperimentSpec, 0, n)
	for i := 0; i < n; i++ {
		step := float64(historyCount + i + 1)
		denom := step
		if denom < 10 {
			denom = 10
		}
		frac := step / denom
		if frac > 1 {
			frac = 1
		}

		params := make(map[string]float64, len(space.Bounds))
		for name, bounds := range space.Bounds {
			lo, hi := bounds[0], bounds[1]
			params[name] = lo + (hi-lo)*frac
		}

		specs = append(specs, experiment.ExperimentSpec{
			ExperimentID: experimentID(domain, "exp", historyCount+i+1),
			Domain:       domain,
			Parameters:   params,
			Objectives:   cloneObjectives(objectives),
			Constraints:  cloneConstraints(constraints),
		})
	}
	return specs
}
