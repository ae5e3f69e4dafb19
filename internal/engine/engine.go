// Copyright 2025 James Ross

// Package engine runs one iteration of the cognitive experiment loop: load
// history, ask the planner for proposals, evaluate each against a supplied
// simulator function, score and persist the outcome.
package engine

import (
	"fmt"

	"github.com/jrossdev/cogsim/internal/experiment"
	"github.com/jrossdev/cogsim/internal/memory"
	"github.com/jrossdev/cogsim/internal/pareto"
	"github.com/jrossdev/cogsim/internal/planner"
)

// Simulator evaluates a proposed parameter set and returns named outputs.
type Simulator func(parameters map[string]float64) map[string]float64

// PenaltyMode controls how an infeasible result's score is derived.
type PenaltyMode string

const (
	PenaltyDiscard PenaltyMode = "discard"
	PenaltySoft    PenaltyMode = "soft"
)

// Engine ties one domain's planner, memory, and simulator together.
type Engine struct {
	Domain    string
	Planner   planner.Planner
	Memory    *memory.Store
	Simulator Simulator
}

func New(domain string, p planner.Planner, m *memory.Store, sim Simulator) *Engine {
	return &Engine{Domain: domain, Planner: p, Memory: m, Simulator: sim}
}

// RunIteration proposes n experiments, evaluates each through Simulator,
// scores and persists the results, and returns them in proposal order.
func (e *Engine) RunIteration(space experiment.DesignSpace, objectives []experiment.ObjectiveSpec,
	constraints []experiment.ConstraintSpec, n int, penaltyMode PenaltyMode, penaltyValue float64) ([]experiment.RunResult, error) {

	history, err := e.Memory.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load experiment history: %w", err)
	}

	specs := e.Planner.Propose(e.Domain, space, objectives, constraints, history, n)

	results := make([]experiment.RunResult, 0, len(specs))
	for _, spec := range specs {
		outputs := e.Simulator(spec.Parameters)
		status := checkConstraints(outputs, spec.Constraints)

		var score *float64
		switch {
		case status == experiment.RunOK:
			s := scalarize(outputs, spec.Objectives)
			score = &s
		case status == experiment.RunInfeasible && penaltyMode == PenaltySoft:
			s := -abs(penaltyValue)
			score = &s
		}

		var notes []string
		if spec.Metadata != nil {
			if name := spec.Metadata["planner"]; name != "" {
				notes = append(notes, fmt.Sprintf("planner=%s", name))
			}
			if acq := spec.Metadata["acquisition"]; acq != "" {
				notes = append(notes, fmt.Sprintf("acquisition=%s", acq))
			}
		}

		result := experiment.RunResult{
			ExperimentID: spec.ExperimentID,
			Status:       status,
			Parameters:   spec.Parameters,
			Outputs:      outputs,
			Score:        score,
			Notes:        notes,
		}

		if err := e.Memory.Append(result); err != nil {
			return results, fmt.Errorf("persist run result %s: %w", spec.ExperimentID, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// CurrentParetoFront loads history and returns the non-dominated set under
// objectives.
func (e *Engine) CurrentParetoFront(objectives []experiment.ObjectiveSpec) ([]experiment.RunResult, error) {
	history, err := e.Memory.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load experiment history: %w", err)
	}
	return pareto.Front(history, objectives), nil
}

func scalarize(outputs map[string]float64, objectives []experiment.ObjectiveSpec) float64 {
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

func checkConstraints(outputs map[string]float64, constraints []experiment.ConstraintSpec) experiment.RunStatus {
	for _, c := range constraints {
		val, ok := outputs[c.Field]
		if !ok {
			return experiment.RunFailed
		}
		switch c.Kind {
		case experiment.ConstraintRange:
			if c.Low != nil && val < *c.Low {
				return experiment.RunInfeasible
			}
			if c.High != nil && val > *c.High {
				return experiment.RunInfeasible
			}
		case experiment.ConstraintLTE:
			if c.Value != nil && val > *c.Value {
				return experiment.RunInfeasible
			}
		case experiment.ConstraintGTE:
			if c.Value != nil && val < *c.Value {
				return experiment.RunInfeasible
			}
		case experiment.ConstraintEQ:
			if c.Value != nil && abs(val-*c.Value) > 1e-9 {
				return experiment.RunInfeasible
			}
		}
	}
	return experiment.RunOK
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
