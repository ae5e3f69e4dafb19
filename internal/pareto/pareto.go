// Copyright 2025 James Ross

// Package pareto computes dominance and non-dominated fronts over
// multi-objective experiment.RunResult history.
package pareto

import "github.com/jrossdev/cogsim/internal/experiment"

// ObjectiveVector converts outputs to a canonical maximization vector:
// minimize objectives are negated so every component of the returned
// vector is "higher is better".
func ObjectiveVector(outputs map[string]float64, objectives []experiment.ObjectiveSpec) map[string]float64 {
	v := make(map[string]float64, len(objectives))
	for _, o := range objectives {
		raw := outputs[o.Name]
		if o.Direction == experiment.Maximize {
			v[o.Name] = raw
		} else {
			v[o.Name] = -raw
		}
	}
	return v
}

// Dominates reports whether a Pareto-dominates b, assuming both are
// canonical maximization vectors over the same objective keys.
func Dominates(a, b map[string]float64) bool {
	shared := make([]string, 0, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			shared = append(shared, k)
		}
	}
	if len(shared) == 0 {
		return false
	}

	geAll := true
	gtAny := false
	for _, k := range shared {
		if a[k] < b[k] {
			geAll = false
			break
		}
		if a[k] > b[k] {
			gtAny = true
		}
	}
	return geAll && gtAny
}

// Front returns the non-dominated subset of results with status "ok" under
// the given objectives.
func Front(results []experiment.RunResult, objectives []experiment.ObjectiveSpec) []experiment.RunResult {
	feasible := make([]experiment.RunResult, 0, len(results))
	for _, r := range results {
		if r.Status == experiment.RunOK {
			feasible = append(feasible, r)
		}
	}

	vectors := make([]map[string]float64, len(feasible))
	for i, r := range feasible {
		vectors[i] = ObjectiveVector(r.Outputs, objectives)
	}

	front := make([]experiment.RunResult, 0, len(feasible))
	for i := range feasible {
		dominated := false
		for j := range feasible {
			if i == j {
				continue
			}
			if Dominates(vectors[j], vectors[i]) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, feasible[i])
		}
	}
	return front
}
