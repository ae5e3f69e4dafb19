// Copyright 2025 James Ross
package pareto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrossdev/cogsim/internal/experiment"
)

func objectives() []experiment.ObjectiveSpec {
	return []experiment.ObjectiveSpec{
		{Name: "yield", Direction: experiment.Maximize, Weight: 1},
		{Name: "energy", Direction: experiment.Minimize, Weight: 1},
	}
}

func TestFrontWithNoMutualDominance(t *testing.T) {
	results := []experiment.RunResult{
		{ExperimentID: "a", Status: experiment.RunOK, Outputs: map[string]float64{"yield": 10, "energy": 5}},
		{ExperimentID: "b", Status: experiment.RunOK, Outputs: map[string]float64{"yield": 8, "energy": 3}},
		{ExperimentID: "c", Status: experiment.RunOK, Outputs: map[string]float64{"yield": 5, "energy": 1}},
	}

	front := Front(results, objectives())
	require.Len(t, front, 3)
}

func TestFrontExcludesDominatedAndInfeasible(t *testing.T) {
	results := []experiment.RunResult{
		{ExperimentID: "good", Status: experiment.RunOK, Outputs: map[string]float64{"yield": 10, "energy": 5}},
		{ExperimentID: "dominated", Status: experiment.RunOK, Outputs: map[string]float64{"yield": 9, "energy": 6}},
		{ExperimentID: "bad", Status: experiment.RunInfeasible, Outputs: map[string]float64{"yield": 20, "energy": 1}},
	}

	front := Front(results, objectives())
	require.Len(t, front, 1)
	require.Equal(t, "good", front[0].ExperimentID)
}

func TestDominancePredicateSoundness(t *testing.T) {
	results := []experiment.RunResult{
		{ExperimentID: "a", Status: experiment.RunOK, Outputs: map[string]float64{"yield": 10, "energy": 5}},
		{ExperimentID: "b", Status: experiment.RunOK, Outputs: map[string]float64{"yield": 8, "energy": 3}},
		{ExperimentID: "dominated", Status: experiment.RunOK, Outputs: map[string]float64{"yield": 9, "energy": 6}},
	}
	front := Front(results, objectives())

	frontIDs := map[string]bool{}
	for _, r := range front {
		frontIDs[r.ExperimentID] = true
	}

	vectors := map[string]map[string]float64{}
	for _, r := range results {
		vectors[r.ExperimentID] = ObjectiveVector(r.Outputs, objectives())
	}

	for _, a := range results {
		for _, b := range results {
			if a.ExperimentID == b.ExperimentID {
				continue
			}
			require.False(t, Dominates(vectors[a.ExperimentID], vectors[b.ExperimentID]) && Dominates(vectors[b.ExperimentID], vectors[a.ExperimentID]),
				"no pair should mutually dominate")
		}
	}

	require.False(t, frontIDs["dominated"])
}
