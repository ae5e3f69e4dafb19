// Copyright 2025 James Ross
package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrossdev/cogsim/internal/experiment"
)

func TestGridPlannerWarmUpBoundary(t *testing.T) {
	space := experiment.DesignSpace{Bounds: map[string][2]float64{"x": {0, 4}}}
	p := NewGridPlanner()

	specs := p.Propose("reactor", space, nil, nil, nil, 2)
	require.Len(t, specs, 2)

	// step=1, denom=10 -> frac=0.1 -> 0 + 4*0.1 = 0.4
	require.InDelta(t, 0.4, specs[0].Parameters["x"], 1e-9)
	// step=2, denom=10 -> frac=0.2 -> 0.8
	require.InDelta(t, 0.8, specs[1].Parameters["x"], 1e-9)
	require.Equal(t, "reactor-exp-1", specs[0].ExperimentID)
	require.Equal(t, "reactor-exp-2", specs[1].ExperimentID)

	again := p.Propose("reactor", space, nil, nil, nil, 2)
	require.Equal(t, specs, again)
}

func TestGridPlannerSaturatesAtUpperBoundPastStepTen(t *testing.T) {
	space := experiment.DesignSpace{Bounds: map[string][2]float64{"x": {0, 4}}}
	p := NewGridPlanner()
	history := make([]experiment.RunResult, 10)

	specs := p.Propose("reactor", space, nil, nil, history, 1)
	require.Len(t, specs, 1)
	require.InDelta(t, 4.0, specs[0].Parameters["x"], 1e-9)
}

func TestSurrogatePlannerDelegatesToGridDuringWarmup(t *testing.T) {
	space := experiment.DesignSpace{Bounds: map[string][2]float64{"x": {0, 4}}}
	p := NewSurrogatePlanner(7, UCB)
	history := make([]experiment.RunResult, 3)

	specs := p.Propose("reactor", space, nil, nil, history, 1)
	require.Len(t, specs, 1)
	require.Equal(t, "reactor-exp-4", specs[0].ExperimentID)
}

func TestSurrogatePlannerSelectsNearKnownOptimum(t *testing.T) {
	space := experiment.DesignSpace{Bounds: map[string][2]float64{"x": {0, 10}}}
	objectives := []experiment.ObjectiveSpec{{Name: "score", Direction: experiment.Maximize, Weight: 1}}

	xs := []float64{0, 1, 2, 4, 5, 3.0}
	ys := []float64{0, 0, 0, 0, 0, 100}
	history := make([]experiment.RunResult, len(xs))
	for i := range xs {
		history[i] = experiment.RunResult{
			ExperimentID: "seed",
			Status:       experiment.RunOK,
			Parameters:   map[string]float64{"x": xs[i]},
			Outputs:      map[string]float64{"score": ys[i]},
		}
	}

	hits := 0
	for seed := int64(0); seed < 20; seed++ {
		p := NewSurrogatePlanner(seed, UCB)
		specs := p.Propose("reactor", space, objectives, nil, history, 1)
		require.Len(t, specs, 1)
		if abs(specs[0].Parameters["x"]-3.0) <= 1.5 {
			hits++
		}
	}
	require.Greater(t, hits, 10)
}

func TestSequentialPlannerAlwaysAnnotatesFallback(t *testing.T) {
	space := experiment.DesignSpace{Bounds: map[string][2]float64{"x": {0, 10}}}
	objectives := []experiment.ObjectiveSpec{{Name: "score", Direction: experiment.Maximize, Weight: 1}}
	history := make([]experiment.RunResult, 6)
	for i := range history {
		history[i] = experiment.RunResult{Status: experiment.RunOK, Parameters: map[string]float64{"x": float64(i)}, Outputs: map[string]float64{"score": float64(i)}}
	}

	p := NewSequentialPlanner(7)
	specs := p.Propose("reactor", space, objectives, nil, history, 1)
	require.Len(t, specs, 1)
	require.Equal(t, "optuna_tpe_fallback", specs[0].Metadata["planner"])
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
