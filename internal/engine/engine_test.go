// Copyright 2025 James Ross
package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrossdev/cogsim/internal/experiment"
	"github.com/jrossdev/cogsim/internal/memory"
	"github.com/jrossdev/cogsim/internal/planner"
)

func TestRunIterationHappyPathScoresAndPersists(t *testing.T) {
	m := memory.New(filepath.Join(t.TempDir(), "memory.jsonl"))
	sim := func(params map[string]float64) map[string]float64 {
		return map[string]float64{"yield": params["x"] * 2}
	}
	e := New("reactor", planner.NewGridPlanner(), m, sim)

	space := experiment.DesignSpace{Bounds: map[string][2]float64{"x": {0, 10}}}
	objectives := []experiment.ObjectiveSpec{{Name: "yield", Direction: experiment.Maximize, Weight: 1}}

	results, err := e.RunIteration(space, objectives, nil, 2, PenaltyDiscard, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.Equal(t, experiment.RunOK, r.Status)
		require.NotNil(t, r.Score)
		require.InDelta(t, r.Outputs["yield"], *r.Score, 1e-9)
	}

	history, err := m.LoadAll()
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestRunIterationInfeasibleDiscardsScoreUnlessSoft(t *testing.T) {
	m := memory.New(filepath.Join(t.TempDir(), "memory.jsonl"))
	sim := func(params map[string]float64) map[string]float64 {
		return map[string]float64{"pressure": 500}
	}
	e := New("reactor", planner.NewGridPlanner(), m, sim)

	space := experiment.DesignSpace{Bounds: map[string][2]float64{"x": {0, 10}}}
	high := 400.0
	constraints := []experiment.ConstraintSpec{{Name: "pressure-cap", Kind: experiment.ConstraintRange, Field: "pressure", High: &high}}

	discardResults, err := e.RunIteration(space, nil, constraints, 1, PenaltyDiscard, 1000)
	require.NoError(t, err)
	require.Equal(t, experiment.RunInfeasible, discardResults[0].Status)
	require.Nil(t, discardResults[0].Score)

	softResults, err := e.RunIteration(space, nil, constraints, 1, PenaltySoft, 1000)
	require.NoError(t, err)
	require.Equal(t, experiment.RunInfeasible, softResults[0].Status)
	require.NotNil(t, softResults[0].Score)
	require.Equal(t, -1000.0, *softResults[0].Score)
}

func TestRunIterationMissingFieldFails(t *testing.T) {
	m := memory.New(filepath.Join(t.TempDir(), "memory.jsonl"))
	sim := func(params map[string]float64) map[string]float64 {
		return map[string]float64{}
	}
	e := New("reactor", planner.NewGridPlanner(), m, sim)

	space := experiment.DesignSpace{Bounds: map[string][2]float64{"x": {0, 10}}}
	val := 1.0
	constraints := []experiment.ConstraintSpec{{Name: "needs-y", Kind: experiment.ConstraintEQ, Field: "y", Value: &val}}

	results, err := e.RunIteration(space, nil, constraints, 1, PenaltyDiscard, 0)
	require.NoError(t, err)
	require.Equal(t, experiment.RunFailed, results[0].Status)
	require.Nil(t, results[0].Score)
}
