// Copyright 2025 James Ross
package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrossdev/cogsim/internal/experiment"
)

func TestLoadAllOnMissingFileReturnsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "memory.jsonl"))
	rows, err := s.LoadAll()
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestAppendThenLoadAllRoundTrips(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "memory.jsonl"))

	score := 12.5
	r := experiment.RunResult{
		ExperimentID: "reactor-exp-1",
		Status:       experiment.RunOK,
		Parameters:   map[string]float64{"temp": 350},
		Outputs:      map[string]float64{"yield": 12.5},
		Score:        &score,
	}
	require.NoError(t, s.Append(r))

	rows, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, r.ExperimentID, rows[0].ExperimentID)
	require.Equal(t, r.Outputs, rows[0].Outputs)
	require.NotNil(t, rows[0].Score)
	require.Equal(t, 12.5, *rows[0].Score)
}

func TestAppendIsTailOnly(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "memory.jsonl"))

	before, err := s.LoadAll()
	require.NoError(t, err)
	require.Empty(t, before)

	require.NoError(t, s.Append(experiment.RunResult{ExperimentID: "a", Status: experiment.RunOK, Outputs: map[string]float64{}}))
	require.NoError(t, s.Append(experiment.RunResult{ExperimentID: "b", Status: experiment.RunOK, Outputs: map[string]float64{}}))

	after, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, after, 2)
	require.Equal(t, "a", after[0].ExperimentID)
	require.Equal(t, "b", after[1].ExperimentID)
}

func TestLoadAllInjectsEmptyParametersForLegacyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	s := New(path)

	legacy := `{"experiment_id":"legacy","status":"ok","outputs":{"y":1}}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	rows, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Parameters)
	require.Empty(t, rows[0].Parameters)
}
