// Copyright 2025 James Ross
package adapter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrossdev/cogsim/internal/simjob"
)

func TestCreateJobIsIdempotent(t *testing.T) {
	a := NewCFDDriver("")
	workdir := t.TempDir()

	job1, err := a.CreateJob("job-aaaaaaaa", workdir, map[string]interface{}{"case": "pipe_flow"})
	require.NoError(t, err)

	skeletonPath := filepath.Join(job1.Workdir, "Allrun")
	require.NoError(t, os.WriteFile(skeletonPath, []byte("modified by hand"), 0o644))

	_, err = a.CreateJob("job-aaaaaaaa", workdir, map[string]interface{}{"case": "pipe_flow"})
	require.NoError(t, err)

	body, err := os.ReadFile(skeletonPath)
	require.NoError(t, err)
	require.Equal(t, "modified by hand", string(body), "create_job must not overwrite an existing skeleton")
}

func TestRunIsIdempotentWhenMetricsAlreadyExist(t *testing.T) {
	a := NewCFDDriver("")
	workdir := t.TempDir()
	job, err := a.CreateJob("job-bbbbbbbb", workdir, map[string]interface{}{})
	require.NoError(t, err)

	metricsPath := filepath.Join(job.Workdir, "metrics.json")
	payload := map[string]interface{}{"metrics": map[string]float64{"Cl": 1.0}}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(metricsPath, data, 0o644))

	res1 := a.Run(job)
	res2 := a.Run(job)

	require.Equal(t, simjob.ResultCompleted, res1.Status)
	require.Equal(t, res1.Metrics, res2.Metrics)
}

func TestRunFailsWhenExecutableMissing(t *testing.T) {
	a := NewSU2Driver()
	workdir := t.TempDir()
	job, err := a.CreateJob("job-cccccccc", workdir, map[string]interface{}{})
	require.NoError(t, err)

	t.Setenv("SU2_CMD", "definitely-not-a-real-executable-xyz")
	res := a.Run(job)
	require.Equal(t, simjob.ResultFailed, res.Status)
	require.Contains(t, res.Error, "not found")
}

func TestParseCFDLogExtractsLastAndMean(t *testing.T) {
	logs := "Final residual = 1.0\nFinal residual = 0.5\nTime = 10\nCl = 0.8\nCd = 0.02\n"
	metrics := ParseCFDLog(logs)
	require.Equal(t, 0.5, metrics["residual_final_last"])
	require.InDelta(t, 0.75, metrics["residual_final_mean"], 1e-9)
	require.Equal(t, 10.0, metrics["time_last"])
	require.Equal(t, 0.8, metrics["Cl_last"])
	require.Equal(t, 0.02, metrics["Cd_last"])
}

func TestParseMDLog(t *testing.T) {
	logs := "PotEng = -123.4\nTemp = 300\nPress = 1.01\n"
	metrics := ParseMDLog(logs)
	require.Equal(t, -123.4, metrics["PotEng_last"])
	require.Equal(t, 300.0, metrics["Temp_last"])
	require.Equal(t, 1.01, metrics["Press_last"])
}

func TestRegistryRejectsUnknownBackend(t *testing.T) {
	r := NewRegistry(NewCFDDriver(""), NewMDDriver(""))
	_, err := r.Get("not-a-backend")
	require.Error(t, err)
}
