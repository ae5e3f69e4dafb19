// Copyright 2025 James Ross
package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jrossdev/cogsim/internal/simjob"
)

// baseAdapter implements the shared create_job/run/parse_results policy
// every backend in the registry follows; what differs per backend is the
// executable env var, default executable name, whether a Linux-subsystem
// bridge is a valid fallback, the skeleton file seeded into a fresh job
// directory, and the log parser (qe-driver has none).
type baseAdapter struct {
	name          string
	envVar        string
	defaultExe    string
	useBridge     bool
	bridgeDistro  string
	skeletonName  string
	skeletonBody  string
	args          func(workdir string) []string
	bridgeCommand func(exe, workdir string) string
	parser        LogParser
}

func (a *baseAdapter) BackendName() string { return a.name }

func (a *baseAdapter) CreateJob(jobID, workdir string, inputs map[string]interface{}) (simjob.Job, error) {
	jobDir := filepath.Join(workdir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return simjob.Job{}, fmt.Errorf("create job dir: %w", err)
	}

	inputsPath := filepath.Join(jobDir, "job_inputs.json")
	if _, err := os.Stat(inputsPath); os.IsNotExist(err) {
		data, err := json.MarshalIndent(inputs, "", "  ")
		if err != nil {
			return simjob.Job{}, fmt.Errorf("marshal inputs: %w", err)
		}
		if err := os.WriteFile(inputsPath, data, 0o644); err != nil {
			return simjob.Job{}, fmt.Errorf("write job_inputs.json: %w", err)
		}
	}

	if a.skeletonName != "" {
		skeletonPath := filepath.Join(jobDir, a.skeletonName)
		if _, err := os.Stat(skeletonPath); os.IsNotExist(err) {
			if err := os.WriteFile(skeletonPath, []byte(a.skeletonBody), 0o755); err != nil {
				return simjob.Job{}, fmt.Errorf("write skeleton: %w", err)
			}
		}
	}

	return simjob.Job{
		JobID:     jobID,
		Backend:   a.name,
		Workdir:   jobDir,
		Inputs:    inputs,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// resolveExecutable reports the configured executable name and probes
// whether it is actually reachable on $PATH, the same shutil.which check
// backend_health performs.
func (a *baseAdapter) resolveExecutable() (string, error) {
	name := a.defaultExe
	if v := os.Getenv(a.envVar); v != "" {
		name = v
	}
	if _, err := exec.LookPath(name); err != nil {
		return name, err
	}
	return name, nil
}

func (a *baseAdapter) Run(job simjob.Job) simjob.Result {
	metricsPath := filepath.Join(job.Workdir, "metrics.json")
	if _, err := os.Stat(metricsPath); err == nil {
		return a.ParseResults(job)
	}

	exeName, _ := a.resolveExecutable()
	args := []string{}
	if a.args != nil {
		args = a.args(job.Workdir)
	}

	res, err := runNative(exeName, args, job.Workdir)
	if err != nil {
		return failedResult(job.JobID, fmt.Sprintf("%s execution error: %v", a.name, err), nil)
	}

	if !res.ran && a.useBridge {
		bridgeDir := translateToBridgePath(job.Workdir)
		cmdline := exeName
		if a.bridgeCommand != nil {
			cmdline = a.bridgeCommand(exeName, bridgeDir)
		}
		res, err = runViaBridge(a.bridgeDistro, cmdline, bridgeDir)
		if err != nil {
			return failedResult(job.JobID, fmt.Sprintf("%s bridge execution error: %v", a.name, err), nil)
		}
	}

	if !res.ran {
		return failedResult(job.JobID, fmt.Sprintf("%s executable %q not found", a.name, exeName), nil)
	}

	logs := []string{res.stdout, res.stderr}
	if res.exitCode != 0 {
		return failedResult(job.JobID, fmtFailed(a.name, res.exitCode), logs)
	}

	if _, err := os.Stat(metricsPath); err == nil {
		return a.ParseResults(job)
	}

	if a.parser != nil {
		combined := res.stdout + "\n" + res.stderr
		metrics := a.parser(combined)
		if len(metrics) > 0 {
			if err := writeMetricsFile(metricsPath, metrics); err != nil {
				return failedResult(job.JobID, fmt.Sprintf("write metrics.json: %v", err), logs)
			}
			return a.ParseResults(job)
		}
	}

	return failedResult(job.JobID, "completed but metrics.json not found", logs)
}

func (a *baseAdapter) ParseResults(job simjob.Job) simjob.Result {
	metricsPath := filepath.Join(job.Workdir, "metrics.json")
	data, err := os.ReadFile(metricsPath)
	if err != nil {
		return failedResult(job.JobID, "metrics.json not found", nil)
	}

	var payload struct {
		Metrics map[string]json.Number `json:"metrics"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return failedResult(job.JobID, fmt.Sprintf("malformed metrics.json: %v", err), nil)
	}

	metrics := make(map[string]float64, len(payload.Metrics))
	for k, v := range payload.Metrics {
		f, err := v.Float64()
		if err != nil {
			continue
		}
		metrics[k] = f
	}

	return simjob.Result{
		JobID:     job.JobID,
		Status:    simjob.ResultCompleted,
		Metrics:   metrics,
		Artifacts: map[string]string{"workdir": job.Workdir},
		UpdatedAt: time.Now().UTC(),
	}
}

func failedResult(jobID, errMsg string, logs []string) simjob.Result {
	return simjob.Result{
		JobID:     jobID,
		Status:    simjob.ResultFailed,
		Metrics:   map[string]float64{},
		Artifacts: map[string]string{},
		Logs:      logs,
		Error:     errMsg,
		UpdatedAt: time.Now().UTC(),
	}
}

func writeMetricsFile(path string, metrics map[string]float64) error {
	payload := map[string]interface{}{"metrics": metrics}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
