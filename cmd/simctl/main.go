// Copyright 2025 James Ross
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jrossdev/cogsim/internal/adapter"
	"github.com/jrossdev/cogsim/internal/config"
	"github.com/jrossdev/cogsim/internal/engine"
	"github.com/jrossdev/cogsim/internal/experiment"
	"github.com/jrossdev/cogsim/internal/service"
	"github.com/jrossdev/cogsim/internal/store"
	"github.com/jrossdev/cogsim/internal/worker"
)

// simctl drives a Service in-process, the same facade the HTTP edge uses,
// for operators who want queue control without standing up the server.
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	subcmd := os.Args[1]
	args := os.Args[2:]

	var configPath string
	fs := flag.NewFlagSet(subcmd, flag.ExitOnError)
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")

	switch subcmd {
	case "create":
		var backend string
		fs.StringVar(&backend, "backend", "", "Backend adapter name")
		_ = fs.Parse(args)
		svc := mustService(configPath)
		job, err := svc.CreateJob(backend, map[string]interface{}{})
		fatalOn(err)
		printJSON(job)

	case "enqueue":
		var jobID string
		var maxAttempts int
		fs.StringVar(&jobID, "job", "", "Job ID")
		fs.IntVar(&maxAttempts, "max-attempts", 0, "Max attempts (0 = default)")
		_ = fs.Parse(args)
		svc := mustService(configPath)
		rec, err := svc.Enqueue(jobID, maxAttempts)
		fatalOn(err)
		printJSON(rec)

	case "run-next":
		_ = fs.Parse(args)
		svc := mustService(configPath)
		res, err := svc.RunNextQueued()
		fatalOn(err)
		printJSON(res)

	case "status":
		var jobID string
		fs.StringVar(&jobID, "job", "", "Job ID")
		_ = fs.Parse(args)
		svc := mustService(configPath)
		rec, err := svc.QueueStatus(jobID)
		fatalOn(err)
		printJSON(rec)

	case "cancel":
		var jobID, reason string
		fs.StringVar(&jobID, "job", "", "Job ID")
		fs.StringVar(&reason, "reason", "", "Cancellation reason")
		_ = fs.Parse(args)
		svc := mustService(configPath)
		fatalOn(svc.Cancel(jobID, reason))
		fmt.Println("cancelled")

	case "replay":
		var jobID string
		var maxAttempts int
		fs.StringVar(&jobID, "job", "", "Job ID")
		fs.IntVar(&maxAttempts, "max-attempts", 0, "Max attempts (0 = default)")
		_ = fs.Parse(args)
		svc := mustService(configPath)
		rec, err := svc.ReplayDead(jobID, maxAttempts)
		fatalOn(err)
		printJSON(rec)

	case "purge":
		var keepLatest int
		fs.IntVar(&keepLatest, "keep-latest", 0, "Records to keep")
		_ = fs.Parse(args)
		svc := mustService(configPath)
		deleted, err := svc.PurgeFinished(keepLatest)
		fatalOn(err)
		printJSON(map[string]int{"deleted": deleted, "kept_latest": keepLatest})

	case "list":
		var limit int
		fs.IntVar(&limit, "limit", 50, "Max rows")
		_ = fs.Parse(args)
		svc := mustService(configPath)
		jobs, err := svc.ListJobs(limit)
		fatalOn(err)
		printJSON(jobs)

	case "suggest":
		var domain string
		var n int
		fs.StringVar(&domain, "domain", "demo", "Domain name")
		fs.IntVar(&n, "n", 1, "Number of proposals")
		_ = fs.Parse(args)
		svc := mustService(configPath)
		space := experiment.DesignSpace{Bounds: map[string][2]float64{"x": {0, 1}, "y": {0, 1}}}
		objectives := []experiment.ObjectiveSpec{
			{Name: "yield", Direction: experiment.Maximize, Weight: 1},
			{Name: "energy", Direction: experiment.Minimize, Weight: 1},
		}
		results, err := svc.Suggest(domain, service.DemoParaboloidSimulator, space, objectives, nil, n, engine.PenaltyDiscard, 0)
		fatalOn(err)
		printJSON(results)

	default:
		usage()
		os.Exit(1)
	}
}

func mustService(configPath string) *service.Service {
	cfg, err := config.Load(configPath)
	fatalOn(err)
	fatalOn(config.Validate(cfg))

	logger := zap.NewNop()
	st, err := store.New(cfg.Store.Path)
	fatalOn(err)

	registry := adapter.NewRegistry(
		adapter.NewCFDDriver(cfg.Adapters.BridgeDistro),
		adapter.NewMDDriver(cfg.Adapters.BridgeDistro),
		adapter.NewSU2Driver(),
		adapter.NewCSDriver(),
		adapter.NewQEDriver(cfg.Adapters.BridgeDistro),
	)
	w := worker.New(cfg, st, registry, logger)
	return service.New(cfg, st, registry, w, logger)
}

func fatalOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: simctl <create|enqueue|run-next|status|cancel|replay|purge|list|suggest> [flags]")
}
