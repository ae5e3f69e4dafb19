// Copyright 2025 James Ross
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jrossdev/cogsim/internal/adapter"
	"github.com/jrossdev/cogsim/internal/config"
	"github.com/jrossdev/cogsim/internal/httpapi"
	"github.com/jrossdev/cogsim/internal/obs"
	"github.com/jrossdev/cogsim/internal/service"
	"github.com/jrossdev/cogsim/internal/store"
	"github.com/jrossdev/cogsim/internal/worker"
)

var version = "dev"

func main() {
	var role string
	var configPath string
	var showVersion bool

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&role, "role", "all", "Role to run: server|worker|all")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		logger.Fatal("failed to open store", obs.Err(err))
	}
	defer st.Close()

	registry := adapter.NewRegistry(
		adapter.NewCFDDriver(cfg.Adapters.BridgeDistro),
		adapter.NewMDDriver(cfg.Adapters.BridgeDistro),
		adapter.NewSU2Driver(),
		adapter.NewCSDriver(),
		adapter.NewQEDriver(cfg.Adapters.BridgeDistro),
	)

	w := worker.New(cfg, st, registry, logger)
	sweeper := worker.NewSweeper(cfg, st, logger)
	svc := service.New(cfg, st, registry, w, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(cfg.HTTP.ShutdownTimeout):
		}
	}()

	metricsSrv := obs.StartHTTPServer(cfg, func(c context.Context) error { return nil })
	defer func() { _ = metricsSrv.Shutdown(context.Background()) }()

	housekeeper := cron.New()
	if _, err := housekeeper.AddFunc(cfg.Engine.PurgeCron, func() {
		deleted, err := svc.PurgeFinished(cfg.Engine.KeepLatest)
		if err != nil {
			logger.Warn("scheduled purge failed", obs.Err(err))
			return
		}
		logger.Info("scheduled purge complete", obs.Int("deleted", deleted))
	}); err != nil {
		logger.Fatal("invalid purge_cron expression", obs.Err(err))
	}

	switch role {
	case "server":
		housekeeper.Start()
		defer housekeeper.Stop()
		runServer(ctx, cfg, svc, logger)
	case "worker":
		go sweeper.Run(ctx)
		if err := w.Run(ctx); err != nil {
			logger.Fatal("worker error", obs.Err(err))
		}
	case "all":
		housekeeper.Start()
		defer housekeeper.Stop()
		go sweeper.Run(ctx)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("worker error", obs.Err(err))
				cancel()
			}
		}()
		runServer(ctx, cfg, svc, logger)
	default:
		logger.Fatal("unknown role", obs.String("role", role))
	}
}

func runServer(ctx context.Context, cfg *config.Config, svc *service.Service, logger *zap.Logger) {
	srv, err := httpapi.NewServer(cfg, svc, logger)
	if err != nil {
		logger.Fatal("failed to construct http server", obs.Err(err))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", obs.Err(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal("http server error", obs.Err(err))
		}
	}
}
