// Copyright 2025 James Ross
package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("WORKER_COUNT")
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Worker.Count != 4 {
		t.Fatalf("expected default worker count 4, got %d", cfg.Worker.Count)
	}
	if cfg.Store.Path == "" {
		t.Fatalf("expected default store path")
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Worker.Count = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for worker.count < 1")
	}

	cfg = defaultConfig()
	cfg.Worker.IdlePollMax = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for idle_poll_max < idle_poll_min")
	}

	cfg = defaultConfig()
	cfg.Store.Path = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for empty store path")
	}
}
