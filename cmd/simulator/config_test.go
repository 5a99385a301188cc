package main

import (
	"path/filepath"
	"testing"

	"github.com/mc-edfvd/simulator/pkg/sim"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(filepath.Join("testdata", "missing.yaml"))
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}

	if cfg.Run.InputDir != "." || cfg.Run.OutputDir != "." {
		t.Fatalf("expected default directories, got input=%q output=%q", cfg.Run.InputDir, cfg.Run.OutputDir)
	}

	if cfg.Run.LogLevel != defaultLogLevel {
		t.Fatalf("unexpected default log level: %q", cfg.Run.LogLevel)
	}

	if cfg.Run.NumCores != 1 {
		t.Fatalf("expected default numCores 1, got %d", cfg.Run.NumCores)
	}

	if cfg.Run.DeriveSchedulability {
		t.Fatal("expected deriveSchedulability to default to false")
	}

	if cfg.Run.Epsilon != sim.Epsilon {
		t.Fatalf("expected default epsilon %v, got %v", sim.Epsilon, cfg.Run.Epsilon)
	}

	if cfg.HTTP.Addr != "" {
		t.Fatalf("expected http surface disabled by default, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfigAppliesFileOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}

	if cfg.Run.InputDir != "/var/lib/simulator/in" {
		t.Fatalf("expected inputDir override, got %q", cfg.Run.InputDir)
	}

	if cfg.Run.OutputDir != "/var/lib/simulator/out" {
		t.Fatalf("expected outputDir override, got %q", cfg.Run.OutputDir)
	}

	if cfg.Run.LogLevel != "debug" {
		t.Fatalf("expected logLevel override, got %q", cfg.Run.LogLevel)
	}

	if cfg.Run.NumCores != 3 {
		t.Fatalf("expected numCores override, got %d", cfg.Run.NumCores)
	}

	if !cfg.Run.DeriveSchedulability {
		t.Fatal("expected deriveSchedulability override to be true")
	}

	if cfg.Run.Epsilon != 0.0001 {
		t.Fatalf("expected epsilon override, got %v", cfg.Run.Epsilon)
	}

	if cfg.HTTP.Addr != ":9400" {
		t.Fatalf("expected http addr override, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfigAppliesEnvOverrides(t *testing.T) {
	t.Setenv(envInputDir, " /tmp/in ")
	t.Setenv(envOutputDir, " /tmp/out ")
	t.Setenv(envLogLevel, "warn")
	t.Setenv(envNumCores, "5")
	t.Setenv(envDeriveSchedulability, "true")
	t.Setenv(envEpsilon, "0.01")
	t.Setenv(envHTTPAddr, ":9500")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}

	if cfg.Run.InputDir != "/tmp/in" {
		t.Fatalf("expected env inputDir override, got %q", cfg.Run.InputDir)
	}

	if cfg.Run.OutputDir != "/tmp/out" {
		t.Fatalf("expected env outputDir override, got %q", cfg.Run.OutputDir)
	}

	if cfg.Run.LogLevel != "warn" {
		t.Fatalf("expected env logLevel override, got %q", cfg.Run.LogLevel)
	}

	if cfg.Run.NumCores != 5 {
		t.Fatalf("expected env numCores override, got %d", cfg.Run.NumCores)
	}

	if !cfg.Run.DeriveSchedulability {
		t.Fatal("expected env deriveSchedulability override to be true")
	}

	if cfg.Run.Epsilon != 0.01 {
		t.Fatalf("expected env epsilon override, got %v", cfg.Run.Epsilon)
	}

	if cfg.HTTP.Addr != ":9500" {
		t.Fatalf("expected env http addr override, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfigClampsNonPositiveOverrides(t *testing.T) {
	t.Setenv(envNumCores, "-4")
	t.Setenv(envEpsilon, "0")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}

	if cfg.Run.NumCores != 1 {
		t.Fatalf("expected non-positive numCores to clamp to 1, got %d", cfg.Run.NumCores)
	}

	if cfg.Run.Epsilon != sim.Epsilon {
		t.Fatalf("expected non-positive epsilon to clamp to default, got %v", cfg.Run.Epsilon)
	}
}

func TestLoadConfigReturnsDecodeError(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(filepath.Join("testdata", "malformed.yaml"))
	if err == nil {
		t.Fatal("expected a decode error for malformed YAML")
	}
}
