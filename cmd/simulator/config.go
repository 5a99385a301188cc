package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mc-edfvd/simulator/pkg/sim"
)

const (
	envInputDir             = "SIM_INPUT_DIR"
	envOutputDir            = "SIM_OUTPUT_DIR"
	envLogLevel             = "SIM_LOG_LEVEL"
	envNumCores             = "SIM_NUM_CORES"
	envDeriveSchedulability = "SIM_DERIVE_SCHEDULABILITY"
	envEpsilon              = "SIM_EPSILON"
	envHTTPAddr             = "SIM_HTTP_ADDR"
)

// runtimeConfig is the fully-resolved configuration cmd/simulator runs with,
// layered exactly the way the teacher's cmd/shaper/config.go layers
// defaults -> YAML file -> environment -> flags (§6 "Run configuration").
type runtimeConfig struct {
	Run  runConfig
	HTTP httpConfig
}

type runConfig struct {
	InputDir             string
	OutputDir            string
	LogLevel             string
	NumCores             int
	DeriveSchedulability bool
	Epsilon              float64
}

type httpConfig struct {
	Addr string // empty disables the opt-in operability surface
}

type fileConfig struct {
	Run  runFileConfig  `yaml:"run"`
	HTTP httpFileConfig `yaml:"http"`
}

type runFileConfig struct {
	InputDir             *string  `yaml:"inputDir"`
	OutputDir            *string  `yaml:"outputDir"`
	LogLevel             *string  `yaml:"logLevel"`
	NumCores             *int     `yaml:"numCores"`
	DeriveSchedulability *bool    `yaml:"deriveSchedulability"`
	Epsilon              *float64 `yaml:"epsilon"`
}

type httpFileConfig struct {
	Addr *string `yaml:"addr"`
}

func defaultRuntimeConfig() runtimeConfig {
	var cfg runtimeConfig

	cfg.Run.InputDir = "."
	cfg.Run.OutputDir = "."
	cfg.Run.LogLevel = defaultLogLevel
	cfg.Run.NumCores = 1
	cfg.Run.DeriveSchedulability = false
	cfg.Run.Epsilon = sim.Epsilon

	cfg.HTTP.Addr = ""

	return cfg
}

func loadConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()

	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		applyEnvOverrides(&cfg)

		return cfg, nil
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return runtimeConfig{}, fmt.Errorf("read config file %q: %w", trimmed, err)
		}
	} else {
		var fileCfg fileConfig

		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return runtimeConfig{}, fmt.Errorf("decode config file %q: %w", trimmed, err)
		}

		mergeRunConfig(&cfg.Run, fileCfg.Run)
		mergeHTTPConfig(&cfg.HTTP, fileCfg.HTTP)
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

func mergeRunConfig(dst *runConfig, src runFileConfig) {
	assignString(&dst.InputDir, src.InputDir)
	assignString(&dst.OutputDir, src.OutputDir)
	assignString(&dst.LogLevel, src.LogLevel)
	assignInt(&dst.NumCores, src.NumCores)
	assignBool(&dst.DeriveSchedulability, src.DeriveSchedulability)
	assignFloat(&dst.Epsilon, src.Epsilon)
}

func mergeHTTPConfig(dst *httpConfig, src httpFileConfig) {
	assignString(&dst.Addr, src.Addr)
}

func applyEnvOverrides(cfg *runtimeConfig) {
	cfg.Run.InputDir = envString(envInputDir, cfg.Run.InputDir)
	cfg.Run.OutputDir = envString(envOutputDir, cfg.Run.OutputDir)
	cfg.Run.LogLevel = envString(envLogLevel, cfg.Run.LogLevel)
	cfg.Run.NumCores = envInt(envNumCores, cfg.Run.NumCores)
	cfg.Run.DeriveSchedulability = envBool(envDeriveSchedulability, cfg.Run.DeriveSchedulability)
	cfg.Run.Epsilon = envFloat(envEpsilon, cfg.Run.Epsilon)
	cfg.HTTP.Addr = envString(envHTTPAddr, cfg.HTTP.Addr)

	if cfg.Run.NumCores <= 0 {
		cfg.Run.NumCores = 1
	}

	if cfg.Run.Epsilon <= 0 {
		cfg.Run.Epsilon = sim.Epsilon
	}
}

var lookupEnv = os.LookupEnv //nolint:gochecknoglobals // overridden in tests

func assignString(target *string, value *string) {
	if value != nil {
		*target = strings.TrimSpace(*value)
	}
}

func assignInt(target *int, value *int) {
	if value != nil {
		*target = *value
	}
}

func assignFloat(target *float64, value *float64) {
	if value != nil {
		*target = *value
	}
}

func assignBool(target *bool, value *bool) {
	if value != nil {
		*target = *value
	}
}

func envString(key, fallback string) string {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	return trimmed
}

func envInt(key string, fallback int) int {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}

	return parsed
}

func envBool(key string, fallback bool) bool {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return fallback
	}

	return parsed
}
