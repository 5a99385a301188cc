// Package main wires the simulator CLI entrypoint.
package main

//nolint:depguard // main wires project-internal modules and zap logging
import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mc-edfvd/simulator/internal/buildinfo"
	"github.com/mc-edfvd/simulator/pkg/decision"
	"github.com/mc-edfvd/simulator/pkg/sim"
	"github.com/mc-edfvd/simulator/pkg/simhttp"
	"github.com/mc-edfvd/simulator/pkg/stats"
	"github.com/mc-edfvd/simulator/pkg/task"
	"github.com/mc-edfvd/simulator/pkg/traceio"
)

const (
	defaultConfigPath = ""
	defaultLogLevel   = "info"

	exitCodeSuccess      = 0
	exitCodeRuntimeError = 1
	exitCodeParseError   = 2
)

func main() {
	code := run(context.Background(), os.Args[1:], defaultRunDeps(), os.Stderr)
	if code != 0 {
		os.Exit(code)
	}
}

type runDeps struct {
	newLogger func(level string) (*zap.Logger, error)
}

func defaultRunDeps() runDeps {
	return runDeps{newLogger: newLogger}
}

func run(ctx context.Context, args []string, deps runDeps, stderr io.Writer) int {
	cfg, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)

		return exitCodeParseError
	}

	logger, err := deps.newLogger(cfg.Run.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "failed to configure logger: %v\n", err)

		return exitCodeRuntimeError
	}

	defer func() {
		_ = logger.Sync()
	}()

	info := buildinfo.Current()
	logger.Info("starting mixed-criticality scheduling simulator",
		zap.String("version", info.Version),
		zap.String("commit", info.GitCommit),
		zap.String("buildDate", info.BuildDate),
		zap.String("inputDir", cfg.Run.InputDir),
		zap.String("outputDir", cfg.Run.OutputDir),
		zap.Int("numCores", cfg.Run.NumCores),
		zap.Bool("deriveSchedulability", cfg.Run.DeriveSchedulability),
	)

	if err := runSimulation(ctx, cfg, logger); err != nil {
		logger.Error("simulation failed", zap.Error(err))

		return exitCodeRuntimeError
	}

	return exitCodeSuccess
}

// runSimulation loads the task set, builds the processor, drives the
// decision-point loop to completion and renders the three output files,
// grounded on driver.c's top-level flow in the original implementation.
func runSimulation(ctx context.Context, cfg runtimeConfig, logger *zap.Logger) error {
	tasks, coreConfigs, err := traceio.Load(cfg.Run.InputDir, logger)
	if err != nil {
		return fmt.Errorf("load task set: %w", err)
	}

	writer, err := traceio.NewWriter(cfg.Run.OutputDir, cfg.Run.NumCores, logger)
	if err != nil {
		return fmt.Errorf("open trace writer: %w", err)
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			logger.Warn("closing trace writer", zap.Error(cerr))
		}
	}()

	runtimeState := task.NewRuntimeState(len(tasks.Tasks))
	processor := sim.NewProcessor(cfg.Run.NumCores)
	st := stats.New(cfg.Run.NumCores)

	var trace sim.Sink = writer

	if cfg.HTTP.Addr != "" {
		recorder := simhttp.NewRecorder()
		trace = &recordingSink{Sink: writer, rec: recorder, processor: processor, stats: st}

		server := startHTTPServer(cfg.HTTP.Addr, recorder, logger)
		defer func() {
			_ = server.Close()
		}()
	}

	simulator := sim.New(tasks, runtimeState, processor, st, trace, sim.Hyperperiod(tasks))
	simulator.Epsilon = cfg.Run.Epsilon

	if err := configureCores(simulator, coreConfigs, cfg, logger); err != nil {
		return err
	}

	if err := simulator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run simulation: %w", err)
	}

	return writer.WriteSummary(coreSummaries(processor), st)
}

// configureCores applies either the file-supplied (x, k) pathway (the
// default §6 requires) or the derived-schedulability pathway
// (--derive-schedulability), aggregating any per-core infeasibility causes
// with multierr rather than stopping at the first (§6 "Error aggregation").
func configureCores(s *sim.Simulator, coreConfigs []traceio.CoreConfig, cfg runtimeConfig, logger *zap.Logger) error {
	if cfg.Run.DeriveSchedulability {
		if err := s.DeriveCoreConfig(); err != nil {
			logger.Warn("some cores were not schedulable under derived (x, k)", zap.Error(err))
		}

		return nil
	}

	if len(coreConfigs) < cfg.Run.NumCores {
		return fmt.Errorf("%w: input_cores.txt supplies %d cores, want %d", sim.ErrInput, len(coreConfigs), cfg.Run.NumCores)
	}

	var aggErr error

	for i := 0; i < cfg.Run.NumCores; i++ {
		s.ApplyCoreConfig(i, coreConfigs[i].XFactor, coreConfigs[i].Threshold)

		if coreConfigs[i].XFactor == 0 {
			aggErr = multierr.Append(aggErr, fmt.Errorf("core %d: %w", i, sim.ErrInfeasibleTaskSet))
		}
	}

	if !s.Processor.AllActive() {
		return multierr.Append(sim.ErrInfeasibleTaskSet, aggErr)
	}

	return nil
}

func coreSummaries(p *sim.Processor) []traceio.CoreSummary {
	out := make([]traceio.CoreSummary, len(p.Cores))
	for i, c := range p.Cores {
		out[i] = traceio.CoreSummary{
			Index:         c.Index,
			TotalTime:     c.TotalTime,
			TotalIdleTime: c.TotalIdleTime,
			State:         c.State.String(),
		}
	}

	return out
}

// recordingSink forwards every event to the plaintext trace sink unchanged
// and additionally pushes a fresh simhttp.State snapshot on every decision
// point, so /status and /metrics reflect the kernel loop's progress without
// it ever calling back into HTTP code directly.
type recordingSink struct {
	sim.Sink

	rec       *simhttp.Recorder
	processor *sim.Processor
	stats     *stats.Stats
}

func (s *recordingSink) DecisionPoint(point decision.Point, critLevel int) {
	s.Sink.DecisionPoint(point, critLevel)
	s.rec.Update(simhttp.NewState(point.Time, critLevel, coreStatuses(s.processor), s.stats))
}

func coreStatuses(p *sim.Processor) []simhttp.CoreStatus {
	out := make([]simhttp.CoreStatus, len(p.Cores))
	for i, c := range p.Cores {
		out[i] = simhttp.CoreStatus{
			Index:     c.Index,
			State:     c.State.String(),
			TotalTime: c.TotalTime,
			Running:   c.Current != nil,
		}
	}

	return out
}

// startHTTPServer serves the opt-in operability surface (§6) from a
// background goroutine while the kernel loop continues synchronously on the
// caller's goroutine, mirroring the teacher's Controller.Run /
// metrics.Exporter separation.
func startHTTPServer(addr string, rec *simhttp.Recorder, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/status", simhttp.NewStatusHandler(rec))
	mux.Handle("/metrics", simhttp.NewMetricsHandler(rec))

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("operability http server stopped", zap.Error(err))
		}
	}()

	logger.Info("serving operability http surface", zap.String("addr", addr))

	return server
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = defaultLogLevel
	}

	cfg := zap.NewProductionConfig()

	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return logger, nil
}

var errInvalidLogLevel = errors.New("invalid log level")

// parseArgs layers CLI flags as the final override on top of
// defaults -> YAML file -> environment, per §6. Only flags the caller
// actually set on the command line participate in the override.
func parseArgs(args []string) (runtimeConfig, error) {
	flagSet := flag.NewFlagSet("simulator", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	configPath := flagSet.String("config", defaultConfigPath, "Path to the simulator YAML run config")
	logLevel := flagSet.String("log-level", "", "Structured log level (debug, info, warn, error)")
	inputDir := flagSet.String("input-dir", "", "Directory containing input.txt and its companions")
	outputDir := flagSet.String("output-dir", "", "Directory to write output.txt, output_<i>.txt and statistics.txt")
	numCores := flagSet.Int("num-cores", 0, "Number of processor cores")
	deriveSchedulability := flagSet.Bool("derive-schedulability", false, "Derive (x, k) via feasibility.Analyze instead of reading input_cores.txt")
	epsilon := flagSet.Float64("epsilon", 0, "Time-equality comparison epsilon")
	httpAddr := flagSet.String("http-addr", "", "Bind address for the opt-in /status and /metrics HTTP surface (empty disables it)")

	if err := flagSet.Parse(args); err != nil {
		return runtimeConfig{}, fmt.Errorf("parse CLI arguments: %w", err)
	}

	cfg, err := loadConfig(strings.TrimSpace(*configPath))
	if err != nil {
		return runtimeConfig{}, err
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Run.LogLevel = strings.TrimSpace(*logLevel)
		case "input-dir":
			cfg.Run.InputDir = strings.TrimSpace(*inputDir)
		case "output-dir":
			cfg.Run.OutputDir = strings.TrimSpace(*outputDir)
		case "num-cores":
			cfg.Run.NumCores = *numCores
		case "derive-schedulability":
			cfg.Run.DeriveSchedulability = *deriveSchedulability
		case "epsilon":
			cfg.Run.Epsilon = *epsilon
		case "http-addr":
			cfg.HTTP.Addr = strings.TrimSpace(*httpAddr)
		}
	})

	if cfg.Run.NumCores <= 0 {
		cfg.Run.NumCores = 1
	}

	if cfg.Run.Epsilon <= 0 {
		cfg.Run.Epsilon = sim.Epsilon
	}

	return cfg, nil
}
