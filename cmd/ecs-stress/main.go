package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/armon/go-metrics"
	"github.com/pkg/profile"
	"github.com/plus3/worldcore/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, eris.ToString(err, false))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	flagCfg := DefaultConfig()

	cmd := &cobra.Command{
		Use:           "ecs-stress",
		Short:         "Run an ECS stress workload and print a report",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := DefaultConfig()
			if configPath != "" {
				loaded, err := Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			applyFlags(cmd, cfg, flagCfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to a TOML config file.")
	f.DurationVar(&flagCfg.Run.Duration, "duration", flagCfg.Run.Duration, "The total duration the test should run for.")
	f.IntVar(&flagCfg.Run.Entities, "entities", flagCfg.Run.Entities, "The target number of live entities.")
	f.StringVar(&flagCfg.Run.Mode, "mode", flagCfg.Run.Mode, "Storage to exercise: world or archetype.")
	f.BoolVar(&flagCfg.Run.RecycleIndices, "recycle", flagCfg.Run.RecycleIndices, "Reuse freed entity indices (world mode).")
	f.StringVar(&flagCfg.Run.Profile, "profile", flagCfg.Run.Profile, "Profile to capture: cpu, mem or alloc.")
	f.BoolVar(&flagCfg.Run.GCPauseMetrics, "gc-pause-metrics", flagCfg.Run.GCPauseMetrics, "Enable detailed GC pause metrics in the report.")
	f.StringVar(&flagCfg.Logging.Level, "log-level", flagCfg.Logging.Level, "Log level.")
	f.StringVar(&flagCfg.Logging.Format, "log-format", flagCfg.Logging.Format, "Log format: console or json.")
	f.StringVar(&flagCfg.Metrics.StatsdAddr, "statsd", flagCfg.Metrics.StatsdAddr, "Send metrics to this statsd address.")
	return cmd
}

// applyFlags copies explicitly set flags over cfg so they win over the file.
func applyFlags(cmd *cobra.Command, cfg, flags *Config) {
	changed := cmd.Flags().Changed
	if changed("duration") {
		cfg.Run.Duration = flags.Run.Duration
	}
	if changed("entities") {
		cfg.Run.Entities = flags.Run.Entities
	}
	if changed("mode") {
		cfg.Run.Mode = flags.Run.Mode
	}
	if changed("recycle") {
		cfg.Run.RecycleIndices = flags.Run.RecycleIndices
	}
	if changed("profile") {
		cfg.Run.Profile = flags.Run.Profile
	}
	if changed("gc-pause-metrics") {
		cfg.Run.GCPauseMetrics = flags.Run.GCPauseMetrics
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.Logging.Level
	}
	if changed("log-format") {
		cfg.Logging.Format = flags.Logging.Format
	}
	if changed("statsd") {
		cfg.Metrics.StatsdAddr = flags.Metrics.StatsdAddr
	}
}

func newLogger(cfg LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer io.Writer = os.Stderr
	if cfg.Format != "json" {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// newMetrics returns nil metrics and a no-op stop func when no sink is set.
func newMetrics(cfg MetricsConfig) (*metrics.Metrics, func(), error) {
	if cfg.StatsdAddr == "" {
		return nil, func() {}, nil
	}
	sink, err := metrics.NewStatsdSink(cfg.StatsdAddr)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "statsd sink %s", cfg.StatsdAddr)
	}
	mcfg := metrics.DefaultConfig("ecs-stress")
	mcfg.EnableHostname = false
	m, err := metrics.New(mcfg, sink)
	if err != nil {
		sink.Shutdown()
		return nil, nil, eris.Wrap(err, "metrics")
	}
	return m, sink.Shutdown, nil
}

func startProfile(cfg RunConfig) interface{ Stop() } {
	var mode func(*profile.Profile)
	switch cfg.Profile {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	case "alloc":
		mode = profile.MemProfileAllocs
	default:
		return nil
	}
	return profile.Start(mode, profile.ProfilePath(cfg.ProfilePath), profile.NoShutdownHook, profile.Quiet)
}

func run(ctx context.Context, cfg *Config, out io.Writer) error {
	logger := newLogger(cfg.Logging)
	logger.Info().
		Str("mode", cfg.Run.Mode).
		Int("entities", cfg.Run.Entities).
		Dur("duration", cfg.Run.Duration).
		Msg("starting ECS stress test")

	var opts []ecs.Option
	m, stopMetrics, err := newMetrics(cfg.Metrics)
	if err != nil {
		return err
	}
	defer stopMetrics()
	if m != nil {
		opts = append(opts, ecs.WithMetrics(m))
	}

	sim := newSimulation(cfg.Run, opts, logger)
	logger.Info().Int("population", sim.Population()).Msg("population complete")

	report := &Report{
		Duration:       cfg.Run.Duration,
		Entities:       cfg.Run.Entities,
		Mode:           cfg.Run.Mode,
		RecycleIndices: cfg.Run.RecycleIndices,
		GCPauseMetrics: cfg.Run.GCPauseMetrics,
	}

	if p := startProfile(cfg.Run); p != nil {
		defer p.Stop()
	}

	runtime.ReadMemStats(&report.MemStatsStart)
	runSimulation(ctx, sim, cfg.Run.Duration, report, newFrameHistory(120, time.Second, logger))
	runtime.ReadMemStats(&report.MemStatsEnd)

	report.FinalPopulation = sim.Population()
	report.Summary = sim.Summary()
	logger.Info().
		Int64("updates", report.TotalUpdates).
		Dur("elapsed", report.TotalTime).
		Msg("simulation finished")

	fmt.Fprintln(out, "\n\n--- Stress Test Report ---")
	if err := report.Generate(out); err != nil {
		return eris.Wrap(err, "generate report")
	}
	fmt.Fprintln(out, "--- End of Report ---")
	return nil
}

func runSimulation(ctx context.Context, sim Simulation, duration time.Duration, report *Report, history *frameHistory) {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	startTime := time.Now()
	lastFrameTime := startTime

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			deltaTime := time.Since(lastFrameTime)
			lastFrameTime = time.Now()

			updateStart := time.Now()
			sim.Step(deltaTime.Seconds())
			updateDuration := time.Since(updateStart)

			report.UpdateTime.Samples = append(report.UpdateTime.Samples, updateDuration)
			report.TotalUpdates++
			history.Record(updateDuration)
			history.MaybeLog(lastFrameTime, sim.Population())
		}
	}

	report.TotalTime = time.Since(startTime)
	report.UpdateTime.Finalize()
}
