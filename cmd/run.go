package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"autoprobe/internal/browser"
	"autoprobe/internal/config"
	"autoprobe/internal/core"
	"autoprobe/internal/logger"
	"autoprobe/internal/models"
	"autoprobe/internal/modules"
	"autoprobe/internal/redis"
	"autoprobe/internal/reporter"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

// overrides are the command line values that take precedence over the config file.
type overrides struct {
	URL     string
	Modules []string
}

func (o overrides) apply(cfg *config.Settings) {
	if o.URL != "" {
		cfg.Target.URL = o.URL
	}
	if len(o.Modules) > 0 {
		cfg.Modules = o.Modules
	}
	if outputDir != "" {
		cfg.Reporting.Path = outputDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

// runModules loads the configuration, runs the selected modules against the
// target and reports the results. Errors that leave nothing to report are fatal.
func runModules(ctx context.Context, o overrides) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	o.apply(&cfg)
	closeLog, err := logger.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set up logging:", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	opts, err := cfg.ModuleOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load payloads")
	}
	mods, err := modules.DefaultRegistry.Build(cfg.Modules, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build modules")
	}

	launch := func(ctx context.Context) (browser.Session, error) {
		s, err := browser.Launch(ctx, cfg.Browser)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	orchestrator := core.NewOrchestrator(launch, mods...)

	start := time.Now()
	if err := orchestrator.Attack(ctx, cfg.Target.URL); err != nil {
		if errors.Is(err, core.ErrSessionUnavailable) {
			log.Fatal().Err(err).Msg("Cannot start browser")
		}
		log.Error().Err(err).Msg("Scan failed")
	}
	results := orchestrator.Results()
	report := reporter.NewReport(cfg.Target.URL, start, time.Now(), results)

	sinks, closeSinks := exporters(ctx, cfg)
	defer closeSinks()
	for _, e := range sinks {
		if err := e.Export(ctx, report); err != nil {
			log.Error().Err(err).Msg("Failed to export report")
		}
	}
	printSummary(os.Stdout, results)
}

// exporters builds the configured report sinks. An unreachable Redis is
// skipped with a warning rather than failing the run.
func exporters(ctx context.Context, cfg config.Settings) ([]reporter.Exporter, func()) {
	var out []reporter.Exporter
	closer := func() {}
	if cfg.Reporting.JSONFile != "" {
		e, err := reporter.NewJSONExporter(filepath.Join(cfg.Reporting.Path, cfg.Reporting.JSONFile))
		if err != nil {
			log.Error().Err(err).Msg("Failed to create JSON exporter")
		} else {
			out = append(out, e)
		}
	}
	if cfg.Reporting.TxtFile != "" {
		e, err := reporter.NewTxtExporter(filepath.Join(cfg.Reporting.Path, cfg.Reporting.TxtFile))
		if err != nil {
			log.Error().Err(err).Msg("Failed to create TXT exporter")
		} else {
			out = append(out, e)
		}
	}
	if cfg.Redis.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		list, err := redis.Open(pingCtx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis, proceeding without it.")
		} else {
			log.Info().Str("key", list.Key()).Msg("Successfully connected to Redis.")
			out = append(out, reporter.NewRedisPublisher(list))
			closer = func() { _ = list.Close() }
		}
	}
	return out, closer
}

// printSummary writes one coloured line per module result.
func printSummary(w io.Writer, results []models.ModuleResult) {
	positive := color.New(color.FgRed, color.Bold).SprintFunc()
	negative := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintln(w, "Scan results")
	for _, r := range results {
		status := negative("negative")
		if r.Positive {
			status = positive("POSITIVE")
		}
		fmt.Fprintf(w, "  %-22s %s\n", r.Name, status)
	}
}
