package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/muralikrish9/cyberroomba/pkg/config"
	"github.com/muralikrish9/cyberroomba/pkg/cve"
	"github.com/muralikrish9/cyberroomba/pkg/finding"
	"github.com/muralikrish9/cyberroomba/pkg/output"
	"github.com/muralikrish9/cyberroomba/pkg/output/dispatcher"
	"github.com/muralikrish9/cyberroomba/pkg/output/hooks"
	"github.com/muralikrish9/cyberroomba/pkg/retry"
	"github.com/muralikrish9/cyberroomba/pkg/schedule"
	"github.com/muralikrish9/cyberroomba/pkg/stage"
	"github.com/muralikrish9/cyberroomba/pkg/store"
	"github.com/muralikrish9/cyberroomba/pkg/tools"
)

// registerFlags binds the shared pipeline flags onto fs.
func registerFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.Var(&cfg.Targets, "t", "target asset (repeatable)")
	fs.StringVar(&cfg.ListFile, "l", "", "file with one scope entry per line")
	fs.StringVar(&cfg.Program, "program", "", "program name owning the targets")
	fs.StringVar(&cfg.PipelineFile, "pipeline", "", "pipeline YAML declaring tools and profiles")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "parallel items per batch")
	fs.DurationVar(&cfg.Stagger, "stagger", cfg.Stagger, "initial launch spacing")
	fs.Float64Var(&cfg.RateLimit, "rate", 0, "tool launches per second, 0 = unlimited")
	fs.IntVar(&cfg.MaxProcs, "max-procs", cfg.MaxProcs, "process-wide cap on tool processes")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "retry attempts per tool invocation")
	fs.StringVar(&cfg.StoreDir, "store", cfg.StoreDir, "document store directory")
	fs.StringVar(&cfg.ArchiveDir, "archive", "", "raw tool output archive directory")
	fs.StringVar(&cfg.FeedFile, "feed", "", "NVD 2.0 CVE feed JSON")
	fs.StringVar(&cfg.WebhookURL, "webhook", "", "Discord webhook URL for alerts")
	fs.StringVar(&cfg.MinSeverity, "min-severity", cfg.MinSeverity, "alert threshold severity")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", 0, "Prometheus metrics port, 0 disables")
	fs.StringVar(&cfg.OTelEndpoint, "otel", "", "OTLP gRPC endpoint for traces")
	fs.StringVar(&cfg.EventsFile, "events", "", "JSONL event stream output path")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose logging")
	fs.BoolVar(&cfg.Silent, "silent", false, "suppress progress output")
}

// parseCommand parses the subcommand flags over production defaults and
// overlays the pipeline file when one is given.
func parseCommand(name string, args []string) (config.Config, *config.Pipeline, error) {
	cfg := config.Defaults()
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	registerFlags(fs, &cfg)
	_ = fs.Parse(args)

	var pipeline *config.Pipeline
	if cfg.PipelineFile != "" {
		p, err := config.LoadPipeline(cfg.PipelineFile)
		if err != nil {
			return cfg, nil, fmt.Errorf("loading pipeline: %w", err)
		}
		pipeline = p
	}
	cfg.Apply(pipeline)
	return cfg, pipeline, nil
}

// runtime bundles the wired pipeline dependencies for one command.
type runtime struct {
	cfg    config.Config
	deps   *stage.Deps
	events *dispatcher.Dispatcher
	logger *slog.Logger
}

// buildRuntime opens the store, wires the event dispatcher with every
// configured integration, and assembles the tool invoker.
func buildRuntime(cfg config.Config, pipeline *config.Pipeline) (*runtime, error) {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	st, err := store.Open(cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", cfg.StoreDir, err)
	}

	disp := dispatcher.New(dispatcher.Config{Async: true})
	disp.RegisterHook(hooks.NewLoggerHook(logger))

	if cfg.EventsFile != "" {
		f, err := os.Create(cfg.EventsFile)
		if err != nil {
			return nil, fmt.Errorf("opening events file: %w", err)
		}
		disp.RegisterWriter(output.NewJSONLWriter(f))
	}
	if cfg.WebhookURL != "" {
		disp.RegisterHook(hooks.NewDiscordHook(cfg.WebhookURL, hooks.DiscordOptions{
			MinSeverity: finding.Parse(cfg.MinSeverity),
			Logger:      logger,
		}))
	}
	if cfg.MetricsPort > 0 {
		prom, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{Port: cfg.MetricsPort})
		if err != nil {
			return nil, fmt.Errorf("starting metrics server: %w", err)
		}
		disp.RegisterHook(prom)
	}
	if cfg.OTelEndpoint != "" {
		otel, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint: cfg.OTelEndpoint,
			Insecure: true,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting trace exporter: %w", err)
		}
		disp.RegisterHook(otel)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Retries

	invoker := &tools.Invoker{
		Retry:      retryCfg,
		Sem:        schedule.NewSemaphore(cfg.MaxProcs),
		ArchiveDir: cfg.ArchiveDir,
		Logger:     logger,
	}
	if cfg.RateLimit > 0 {
		invoker.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	deps := &stage.Deps{
		Store:  st,
		Tools:  invoker,
		Events: disp,
		Logger: logger,
	}
	if pipeline != nil {
		deps.Specs = pipeline.Tool
	}

	return &runtime{cfg: cfg, deps: deps, events: disp, logger: logger}, nil
}

// close drains the async hooks and flushes every writer. Commands must
// reach it on failure paths too, so the fatal run's events and alerts
// go out before the process exits.
func (r *runtime) close() {
	if err := r.events.Close(); err != nil {
		r.logger.Warn("event shutdown", "error", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	if cfg.Silent {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadIndex builds the CVE index from the feed file, or nil when no
// feed is configured.
func loadIndex(cfg config.Config) (cve.Index, error) {
	if cfg.FeedFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(cfg.FeedFile)
	if err != nil {
		return nil, fmt.Errorf("reading CVE feed: %w", err)
	}
	feed, err := cve.ParseFeed(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing CVE feed: %w", err)
	}
	return cve.BuildIndex(feed), nil
}

// requireIndex is loadIndex for commands that cannot run without a feed.
func requireIndex(cfg config.Config) (cve.Index, error) {
	if cfg.FeedFile == "" {
		return nil, fmt.Errorf("a CVE feed is required; pass -feed <nvd-2.0.json>")
	}
	return loadIndex(cfg)
}

// attackProfiles converts pipeline profile rows, falling back to the
// default table.
func attackProfiles(pipeline *config.Pipeline) []stage.AttackProfile {
	if pipeline == nil || len(pipeline.Profiles) == 0 {
		return stage.DefaultProfiles()
	}
	out := make([]stage.AttackProfile, 0, len(pipeline.Profiles))
	for _, p := range pipeline.Profiles {
		out = append(out, stage.AttackProfile{
			Name:     p.Name,
			Tags:     p.Tags,
			Severity: p.Severity,
			Category: p.Category,
		})
	}
	return out
}

func exitWithError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorPrefix()+fmt.Sprintf(format, args...))
	os.Exit(1)
}
