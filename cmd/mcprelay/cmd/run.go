package cmd

import (
	"context"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sentinel-gate/mcprelay/internal/adapter/outbound/catalog"
	"github.com/sentinel-gate/mcprelay/internal/adapter/transport/stdio"
	"github.com/sentinel-gate/mcprelay/internal/config"
	"github.com/sentinel-gate/mcprelay/internal/domain/intercept"
	"github.com/sentinel-gate/mcprelay/internal/domain/proxy"
	"github.com/sentinel-gate/mcprelay/internal/domain/session"
	"github.com/sentinel-gate/mcprelay/internal/telemetry"
)

var (
	devMode bool
	saveTo  string
)

var runCmd = &cobra.Command{
	Use:   "run [-- command [args...]]",
	Short: "Start the proxy, spawning the configured upstream server",
	Long: `Start mcprelay: read client requests from stdin, relay them to a
spawned upstream MCP server, and relay its responses back to stdout.

Every message that crosses the proxy is recorded. If --save is given,
the session is written there when the proxy exits (and indexed in the
session catalog); otherwise it is discarded once the process ends.

Examples:
  # Use the command configured in mcprelay.yaml
  mcprelay run --save ./session.json

  # Spawn a specific server directly
  mcprelay run -- npx @modelcontextprotocol/server-filesystem /tmp`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging)")
	runCmd.Flags().StringVar(&saveTo, "save", "", "path to save the captured session to on exit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	if len(args) > 0 {
		cfg.Upstream.Command = args[0]
		cfg.Upstream.Args = args[1:]
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger := newLogger(cfg)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	return run(ctx, cfg, logger)
}

// run wires every component together and drives one proxy session to
// completion: session store, intercept engine, both stdio adapters,
// telemetry, and the session catalog.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	if cfg.Telemetry.MetricsAddr != "" {
		mux := stdhttp.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &stdhttp.Server{Addr: cfg.Telemetry.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("metrics listening", "addr", cfg.Telemetry.MetricsAddr)
	}

	var tracer *telemetry.Tracer
	if cfg.Telemetry.TracingEnabled {
		t, err := telemetry.NewTracer(os.Stderr, "mcprelay")
		if err != nil {
			return fmt.Errorf("telemetry: tracer: %w", err)
		}
		tracer = t
		defer tracer.Shutdown(context.Background())
	}

	store := session.New(uuid.NewString(), session.Stdio)
	store.SetServerCommand(strings.TrimSpace(cfg.Upstream.Command + " " + strings.Join(cfg.Upstream.Args, " ")))

	engine := intercept.NewEngine()
	if cfg.Intercept.StartMode == "intercepting" {
		engine.SetMode(intercept.Intercepting)
		// No controller is wired into this command to call Release or
		// SetMode(Passthrough), so every held message stays held until
		// shutdown releases it. Useful only when something else (a test,
		// or a future control surface) drives engine directly.
		logger.Warn("starting in intercepting mode with no controller wired; held messages will not be released until shutdown")
	}

	client := stdio.New(os.Stdin, os.Stdout, nil)

	server := stdio.NewSubprocess(cfg.Upstream.Command, cfg.Upstream.Args...)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("run: start upstream: %w", err)
	}

	observers := &multiObserver{}
	observers.Add(telemetry.NewObserverFanout(metrics, tracer))

	pipeline := proxy.New(store, engine, observers, logger)

	logger.Info("proxy starting",
		"upstream_command", cfg.Upstream.Command,
		"upstream_args", cfg.Upstream.Args,
		"start_mode", cfg.Intercept.StartMode,
	)

	runErr := pipeline.Run(ctx, client, server, session.Stdio)
	store.End()

	if saveTo != "" {
		if err := store.Save(saveTo); err != nil {
			logger.Error("failed to save session", "path", saveTo, "error", err)
		} else if err := indexSession(cfg.Catalog.Path, saveTo, store); err != nil {
			logger.Warn("failed to index session in catalog", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("proxy stopped", "error", runErr)
		return runErr
	}
	logger.Info("proxy stopped")
	return nil
}

// indexSession records path's just-saved session in the catalog so
// "mcprelay sessions" can list it without re-reading every file.
func indexSession(catalogPath, path string, store *session.Store) error {
	idx, err := catalog.Open(catalogPath)
	if err != nil {
		return fmt.Errorf("catalog: open: %w", err)
	}
	defer idx.Close()

	rec := store.ToRecord()
	entry := catalog.Record{
		Path:         path,
		SessionID:    rec.ID,
		Transport:    string(rec.Transport),
		StartedAt:    rec.StartedAt,
		EndedAt:      rec.EndedAt,
		MessageCount: len(rec.Messages),
	}
	return idx.Upsert(entry)
}

// newLogger builds the slog.Logger used for the whole run, writing to
// stderr so it never interleaves with the proxied stdio traffic on stdout.
func newLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level, defaulting
// to Info for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
