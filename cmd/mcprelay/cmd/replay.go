package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sentinel-gate/mcprelay/internal/adapter/transport/stdio"
	"github.com/sentinel-gate/mcprelay/internal/config"
	"github.com/sentinel-gate/mcprelay/internal/domain/correlate"
	"github.com/sentinel-gate/mcprelay/internal/domain/proxy"
	"github.com/sentinel-gate/mcprelay/internal/domain/replay"
	"github.com/sentinel-gate/mcprelay/internal/domain/session"
	"github.com/sentinel-gate/mcprelay/internal/port/transport"
	"github.com/sentinel-gate/mcprelay/internal/telemetry"
)

var (
	replayTimeout     string
	replayNoHandshake bool
	replayCommand     string
)

var replayCmd = &cobra.Command{
	Use:   "replay <session-file> <proxy-id>",
	Short: "Re-send a captured request against a fresh server process",
	Long: `Load a saved session, find the client-to-server request with the
given proxy id, and replay it against a freshly spawned copy of the
upstream server (not the session's original, long-exited process).

Unless --no-handshake is given (or replay.auto_handshake is set to
false), a synthetic initialize and notifications/initialized pair is
sent first, since the fresh server process has never seen the session's
original handshake. No handshake is sent when the replayed request is
itself an initialize.

The result — including a timeout — is appended to the session file.`,
	Args: cobra.ExactArgs(2),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayTimeout, "timeout", "", "how long to wait for the response (default: config's replay.timeout)")
	replayCmd.Flags().BoolVar(&replayNoHandshake, "no-handshake", false, "skip the synthetic initialize handshake")
	replayCmd.Flags().StringVar(&replayCommand, "upstream", "", "upstream command to spawn (default: config's upstream.command)")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	sessionPath, proxyID := args[0], args[1]

	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if replayCommand != "" {
		cfg.Upstream.Command = replayCommand
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	timeout, err := resolveReplayTimeout(replayTimeout, cfg.Replay.Timeout)
	if err != nil {
		return err
	}

	store, err := session.Load(sessionPath)
	if err != nil {
		return fmt.Errorf("replay: load session: %w", err)
	}

	target, err := store.ByID(proxyID)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	server := stdio.NewSubprocess(cfg.Upstream.Command, cfg.Upstream.Args...)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("replay: start upstream: %w", err)
	}
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	corr := proxy.NewCorrelationMap()
	engine := replay.NewEngine(corr, store, server)

	go readReplayResponses(ctx, server, corr, store, engine)

	if !replayNoHandshake && cfg.Replay.AutoHandshake && correlate.ExtractMethod(target.Raw) != "initialize" {
		if err := engine.Handshake(ctx, timeout); err != nil {
			return fmt.Errorf("replay: handshake: %w", err)
		}
	}

	result, err := engine.Replay(ctx, target.Raw, target.Modified, timeout)
	switch {
	case err != nil && errors.Is(err, replay.ErrTimeout):
		metrics.ReplaysTotal.WithLabelValues("timeout").Inc()
	case err != nil:
		metrics.ReplaysTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("replay: %w", err)
	default:
		metrics.ReplaysTotal.WithLabelValues("ok").Inc()
	}

	store.End()
	if saveErr := store.Save(sessionPath); saveErr != nil {
		return fmt.Errorf("replay: save session: %w", saveErr)
	}

	if result.TimedOut {
		fmt.Printf("replay timed out after %s waiting for a response (sent as proxy id %s)\n", timeout, result.Sent.ProxyID)
		return nil
	}
	fmt.Printf("replay completed in %s (sent %s, received %s)\n", result.Duration, result.Sent.ProxyID, result.Response.ProxyID)
	return nil
}

// readReplayResponses is the standalone replay command's stand-in for a
// pipeline's server-to-client forward loop: the replay Engine never
// reads the server adapter itself (see internal/domain/replay.Engine),
// it only learns of a response through OnForwarded. Without this loop
// running, nothing would ever call server.Read and every Replay/
// Handshake call would hit replay.ErrTimeout.
func readReplayResponses(ctx context.Context, server transport.Adapter, corr *proxy.CorrelationMap, store *session.Store, engine *replay.Engine) {
	for {
		raw, err := server.Read(ctx)
		if err != nil {
			return
		}

		proxyID := uuid.NewString()
		msg := session.ProxyMessage{
			ProxyID:   proxyID,
			Sequence:  store.NextSequence(),
			Timestamp: time.Now().UTC(),
			Direction: session.ServerToClient,
			Transport: session.Stdio,
			Raw:       raw,
			Method:    correlate.ExtractMethod(raw),
		}
		if id, ok := correlate.ExtractID(raw); ok {
			msg.JSONRPCID = id
			msg.HasJSONRPCID = true
		}
		msg.CorrelatedID = corr.Correlate(raw, proxyID)

		store.Append(msg)
		engine.OnForwarded(msg)
	}
}

func resolveReplayTimeout(flagValue, configValue string) (time.Duration, error) {
	s := flagValue
	if s == "" {
		s = configValue
	}
	if s == "" {
		s = "10s"
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("replay: invalid timeout %q: %w", s, err)
	}
	return d, nil
}
