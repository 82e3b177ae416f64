// Command lander runs the host of a lockstep lander match. It connects to the
// relay, admits players, and advances the shared simulation on a fixed tick
// until it is told to quit.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/landerlink/lander/internal/color"
	"github.com/landerlink/lander/internal/config"
	"github.com/landerlink/lander/internal/dispatcher"
	"github.com/landerlink/lander/internal/influx"
	"github.com/landerlink/lander/internal/lander"
	"github.com/landerlink/lander/internal/logging"
	"github.com/landerlink/lander/internal/loop"
	"github.com/landerlink/lander/internal/match"
	intOtel "github.com/landerlink/lander/internal/otel"
	"github.com/landerlink/lander/internal/queue"
	"github.com/landerlink/lander/internal/rng"
	"github.com/landerlink/lander/internal/telemetry"
	"github.com/landerlink/lander/internal/terrain"
	"github.com/landerlink/lander/internal/transport"
	"github.com/landerlink/lander/pkg/protocol"
)

// set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const (
	appName     = "lander"
	dialTimeout = 10 * time.Second
	stopTimeout = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "lander:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet(appName, pflag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	config.RegisterFlags(fs)
	_ = fs.Parse(args)

	// stdout until the log file is known
	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{Level: "info"})
	logger := slogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		if !config.IsNotFound(err) {
			return err
		}
		logger.Warn("Config file not found, using defaults", "dir", *configDir)
	}
	if err := config.BindFlags(fs); err != nil {
		return err
	}

	sessionID := match.NewSessionID()
	sessionStart := time.Now()
	matchCfg := config.GetMatchConfig()
	if matchCfg.Seed == "" {
		matchCfg.Seed = sessionID
		logger.Warn("No seed configured, using the session id", "seed", matchCfg.Seed)
	}
	logLevel := config.GetString("logLevel")

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, appName, sessionID, sessionStart)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	otelCfg := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		MetricInterval: otelCfg.MetricInterval,
		LogWriter:      logFile,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
		SessionID:      sessionID,
		Seed:           matchCfg.Seed,
	})
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		provider, _ = intOtel.New(intOtel.Config{})
	}

	var current atomic.Pointer[match.Match]
	slogManager.Setup(logging.Options{
		File:     logFile,
		Level:    logLevel,
		Provider: provider.LoggerProvider(),
		Context: func() []slog.Attr {
			m := current.Load()
			if m == nil {
				return nil
			}
			s := m.Snapshot()
			return []slog.Attr{slog.String("phase", s.Phase.String()), slog.Uint64("tick", s.Tick)}
		},
	})
	logger = slogManager.Logger().With("session", sessionID)
	logger.Info("Starting lander", "version", Version, "build", BuildDate, "seed", matchCfg.Seed)
	fmt.Printf("lander %s session %s seed %q\nlogging to %s\n", Version, sessionID, matchCfg.Seed, logPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := dispatcher.New(logging.NewDispatcherLogger(logging.NewZerolog(logFile, logLevel, "dispatcher")))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	inbox := queue.NewBounded[protocol.Message](matchCfg.InboxCap)
	relayURL := config.GetString("relay.url")
	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	client, err := transport.Dial(dialCtx, transport.Config{URL: relayURL}, func(msg protocol.Message) {
		if inbox.Push(msg) > 0 {
			logger.Warn("Inbox full, message dropped", "kind", msg.Kind)
		}
	}, logger)
	cancelDial()
	if err != nil {
		d.Close()
		return fmt.Errorf("connecting to relay %s: %w", relayURL, err)
	}
	logger.Info("Connected to relay", "url", relayURL)

	m, err := match.New(matchSetup(matchCfg), rng.New(matchCfg.Seed), client, color.FromName, logger)
	if err != nil {
		d.Close()
		_ = client.Close()
		return fmt.Errorf("creating match: %w", err)
	}
	current.Store(m)
	world := m.World()
	logger.Info("World generated", "points", len(world.Foreground), "flagX", world.Flag.X, "flagY", world.Flag.Y)

	runner, err := loop.New(loop.Config{
		TickInterval: matchCfg.TickInterval,
		ObserveEvery: uint64(max(matchCfg.ObserveEvery, 1)),
	}, loop.Dependencies{
		Match:      m,
		Inbox:      inbox,
		Dispatcher: d,
		Logger:     logger,
		Meter:      provider.Meter(loop.InstrumentationName),
	})
	if err != nil {
		d.Close()
		_ = client.Close()
		return fmt.Errorf("creating loop: %w", err)
	}
	runner.AddObserver("log", telemetry.NewLog(logger).Observe)

	influxManager := influx.NewManager(config.GetInfluxConfig(), logging.NewZerolog(logFile, logLevel, "influx"))
	switch err := influxManager.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
		logger.Debug("Influx telemetry disabled")
	case err != nil:
		logger.Error("Failed to set up influx telemetry", "error", err)
	default:
		runner.AddObserver("influx", telemetry.NewInflux(influxManager, sessionID, runner.Times()).Observe)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-client.Lost():
			logger.Error("Relay connection lost, the match continues locally")
		case <-ctx.Done():
		}
	}()

	con := &console{
		in:     os.Stdin,
		out:    os.Stdout,
		ctl:    &session{runner: runner, match: m},
		quit:   cancel,
		logger: logger,
	}
	go con.Run(ctx)

	if err := runner.Run(ctx); err != nil {
		logger.Error("Loop stopped", "error", err)
	}

	m.Teardown()
	d.Close()
	if err := client.Close(); err != nil {
		logger.Warn("Error closing relay connection", "error", err)
	}
	if err := influxManager.Close(); err != nil {
		logger.Warn("Error closing influx telemetry", "error", err)
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelFlush()
	if err := provider.Flush(flushCtx); err != nil {
		logger.Warn("Error flushing OTel telemetry", "error", err)
	}
	if err := provider.Shutdown(flushCtx); err != nil {
		fmt.Fprintln(os.Stderr, "lander: otel shutdown:", err)
	}
	fmt.Println("bye")
	return nil
}

// matchSetup overrides the default match setup with configured values.
func matchSetup(mc config.MatchConfig) match.Config {
	cfg := match.DefaultConfig()

	tc := config.GetTerrainConfig()
	cfg.Terrain = terrain.Params{
		Width:     tc.Width,
		Segments:  tc.Segments,
		Octaves:   tc.Octaves,
		Roughness: tc.Roughness,
	}
	cfg.Flatness = tc.Flatness
	cfg.Physics = lander.Params(config.GetPhysicsConfig())
	if mc.CommandBacklogCap > 0 {
		cfg.BacklogCap = mc.CommandBacklogCap
	}
	cfg.Horizon = mc.CommandHorizon
	return cfg
}
