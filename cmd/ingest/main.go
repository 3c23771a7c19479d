package main

import (
	"chat-ingest/domain/event"
	customErrors "chat-ingest/errors"
	"chat-ingest/infrastructure/storage"
	"chat-ingest/internal"
	"chat-ingest/normalizer"
	"chat-ingest/runtime"
	"chat-ingest/runtime/workers"
	"chat-ingest/session"
	"chat-ingest/sink"
	"chat-ingest/transport/ws"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK        = 0
	exitRuntime   = 1
	exitConfig    = 2
	exitLoggedOut = 3
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run builds the dependency graph once, runs it until a signal or a
// terminal connection failure, and releases every resource on the way out.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage
	backend, err := storage.OpenBackend(config.StoreBackend, config.StorePath(), logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("storage opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing storage...", "backend", backend.Name)
		_ = backend.Close()
	}()

	// 3. Connection
	dialer := ws.NewDialer(logger, config.GatewayURL)
	presenter := session.NewConsolePresenter(os.Stdout, config.Colours)
	connector := session.NewConnector(logger, config.SessionID, dialer, backend.Auth, presenter, config.RetryPolicy())

	// 4. Supervision & Orchestration
	telemetryChan := make(chan event.Event, config.QueueCapacity)
	sup := workers.NewSupervisor(logger, telemetryChan, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(logger, sup, telemetryChan, connector, backend.Messages,
		normalizer.NewNormalizer(logger), runtime.Options{
			QueueCapacity:        config.QueueCapacity,
			SinkTimeout:          config.SinkTimeout,
			ReconcileInterval:    config.ReconcileInterval(),
			SummaryMaxChars:      config.SummaryMaxChars,
			MetricInterval:       config.MetricInterval,
			LowCapacityThreshold: config.LowCapacityThreshold,
		})
	timeline := sink.NewTimeline(config.TimelineSize)
	orchestrator.Add(sink.NewMessageSink(backend.Messages, logger), timeline)

	if config.DebugPort > 0 {
		debug := internal.NewDebugServer(logger, config.DebugPort).
			With("ingest", func(ctx context.Context) (any, error) { return orchestrator.Status(ctx) }).
			With("backend", func(context.Context) (any, error) { return backend.Name, nil }).
			Handle("/recent", func(context.Context) (any, error) { return timeline.Recent(), nil })
		if sampler, err := internal.NewProcessSampler(int32(os.Getpid())); err != nil {
			logger.Warn("Process stats unavailable", "error", err)
		} else {
			debug.With("process", sampler.Stats)
		}
		orchestrator.AddWorkers(debug)
	}

	// 5. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting ingestion", "session", config.SessionID, "backend", backend.Name, "gateway", config.GatewayURL)
	err = orchestrator.Start(ctx)

	switch {
	case err == nil:
		logger.Info("Program stopped cleanly")
		return exitOK, nil
	case errors.Is(err, customErrors.ErrLoggedOut):
		logger.Error("Session logged out, pairing is required", "error", err)
		if config.ClearOnLogout {
			if clearErr := connector.ClearSession(context.Background()); clearErr != nil {
				logger.Error("Failed to clear session", "error", clearErr)
			}
		}
		return exitLoggedOut, err
	default:
		return exitRuntime, fmt.Errorf("orchestrator error: %w", err)
	}
}
