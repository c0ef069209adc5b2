// Command meshctl runs the mesh control plane: a bridge to the mesh's
// message broker, the pathfinding engine, and the HTTP/websocket
// surface operators and the mesh itself talk to.
//
// Startup order: load config, init the logger, connect the broker
// bridge, then bring up the HTTP server. Shutdown is signal-driven and
// drains in-flight requests before the broker connection closes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"meshctl/internal/config"
	"meshctl/internal/httpapi"
	"meshctl/internal/logging"
	"meshctl/internal/meshbus"
	"meshctl/internal/metrics"
	"meshctl/internal/routing"
	"meshctl/internal/settings"
	"meshctl/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	go metrics.RunSampler(ctx, m)

	bridge, err := meshbus.NewBridge(cfg, logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mesh broker")
	}
	defer bridge.Close()
	bridge.Start(ctx)

	appSettings := settings.New(cfg.GetSettingsTimeout, cfg.SignalDataTimeout, cfg.RouteCostWeight, cfg.RouteHopsWeight)
	cache := telemetry.NewCache(cfg.TelemetryCacheCapacity)
	store := routing.NewStore()

	server := httpapi.NewServer(httpapi.Deps{
		Config:    cfg,
		Bridge:    bridge,
		Settings:  appSettings,
		Cache:     cache,
		Metrics:   m,
		Logger:    logger,
		Adjacency: store,
	})

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-httpErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("meshctl stopped")
}
