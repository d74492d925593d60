package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HannahMarsh/onion-router/config"
	"github.com/HannahMarsh/onion-router/internal/api/api_functions"
	"github.com/HannahMarsh/onion-router/internal/metrics"
	"github.com/HannahMarsh/onion-router/internal/model/relay"
	"github.com/HannahMarsh/onion-router/internal/network"
	"github.com/HannahMarsh/onion-router/pkg/infrastructure/logger"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	// Define command-line flags
	id := flag.Int("id", -1, "ID of the new relay (required)")
	logLevel := flag.String("log-level", "", "Log level, overrides log_level from config.yml")

	flag.Usage = func() {
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0]); err != nil {
			slog.Error("failed to print usage", "err", err)
		}
		flag.PrintDefaults()
	}

	flag.Parse()

	// Check if the required flag is provided
	if *id < 0 {
		_, _ = fmt.Fprintf(os.Stderr, "Error: the -id flag is required\n")
		flag.Usage()
		os.Exit(2)
	}

	logger.SetUpLogrusAndSlog(*logLevel)

	// set GOMAXPROCS
	if _, err := maxprocs.Set(); err != nil {
		slog.Error("failed set max procs", "err", err)
		os.Exit(1)
	}

	if _, err := config.InitGlobal(); err != nil {
		slog.Error("failed to init config", "err", err)
		os.Exit(1)
	}

	cfg := config.GlobalConfig

	if *logLevel == "" {
		logger.SetUpLogrusAndSlog(cfg.LogLevel)
	}

	if *id >= cfg.NumRelays {
		slog.Error("invalid id", "id", *id, "num_relays", cfg.NumRelays)
		os.Exit(1)
	}

	slog.Info("⚡ init relay", "id", *id)

	transport := api_functions.NewHTTPTransport(api_functions.HostResolver(cfg.HostFor), cfg.TransportTimeout(), cfg.Transport.Compress)

	newRelay, err := relay.NewRelay(*id, cfg, transport)
	if err != nil {
		slog.Error("failed to create relay", "err", err)
		os.Exit(1)
	}

	server, err := network.Serve(newRelay.Address, newRelay.Router())
	if err != nil {
		slog.Error("failed to start HTTP server", "err", err)
		os.Exit(1)
	}

	registryClient := api_functions.NewRegistryClient(cfg.Registry.Address, cfg.TransportTimeout(), 0)
	if err = newRelay.RegisterWithRegistry(config.GlobalCtx, registryClient); err != nil {
		slog.Error("failed to register with registry", "err", err)
	}

	shutdownMetrics := metrics.ServeMetrics(cfg.RelayPrometheusPort(*id))

	slog.Info("🌏 start relay...", "address", fmt.Sprintf("http://%s:%d", cfg.RelayHost, newRelay.Address))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case v := <-quit:
		config.GlobalCancel()
		slog.Info("", "signal.Notify", v)
	case done := <-config.GlobalCtx.Done():
		slog.Info("", "ctx.Done", done)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = server.Shutdown(ctx); err != nil {
		slog.Error("relay forced to shutdown", "err", err)
	}
	shutdownMetrics()
}
