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
	"github.com/HannahMarsh/onion-router/internal/model/user"
	"github.com/HannahMarsh/onion-router/internal/network"
	"github.com/HannahMarsh/onion-router/pkg/infrastructure/logger"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	id := flag.Int("id", -1, "ID of the user (required)")
	logLevel := flag.String("log-level", "", "Log level, overrides log_level from config.yml")

	flag.Usage = func() {
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0]); err != nil {
			slog.Error("failed to print usage", "err", err)
		}
		flag.PrintDefaults()
	}

	flag.Parse()

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

	slog.Info("⚡ init user", "id", *id)

	transport := api_functions.NewHTTPTransport(api_functions.HostResolver(cfg.HostFor), cfg.TransportTimeout(), cfg.Transport.Compress)
	registryClient := api_functions.NewRegistryClient(cfg.Registry.Address, cfg.TransportTimeout(), cfg.RegistryCacheTTL())

	newUser := user.NewUser(*id, cfg, registryClient, transport, nil)

	server, err := network.Serve(newUser.Address, newUser.Router())
	if err != nil {
		slog.Error("failed to start HTTP server", "err", err)
		os.Exit(1)
	}

	shutdownMetrics := metrics.ServeMetrics(cfg.UserPrometheusPort(*id))

	slog.Info("🌏 start user...", "address", fmt.Sprintf("http://%s:%d", cfg.UserHost, newUser.Address))

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
		slog.Error("user forced to shutdown", "err", err)
	}
	shutdownMetrics()
}
