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
	"github.com/HannahMarsh/onion-router/internal/metrics"
	"github.com/HannahMarsh/onion-router/internal/model/registry"
	"github.com/HannahMarsh/onion-router/internal/network"
	"github.com/HannahMarsh/onion-router/pkg/infrastructure/logger"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	logLevel := flag.String("log-level", "", "Log level, overrides log_level from config.yml")

	flag.Usage = func() {
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0]); err != nil {
			slog.Error("failed to print usage", "err", err)
		}
		flag.PrintDefaults()
	}

	flag.Parse()

	logger.SetUpLogrusAndSlog(*logLevel)

	// set GOMAXPROCS
	if _, err := maxprocs.Set(); err != nil {
		slog.Error("failed set max procs", "err", err)
		os.Exit(1)
	}

	path, err := config.InitGlobal()
	if err != nil {
		slog.Error("failed to init config", "err", err)
		os.Exit(1)
	}

	cfg := config.GlobalConfig

	if *logLevel == "" {
		logger.SetUpLogrusAndSlog(cfg.LogLevel)
	}

	// scrape targets for every relay and user process of the deployment
	if err = cfg.InitPrometheusConfig(cfg.PrometheusConfigPath(path)); err != nil {
		slog.Error("failed to write prometheus config", "err", err)
	}

	slog.Info("⚡ init registry")

	reg, err := registry.Open(config.GlobalCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open registry", "err", err)
		os.Exit(1)
	}

	server, err := network.Serve(cfg.Registry.Port, reg.Router())
	if err != nil {
		slog.Error("failed to start HTTP server", "err", err)
		os.Exit(1)
	}

	shutdownMetrics := metrics.ServeMetrics(cfg.PrometheusPort)

	slog.Info("🌏 start registry...", "address", cfg.Registry.Address)

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
		slog.Error("registry forced to shutdown", "err", err)
	}
	shutdownMetrics()
	if err = reg.Close(); err != nil {
		slog.Error("failed to close registry", "err", err)
	}
}
