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
	"github.com/HannahMarsh/onion-router/internal/network"
	"github.com/HannahMarsh/onion-router/pkg/infrastructure/logger"
	"go.uber.org/automaxprocs/maxprocs"
)

// Runs the registry, every relay and every user in a single process.
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

	if _, err := config.InitGlobal(); err != nil {
		slog.Error("failed to init config", "err", err)
		os.Exit(1)
	}

	cfg := config.GlobalConfig

	if *logLevel == "" {
		logger.SetUpLogrusAndSlog(cfg.LogLevel)
	}

	slog.Info("⚡ launching network", "relays", cfg.NumRelays, "users", cfg.NumUsers)

	nw, err := network.Launch(config.GlobalCtx, cfg)
	if err != nil {
		slog.Error("failed to launch network", "err", err)
		os.Exit(1)
	}

	// every participant shares this process, so one endpoint covers them all
	shutdownMetrics := metrics.ServeMetrics(cfg.PrometheusPort)

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
	nw.Shutdown(ctx)
	shutdownMetrics()
}
