// Package main implements the money daemon: it builds catalogued providers
// into a session, starts their dependencies, and keeps the session running
// until a shutdown signal, exposing Prometheus metrics and a health
// endpoint along the way.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ryan-d-young/money/config"
	"github.com/ryan-d-young/money/health"
	"github.com/ryan-d-young/money/metric"
	"github.com/ryan-d-young/money/provider"
	"github.com/ryan-d-young/money/session"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "money"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("daemon failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	env, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		return validateProviders(logger)
	}

	metricsRegistry := metric.NewMetricsRegistry()
	if cliCfg.MetricsPort > 0 {
		metricsServer := metric.NewServer(cliCfg.MetricsPort, "/metrics", metricsRegistry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() { _ = metricsServer.Stop() }()
		slog.Info("metrics server listening", "address", metricsServer.Address())
	}

	monitor := health.NewMonitor()
	if cliCfg.HealthPort > 0 {
		healthServer := startHealthServer(cliCfg.HealthPort, monitor)
		defer func() { _ = healthServer.Close() }()
		slog.Info("health server listening", "port", cliCfg.HealthPort)
	}

	s := session.New(
		session.WithCatalog(provider.Default),
		session.WithEnv(env),
		session.WithLogger(logger),
		session.WithMetrics(metricsRegistry),
		session.WithMonitor(monitor),
	)

	return runWithSignalHandling(s, cliCfg)
}

// initializeCLI parses flags and sets up logging.
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting money daemon",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"providers", cliCfg.Providers)

	return cliCfg, logger, false, nil
}

// validateProviders builds every catalogued provider without starting
// anything, reporting wiring problems.
func validateProviders(logger *slog.Logger) error {
	names := provider.Default.Names()
	if len(names) == 0 {
		logger.Warn("no providers catalogued")
		return nil
	}

	var failed int
	for _, name := range names {
		p, err := provider.Default.Build(name)
		if err != nil {
			logger.Error("provider failed validation", "provider", name, "error", err)
			failed++
			continue
		}
		md := p.Metadata()
		logger.Info("provider valid", "provider", name,
			"routers", len(md.Routers), "tables", len(md.Tables), "models", len(md.Models))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d providers failed validation", failed, len(names))
	}
	logger.Info("all providers valid", "count", len(names))
	return nil
}

// startHealthServer serves the session's aggregated health on /healthz.
func startHealthServer(port int, monitor *health.Monitor) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		overall := monitor.Overall(appName)
		w.Header().Set("Content-Type", "application/json")
		if !overall.IsHealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(overall)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server failed", "error", err)
		}
	}()
	return server
}

// runWithSignalHandling starts the session and stops it on SIGINT/SIGTERM.
func runWithSignalHandling(s *session.Session, cliCfg *CLIConfig) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	all, names := parseSelection(cliCfg.Providers)
	selection := session.Providers(names...)
	if all {
		selection = session.All()
	} else if len(names) == 0 {
		selection = session.None()
	}

	if err := s.Start(signalCtx, selection); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	slog.Info("money daemon started")

	<-signalCtx.Done()
	slog.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := s.Stop(shutdownCtx, true); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("money daemon shutdown complete")
	return nil
}
