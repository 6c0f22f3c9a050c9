package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath      string
	Providers       string
	LogLevel        string
	LogFormat       string
	Debug           bool
	MetricsPort     int
	HealthPort      int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("MONEY_CONFIG", ""),
		"Path to YAML configuration file, empty for process env only (env: MONEY_CONFIG)")

	flag.StringVar(&cfg.Providers, "providers",
		getEnv("MONEY_PROVIDERS", "all"),
		"Providers to load: all, none, or a comma-separated list (env: MONEY_PROVIDERS)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("MONEY_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: MONEY_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("MONEY_LOG_FORMAT", "json"),
		"Log format: json, text (env: MONEY_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("MONEY_DEBUG", false),
		"Enable debug logging (env: MONEY_DEBUG)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("MONEY_METRICS_PORT", 9090),
		"Prometheus metrics port, 0 to disable (env: MONEY_METRICS_PORT)")

	flag.IntVar(&cfg.HealthPort, "health-port",
		getEnvInt("MONEY_HEALTH_PORT", 8080),
		"Health endpoint port, 0 to disable (env: MONEY_HEALTH_PORT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("MONEY_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: MONEY_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Build catalogued providers, report, and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		return fmt.Errorf("invalid health port: %d", cfg.HealthPort)
	}
	return nil
}

// parseSelection maps the providers flag onto a session selection.
func parseSelection(value string) (all bool, names []string) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all", "true":
		return true, nil
	case "none", "false":
		return false, nil
	}
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return false, names
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - market data ingestion daemon

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run every catalogued provider against a local NATS server
  %s --config=/etc/money/config.yaml

  # Run a subset of providers with debug logging
  %s --providers=ibkr,fred --log-level=debug --log-format=text

  # Run with environment variables
  export MONEY_CONFIG=/etc/money/config.yaml
  export MONEY_NATS_URL=nats://localhost:4222
  %s

  # Check provider wiring without starting anything
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
