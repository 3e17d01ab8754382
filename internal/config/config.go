// Package config holds the process-wide bootstrap settings, loaded once
// before the first stream is created. Precedence is CLI flags > env vars
// > defaults, validated eagerly on load.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the process-wide settings. cmd/aes67engine uses the log
// and metrics fields and logs the rest at startup; DefaultInterfaceIP,
// FallbackTimeoutS and StatsIntervalMS are not passed to the Shim, so a
// Stream takes its values from its own StreamConfig, not from here.
type Config struct {
	LogLevel  string
	LogFormat string

	DefaultInterfaceIP string

	// FallbackTimeoutS is the clock fallback timeout setting, in seconds.
	FallbackTimeoutS int

	// StatsIntervalMS is the stats snapshot interval setting, in
	// milliseconds.
	StatsIntervalMS int

	// MetricsListenAddr is the optional Prometheus /metrics listen
	// address; empty disables the exporter.
	MetricsListenAddr string
}

const (
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultInterfaceIP      = "0.0.0.0"
	defaultFallbackTimeoutS = 5
	defaultStatsIntervalMS  = 1000
	defaultMetricsAddr      = ""
)

// envPrefix namespaces every environment variable this package reads.
const envPrefix = "AES67ENGINE_"

// Load parses process configuration from CLI flags and environment
// variables. Precedence: CLI flags > env vars > defaults.
func Load(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("aes67engine", flag.ContinueOnError)
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.DefaultInterfaceIP, "interface-ip", defaultInterfaceIP, "default bind interface for streams that do not override it")
	fs.IntVar(&cfg.FallbackTimeoutS, "clock-fallback-timeout-s", defaultFallbackTimeoutS, "default reference-clock fallback timeout in seconds")
	fs.IntVar(&cfg.StatsIntervalMS, "stats-interval-ms", defaultStatsIntervalMS, "default stats snapshot interval in milliseconds")
	fs.StringVar(&cfg.MetricsListenAddr, "metrics-listen-addr", defaultMetricsAddr, "Prometheus /metrics listen address; empty disables the exporter")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	envMap := map[string]string{
		"log-level":                envPrefix + "LOG_LEVEL",
		"log-format":               envPrefix + "LOG_FORMAT",
		"interface-ip":             envPrefix + "INTERFACE_IP",
		"clock-fallback-timeout-s": envPrefix + "CLOCK_FALLBACK_TIMEOUT_S",
		"stats-interval-ms":        envPrefix + "STATS_INTERVAL_MS",
		"metrics-listen-addr":      envPrefix + "METRICS_LISTEN_ADDR",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "interface-ip":
			cfg.DefaultInterfaceIP = val
		case "clock-fallback-timeout-s":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.FallbackTimeoutS = v
			}
		case "stats-interval-ms":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.StatsIntervalMS = v
			}
		case "metrics-listen-addr":
			cfg.MetricsListenAddr = val
		}
	}
}

func (c *Config) validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	if c.FallbackTimeoutS <= 0 {
		return fmt.Errorf("clock-fallback-timeout-s must be positive, got %d", c.FallbackTimeoutS)
	}
	if c.StatsIntervalMS < 50 {
		return fmt.Errorf("stats-interval-ms must be at least 50, got %d", c.StatsIntervalMS)
	}
	return nil
}

// FallbackTimeout returns FallbackTimeoutS as a time.Duration.
func (c *Config) FallbackTimeout() time.Duration {
	return time.Duration(c.FallbackTimeoutS) * time.Second
}

// StatsInterval returns StatsIntervalMS as a time.Duration.
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalMS) * time.Millisecond
}

// SlogHandler returns a slog.Handler configured with the process's
// format and level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to LogLevel.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
