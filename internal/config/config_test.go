package config

import (
	"log/slog"
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	for _, env := range []string{
		"AES67ENGINE_LOG_LEVEL", "AES67ENGINE_LOG_FORMAT", "AES67ENGINE_INTERFACE_IP",
		"AES67ENGINE_CLOCK_FALLBACK_TIMEOUT_S", "AES67ENGINE_STATS_INTERVAL_MS",
		"AES67ENGINE_METRICS_LISTEN_ADDR",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
	if cfg.LogFormat != defaultLogFormat {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, defaultLogFormat)
	}
	if cfg.DefaultInterfaceIP != defaultInterfaceIP {
		t.Errorf("DefaultInterfaceIP = %q, want %q", cfg.DefaultInterfaceIP, defaultInterfaceIP)
	}
	if cfg.FallbackTimeoutS != defaultFallbackTimeoutS {
		t.Errorf("FallbackTimeoutS = %d, want %d", cfg.FallbackTimeoutS, defaultFallbackTimeoutS)
	}
	if cfg.StatsIntervalMS != defaultStatsIntervalMS {
		t.Errorf("StatsIntervalMS = %d, want %d", cfg.StatsIntervalMS, defaultStatsIntervalMS)
	}
}

func TestEnvVarOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("AES67ENGINE_LOG_LEVEL", "debug")
	t.Setenv("AES67ENGINE_STATS_INTERVAL_MS", "250")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.StatsIntervalMS != 250 {
		t.Errorf("StatsIntervalMS = %d, want 250", cfg.StatsIntervalMS)
	}
}

func TestCLIFlagsPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("AES67ENGINE_LOG_LEVEL", "debug")
	t.Setenv("AES67ENGINE_STATS_INTERVAL_MS", "250")

	cfg, err := Load([]string{"--log-level", "warn", "--stats-interval-ms", "500"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn (CLI should override env)", cfg.LogLevel)
	}
	if cfg.StatsIntervalMS != 500 {
		t.Errorf("StatsIntervalMS = %d, want 500 (CLI should override env)", cfg.StatsIntervalMS)
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	clearEnv(t)
	if _, err := Load([]string{"--log-level", "verbose"}); err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestValidateInvalidLogFormat(t *testing.T) {
	clearEnv(t)
	if _, err := Load([]string{"--log-format", "xml"}); err == nil {
		t.Fatal("expected error for invalid log format, got nil")
	}
}

func TestValidateStatsIntervalBelowMinimum(t *testing.T) {
	clearEnv(t)
	if _, err := Load([]string{"--stats-interval-ms", "10"}); err == nil {
		t.Fatal("expected error for stats interval below the 50ms floor")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
