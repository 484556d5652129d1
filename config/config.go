// Package config loads process settings from the environment, optionally
// seeded from a dotenv file.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"propmarket/audit"
	"propmarket/telemetry"
)

// Config holds every setting the API server reads at startup.
type Config struct {
	DatabaseURL      string        `env:"DATABASE_URL,required"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"30s"`
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret        string        `env:"JWT_SECRET,required"`
	AuditHashKey     string        `env:"AUDIT_HASH_KEY"`

	Recovery  Recovery
	Telemetry Telemetry
}

// Recovery tunes the password recovery flow.
type Recovery struct {
	CallTimeout         time.Duration `env:"RECOVERY_CALL_TIMEOUT" envDefault:"5s"`
	MinResponse         time.Duration `env:"RECOVERY_MIN_RESPONSE" envDefault:"250ms"`
	DetailedResetErrors bool          `env:"RECOVERY_DETAILED_RESET_ERRORS" envDefault:"false"`
}

// Telemetry selects the OpenTelemetry exporters.
type Telemetry struct {
	Enabled         bool   `env:"OTEL_ENABLED" envDefault:"false"`
	Stdout          bool   `env:"OTEL_STDOUT" envDefault:"false"`
	MetricsEndpoint string `env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
}

// Load reads the process environment. When envFile is set its variables are
// loaded first without overriding anything already exported.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	return parse(env.Options{})
}

// FromMap parses vars instead of the process environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.AuditHashKey != "" {
		key, err := hex.DecodeString(c.AuditHashKey)
		if err != nil {
			return fmt.Errorf("config: AUDIT_HASH_KEY is not hex: %w", err)
		}
		if len(key) != audit.KeySize {
			return fmt.Errorf("config: AUDIT_HASH_KEY must decode to %d bytes, got %d", audit.KeySize, len(key))
		}
	}
	if c.Recovery.CallTimeout < 0 || c.Recovery.MinResponse < 0 {
		return fmt.Errorf("config: recovery durations must not be negative")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

// TelemetryConfig adapts the OTEL_* settings for telemetry.Init.
func (c Config) TelemetryConfig(service, version string) telemetry.Config {
	return telemetry.Config{
		Enabled:         c.Telemetry.Enabled,
		Stdout:          c.Telemetry.Stdout,
		MetricsEndpoint: c.Telemetry.MetricsEndpoint,
		ServiceName:     service,
		ServiceVersion:  version,
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown LOG_LEVEL %q", s)
	}
}
