// Package daemon manages the DriftWatch daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Gateway   GatewayConfig   `toml:"gateway"`
	Drift     DriftConfig     `toml:"drift"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// StorageConfig controls on-disk storage.
type StorageConfig struct {
	Dir           string `toml:"dir"`
	RetentionDays int    `toml:"retention_days"` // drift report retention
}

// GatewayConfig controls the prediction gateway.
type GatewayConfig struct {
	QueueSize      int    `toml:"queue_size"`
	PredictTimeout string `toml:"predict_timeout"`
}

// DriftConfig controls drift detection and scheduling.
type DriftConfig struct {
	PSIThreshold  float64 `toml:"psi_threshold"`
	KLThreshold   float64 `toml:"kl_threshold"`
	MinSamples    int     `toml:"min_samples"`
	Window        string  `toml:"window"`
	AutoCheck     bool    `toml:"auto_check"` // run the periodic check loop
	CheckInterval string  `toml:"check_interval"`
	MaxParallel   int     `toml:"max_parallel"`
}

// TelemetryConfig controls observability endpoints.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8090,
			CORSOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Dir:           driftwatchHome(),
			RetentionDays: 90,
		},
		Gateway: GatewayConfig{
			QueueSize:      1024,
			PredictTimeout: "10s",
		},
		Drift: DriftConfig{
			PSIThreshold:  0.2,
			KLThreshold:   0.1,
			MinSamples:    30,
			Window:        "24h",
			AutoCheck:     true,
			CheckInterval: "24h",
			MaxParallel:   4,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads config from ~/.driftwatch/config.toml, falling back to
// defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(driftwatchHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.driftwatch/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(driftwatchHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// driftwatchHome returns the DriftWatch data directory.
func driftwatchHome() string {
	if env := os.Getenv("DRIFTWATCH_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".driftwatch")
}

// Home is exported for use by other packages.
func Home() string {
	return driftwatchHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
