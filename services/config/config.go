// Package config loads the service configuration from YAML with env
// overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	ch "rulebacktest/services/clickhouse"
	"rulebacktest/services/engine"
)

// Config is the full service configuration.
type Config struct {
	Listen     string        `yaml:"listen"`
	Debug      bool          `yaml:"debug"`
	ClickHouse ch.Config     `yaml:"clickhouse"`
	Backtest   engine.Config `yaml:"backtest"`
	Screen     ScreenConfig  `yaml:"screen"`
}

// ScreenConfig bounds the batch screening fan-out.
type ScreenConfig struct {
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen: ":8080",
		ClickHouse: ch.Config{
			DSN:      "clickhouse://default:@localhost:9000?secure=false&compress=lz4",
			Database: "market",
			Table:    "candles_daily",
		},
		Backtest: engine.DefaultConfig(),
		Screen:   ScreenConfig{Workers: 4},
	}
}

// Load reads a YAML file over the defaults, then applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Backtest.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("CLICKHOUSE_DSN")); v != "" {
		cfg.ClickHouse.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("CH_DATABASE")); v != "" {
		cfg.ClickHouse.Database = v
	}
	if v := strings.TrimSpace(os.Getenv("CH_TABLE")); v != "" {
		cfg.ClickHouse.Table = v
	}
}

// NewLogger builds the process logger.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
