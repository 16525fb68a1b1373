package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all cascade server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath         string `json:"db_path"`
	LogLevel       string `json:"log_level"`
	PoolSize       int    `json:"pool_size"`
	StrictOutcomes bool   `json:"strict_outcomes"`
	MethodTimeout  string `json:"method_timeout"` // Go duration string, empty = no limit
	Scheduler      bool   `json:"scheduler"`
}

func defaultConfig() Config {
	return Config{
		DBPath:    filepath.Join(cascadeDir(), "cascade.db"),
		LogLevel:  "info",
		PoolSize:  10,
		Scheduler: true,
	}
}

func cascadeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cascade"
	}
	return filepath.Join(home, ".cascade")
}

func settingsPath() string {
	return filepath.Join(cascadeDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("CASCADE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CASCADE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CASCADE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("CASCADE_STRICT_OUTCOMES"); v != "" {
		cfg.StrictOutcomes = v == "true" || v == "1"
	}
	if v := os.Getenv("CASCADE_METHOD_TIMEOUT"); v != "" {
		cfg.MethodTimeout = v
	}
	if v := os.Getenv("CASCADE_SCHEDULER"); v != "" {
		cfg.Scheduler = v == "true" || v == "1"
	}

	return cfg
}

// methodTimeout parses the configured timeout, zero when unset or invalid.
func (c Config) methodTimeout() time.Duration {
	if c.MethodTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.MethodTimeout)
	if err != nil {
		return 0
	}
	return d
}
