// Package config loads the flat, external-facing configuration surface:
// concurrency, rate limiting, retry limits, and output location.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the flat configuration contract described at the external
// boundary. Every field has a documented default.
type Config struct {
	Concurrency    int    `yaml:"concurrency"`     // 1-100, default 10
	RateLimitMS    uint64 `yaml:"rate_limit_ms"`   // 0 disables per-domain spacing
	MaxRetries     int    `yaml:"max_retries"`     // 0-10, default 3
	OutputDir      string `yaml:"output_dir"`
	StoreDir       string `yaml:"store_dir"`       // default: <output_dir>/.store
	ConnectTimeout int    `yaml:"connect_timeout_seconds"`
	ReadTimeout    int    `yaml:"read_timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	BandwidthLimit int    `yaml:"bandwidth_limit_bytes_per_sec"` // 0 disables the global throughput cap
}

// Default returns the documented defaults with output_dir set to the
// current working directory.
func Default() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		Concurrency:    10,
		RateLimitMS:    0,
		MaxRetries:     3,
		OutputDir:      cwd,
		StoreDir:       "",
		ConnectTimeout: 30,
		ReadTimeout:    300,
		UserAgent:      "",
		BandwidthLimit: 0,
	}
}

// Load builds a Config starting from Default(), overlaying a YAML file
// at path (if it exists), then overlaying FETCHCITE_-prefixed
// environment variables, which take final precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.StoreDir == "" {
		cfg.StoreDir = filepath.Join(cfg.OutputDir, ".store")
	}

	cfg.clamp()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FETCHCITE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("FETCHCITE_RATE_LIMIT_MS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.RateLimitMS = n
		}
	}
	if v := os.Getenv("FETCHCITE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("FETCHCITE_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("FETCHCITE_STORE_DIR"); v != "" {
		cfg.StoreDir = v
	}
	if v := os.Getenv("FETCHCITE_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("FETCHCITE_BANDWIDTH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BandwidthLimit = n
		}
	}
}

func (c *Config) clamp() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Concurrency > 100 {
		c.Concurrency = 100
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
}
