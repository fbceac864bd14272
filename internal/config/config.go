package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = 8080
	defaultDataDir          = "static"
	defaultBaseURL          = "http://localhost:8080"
	defaultMaxRenders       = 4
	defaultTokenTTLHours    = 24
	defaultRenderTimeoutSec = 120
)

// Config describes runtime configuration for the service.
type Config struct {
	Port                 int    `yaml:"port"`
	DataDir              string `yaml:"data_dir"`
	BaseURL              string `yaml:"base_url"`
	JWTSecret            string `yaml:"jwt_secret"`
	TokenTTLHours        int    `yaml:"token_ttl_hours"`
	MaxConcurrentRenders int    `yaml:"max_concurrent_renders"`
	RenderTimeoutSec     int    `yaml:"render_timeout_sec"`
	PersistTasks         bool   `yaml:"persist_tasks"`
}

// Default returns sane defaults for local runs and tests.
func Default() Config {
	return Config{
		Port:                 defaultPort,
		DataDir:              defaultDataDir,
		BaseURL:              defaultBaseURL,
		TokenTTLHours:        defaultTokenTTLHours,
		MaxConcurrentRenders: defaultMaxRenders,
		RenderTimeoutSec:     defaultRenderTimeoutSec,
	}
}

// MapsDir is where uploaded background images are materialized.
func (c Config) MapsDir() string { return filepath.Join(c.DataDir, "maps") }

// ConfigsDir is where rewritten weathermap configs are materialized.
func (c Config) ConfigsDir() string { return filepath.Join(c.DataDir, "configs") }

// FinalMapsDir is where the renderer writes composed map images.
func (c Config) FinalMapsDir() string { return filepath.Join(c.DataDir, "final_maps") }

// TasksDir holds persisted task state when persist_tasks is enabled.
func (c Config) TasksDir() string { return filepath.Join(c.DataDir, "tasks") }

// TokenTTL returns the configured token lifetime.
func (c Config) TokenTTL() time.Duration { return time.Duration(c.TokenTTLHours) * time.Hour }

// RenderTimeout returns the per-task render deadline; zero disables it.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSec) * time.Second
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error. Environment variables
// (WEATHERMAP_PORT, WEATHERMAP_BASE_URL, WEATHERMAP_JWT_SECRET) override
// the file in either case.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) > 0 {
		if err := yaml.Unmarshal(fileData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	cfg = applyEnv(cfg)
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TokenTTLHours <= 0 {
		cfg.TokenTTLHours = defaultTokenTTLHours
	}
	if cfg.RenderTimeoutSec < 0 {
		return cfg, fmt.Errorf("invalid render_timeout_sec: %d (must be >= 0)", cfg.RenderTimeoutSec)
	}
	// validate concurrency explicitly: values < 1 are not allowed
	if cfg.MaxConcurrentRenders < 1 {
		return cfg, fmt.Errorf("invalid max_concurrent_renders: %d (must be >= 1)", cfg.MaxConcurrentRenders)
	}
	return cfg, nil
}

func applyEnv(cfg Config) Config {
	if v := os.Getenv("WEATHERMAP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	if v := os.Getenv("WEATHERMAP_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("WEATHERMAP_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	return cfg
}
