// Package config loads plandag settings through koanf: built-in defaults,
// then an optional YAML or JSON file, then PLANDAG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides, e.g. PLANDAG_WORKER_COUNT.
const EnvPrefix = "PLANDAG_"

type Config struct {
	Port string `koanf:"port"`

	// Auth for /api routes
	APIKey string `koanf:"api_key"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Worker pool
	WorkerCount  int `koanf:"worker_count"`
	MaxQueueSize int `koanf:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// Document sessions
	DocumentTTL time.Duration `koanf:"document_ttl"`
	// Debounce is the quiet period watch mode waits after a change.
	Debounce time.Duration `koanf:"debounce"`

	// DeadlineLookBehind is the fraction of a year before now that a
	// partial MM-DD deadline may still resolve to.
	DeadlineLookBehind float64 `koanf:"deadline_look_behind"`

	// Renderer connection; empty URL disables publishing.
	RendererURL    string `koanf:"renderer_url"`
	RendererAPIKey string `koanf:"renderer_api_key"`

	// PDF
	PDFFallbackPdftotext bool `koanf:"pdf_fallback_pdftotext"`
}

var defaults = map[string]any{
	"port":                   "8090",
	"api_key":                "",
	"log_level":              "info",
	"log_format":             "json",
	"worker_count":           4,
	"max_queue_size":         100,
	"max_upload_bytes":       int64(10 << 20), // 10MB
	"document_ttl":           time.Hour,
	"debounce":               time.Second,
	"deadline_look_behind":   0.25,
	"renderer_url":           "",
	"renderer_api_key":       "",
	"pdf_fallback_pdftotext": true,
}

// Load builds the configuration. path may be empty; a missing file is an
// error only when path was given explicitly.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		k.Set(key, value)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("config file %s: unsupported format (want .yaml, .yml or .json)", path)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return nil
}

// envTransform converts environment variable names to config keys.
// Example: PLANDAG_WORKER_COUNT -> worker_count
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// normalize replaces unusable numeric values with defaults.
func (c *Config) normalize() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = defaults["worker_count"].(int)
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaults["max_queue_size"].(int)
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaults["max_upload_bytes"].(int64)
	}
	if c.DocumentTTL <= 0 {
		c.DocumentTTL = defaults["document_ttl"].(time.Duration)
	}
	if c.Debounce <= 0 {
		c.Debounce = defaults["debounce"].(time.Duration)
	}
}

// Validate checks settings used by every command.
func (c Config) Validate() error {
	if c.DeadlineLookBehind < 0 || c.DeadlineLookBehind >= 1 {
		return fmt.Errorf("deadline_look_behind must be in [0, 1), got %g", c.DeadlineLookBehind)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return errors.New(EnvPrefix + "API_KEY is required")
	}
	return nil
}
