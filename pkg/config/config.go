package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

// Config represents the redaction run configuration
type Config struct {
	// Redaction settings
	Redaction struct {
		FillColor string `yaml:"fill_color"` // RRGGBB
		Verify    bool   `yaml:"verify"`
	} `yaml:"redaction"`

	// Processing settings
	Processing struct {
		Workers       int `yaml:"workers"`
		PageWorkers   int `yaml:"page_workers"`
		ProgressEvery int `yaml:"progress_every"`
	} `yaml:"processing"`

	// Logging settings
	Logging struct {
		Level string `yaml:"level"` // debug, info, warn or error
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	config := &Config{}
	config.Redaction.FillColor = "FFFFFF"
	config.Redaction.Verify = false
	config.Processing.Workers = 4
	config.Processing.PageWorkers = 1
	config.Processing.ProgressEvery = 100
	config.Logging.Level = "info"
	return config
}

// LoadConfig loads configuration from the specified file path. Values absent
// from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// If no config file specified, return default config
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads configuration from configFile. If loading fails,
// it returns the default configuration.
func LoadConfigOrDefault(configFile string) *Config {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if _, err := pdf.ParseColor(c.Redaction.FillColor); err != nil {
		return fmt.Errorf("redaction.fill_color: %w", err)
	}
	if c.Processing.Workers < 1 {
		return fmt.Errorf("processing.workers must be at least 1, got %d", c.Processing.Workers)
	}
	if c.Processing.PageWorkers < 1 {
		return fmt.Errorf("processing.page_workers must be at least 1, got %d", c.Processing.PageWorkers)
	}
	if c.Processing.ProgressEvery < 0 {
		return fmt.Errorf("processing.progress_every must not be negative, got %d", c.Processing.ProgressEvery)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// FillColor returns the parsed redaction color
func (c *Config) FillColor() pdf.Color {
	color, err := pdf.ParseColor(c.Redaction.FillColor)
	if err != nil {
		return pdf.White
	}
	return color
}

// ParseLevel converts a level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown level %q", name)
}
