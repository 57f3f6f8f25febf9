package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"ciphercanvas/internal/carrier"
)

// Config holds the settings of the HTTP service
type Config struct {
	Addr            string        `yaml:"addr"`
	MaxUploadMB     int           `yaml:"max_upload_mb"`
	OutputFormat    string        `yaml:"output_format"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Addr:            ":5000",
		MaxUploadMB:     16,
		OutputFormat:    string(carrier.FormatPNG),
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds a configuration from the defaults, an optional YAML file and
// the environment, in that order of precedence (lowest first).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Addr = getEnv("CIPHERCANVAS_ADDR", cfg.Addr)
	cfg.MaxUploadMB = getEnvInt("CIPHERCANVAS_MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.OutputFormat = getEnv("CIPHERCANVAS_OUTPUT_FORMAT", cfg.OutputFormat)

	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", c.MaxUploadMB)
	}
	if _, err := carrier.ParseFormat(c.OutputFormat); err != nil {
		return fmt.Errorf("output_format: %w", err)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// MaxUploadBytes is the request body limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Format returns the parsed output format. Call Validate first.
func (c *Config) Format() carrier.Format {
	f, err := carrier.ParseFormat(c.OutputFormat)
	if err != nil {
		return carrier.FormatPNG
	}
	return f
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("addr=%s max_upload_mb=%d output_format=%s read_timeout=%s write_timeout=%s",
		c.Addr, c.MaxUploadMB, c.OutputFormat, c.ReadTimeout, c.WriteTimeout)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
