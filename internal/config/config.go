// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads runctl configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tombee/runcontrol/internal/dispatch"
	"github.com/tombee/runcontrol/internal/log"
	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// maxCompletionDelay bounds session.completion_delay. Larger values only
// slow every command down.
const maxCompletionDelay = 64

// Config represents the complete runctl configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Journal JournalConfig `yaml:"journal"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is trace, debug, info, warn or error.
	// Environment: LOG_LEVEL
	// Default: info
	Level string `yaml:"level"`

	// Format is json or text.
	// Environment: LOG_FORMAT
	// Default: text
	Format string `yaml:"format"`

	// AddSource adds file and line to every record.
	// Environment: LOG_SOURCE
	AddSource bool `yaml:"add_source"`
}

// SessionConfig configures run-control sessions.
type SessionConfig struct {
	// CompletionDelay is the number of extra dispatch turns a command
	// completion waits so that events raised before it are applied first.
	// Zero disables the delay.
	// Environment: RUNCTL_COMPLETION_DELAY
	// Default: 2
	CompletionDelay int `yaml:"completion_delay"`

	// FrameProvider makes the simulated stack service available, which
	// step-return needs.
	// Default: true
	FrameProvider bool `yaml:"frame_provider"`
}

// JournalConfig configures the SQLite event journal.
type JournalConfig struct {
	// Enabled turns on journaling of published events.
	Enabled bool `yaml:"enabled"`

	// Path is the database file. Setting RUNCTL_JOURNAL_PATH also enables
	// the journal.
	// Environment: RUNCTL_JOURNAL_PATH
	// Default: <data dir>/journal.db
	Path string `yaml:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry spans.
type TracingConfig struct {
	// Enabled prints spans to the console.
	// Environment: RUNCTL_TRACING
	Enabled bool `yaml:"enabled"`

	// Pretty indents exported spans.
	Pretty bool `yaml:"pretty"`

	// SampleRate is the fraction of traces kept, from 0 to 1.
	// Default: 1
	SampleRate float64 `yaml:"sample_rate"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled prints collected metrics after a replay.
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			CompletionDelay: dispatch.DefaultCompletionDelay,
			FrameProvider:   true,
		},
		Tracing: TracingConfig{
			Pretty:     true,
			SampleRate: 1,
		},
	}
}

// Load reads configuration from configPath, if given, then applies
// environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &rcerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &rcerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values that a partial file left empty.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Journal.Path == "" {
		c.Journal.Path = defaultJournalPath()
	}
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = parseBool(val)
	}
	if val := os.Getenv("RUNCTL_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if parseBool(os.Getenv("RUNCTL_DEBUG")) {
		c.Log.Level = "debug"
		c.Log.AddSource = true
	}

	if val := os.Getenv("RUNCTL_COMPLETION_DELAY"); val != "" {
		if delay, err := strconv.Atoi(val); err == nil {
			c.Session.CompletionDelay = delay
		}
	}

	if val := os.Getenv("RUNCTL_JOURNAL_PATH"); val != "" {
		c.Journal.Path = val
		c.Journal.Enabled = true
	}

	if val := os.Getenv("RUNCTL_TRACING"); val != "" {
		c.Tracing.Enabled = parseBool(val)
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []string

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Session.CompletionDelay < 0 || c.Session.CompletionDelay > maxCompletionDelay {
		errs = append(errs, fmt.Sprintf("session.completion_delay must be between 0 and %d, got %d", maxCompletionDelay, c.Session.CompletionDelay))
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// LoggerConfig converts the log section for internal/log, writing to out.
func (c *Config) LoggerConfig(out io.Writer) *log.Config {
	return &log.Config{
		Level:     c.Log.Level,
		Format:    log.Format(c.Log.Format),
		Output:    out,
		AddSource: c.Log.AddSource,
	}
}

func parseBool(val string) bool {
	return val == "1" || strings.ToLower(val) == "true"
}
