// Package config provides configuration loading and management for diagramtype.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/diagramtype/detect"
	"github.com/c360studio/diagramtype/detect/rules"
	"github.com/c360studio/diagramtype/source"
)

// Config represents the complete diagramtype configuration
type Config struct {
	Detection DetectionConfig `yaml:"detection"`
	Sources   source.Filter   `yaml:"sources"`
	Watch     WatchConfig     `yaml:"watch"`
	NATS      NATSConfig      `yaml:"nats"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DetectionConfig configures which detectors are registered
type DetectionConfig struct {
	// DisableBuiltins skips the stock Mermaid detectors
	DisableBuiltins bool `yaml:"disable_builtins"`
	// Rules are registered after the built-ins, in file order. A rule that
	// reuses a built-in key replaces that detector in place.
	Rules []rules.Rule `yaml:"rules"`
	// Options is passed verbatim to every detector
	Options map[string]any `yaml:"options"`
}

// WatchConfig configures the file watcher
type WatchConfig struct {
	// DebounceDelay is how long to wait for more changes before reclassifying
	DebounceDelay string `yaml:"debounce_delay"`
}

// NATSConfig configures the NATS responder
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
	// Subject is the request subject the responder listens on
	Subject string `yaml:"subject"`
	// Queue is the queue group shared by responder instances
	Queue string `yaml:"queue"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Sources: source.DefaultFilter(),
		Watch: WatchConfig{
			DebounceDelay: "500ms",
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "diagram.detect",
			Queue:   "diagramtype",
		},
		Metrics: MetricsConfig{
			Addr: ":2112",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	for i, r := range c.Detection.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("detection.rules[%d]: %w", i, err)
		}
	}
	if c.Watch.DebounceDelay != "" {
		d, err := time.ParseDuration(c.Watch.DebounceDelay)
		if err != nil {
			return fmt.Errorf("watch.debounce_delay: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("watch.debounce_delay must be positive")
		}
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required")
	}
	return nil
}

// DetectorOptions returns the detector config bag
func (c *Config) DetectorOptions() detect.Config {
	if c.Detection.Options == nil {
		return nil
	}
	return detect.Config(c.Detection.Options)
}

// GetDebounceDelay returns the debounce delay as a duration
func (c *WatchConfig) GetDebounceDelay() time.Duration {
	if c.DebounceDelay == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

// decodeFile unmarshals the YAML file at path into config
func decodeFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values).
// Rules accumulate: other's rules are appended after this config's rules.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Detection
	if other.Detection.DisableBuiltins {
		c.Detection.DisableBuiltins = true
	}
	c.Detection.Rules = append(c.Detection.Rules, other.Detection.Rules...)
	if len(other.Detection.Options) > 0 {
		if c.Detection.Options == nil {
			c.Detection.Options = make(map[string]any, len(other.Detection.Options))
		}
		for k, v := range other.Detection.Options {
			c.Detection.Options[k] = v
		}
	}

	// Sources
	if len(other.Sources.Extensions) > 0 {
		c.Sources.Extensions = other.Sources.Extensions
	}
	if len(other.Sources.ExcludeDirs) > 0 {
		c.Sources.ExcludeDirs = other.Sources.ExcludeDirs
	}

	// Watch
	if other.Watch.DebounceDelay != "" {
		c.Watch.DebounceDelay = other.Watch.DebounceDelay
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}
	if other.NATS.Queue != "" {
		c.NATS.Queue = other.NATS.Queue
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
