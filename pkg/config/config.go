package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fakexrm/fakexrm/pkg/telemetry"
)

// DefaultFileName is the config file looked up when no path is given.
const DefaultFileName = "xrmorder.yaml"

// Config is the toolkit configuration file.
type Config struct {
	// Schema locates the entity metadata.
	Schema SchemaConfig `yaml:"schema"`

	// Store configures the optional SQLite metadata store.
	Store StoreConfig `yaml:"store"`

	// Telemetry configures logging, tracing, and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// SchemaConfig locates the schema document.
type SchemaConfig struct {
	// Path is a YAML, JSON, or CUE schema document.
	Path string `yaml:"path"`

	// Debounce is how long watch mode waits after a change before reloading.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// StoreConfig configures the SQLite metadata store. When enabled, the schema
// document is imported into the store and references are served from it.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`

	// QueryTimeout bounds each metadata lookup.
	QueryTimeout time.Duration `yaml:"query_timeout" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Schema: SchemaConfig{
			Debounce: 500 * time.Millisecond,
		},
		Store: StoreConfig{
			Path:         "xrmorder.db",
			QueryTimeout: 5 * time.Second,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when set. An empty path falls back to
// DefaultFileName in the working directory, then to the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return Load(DefaultFileName)
	}
	return Default(), nil
}

var validate = validator.New()

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	return nil
}
