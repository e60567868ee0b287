// Package config handles loading and validating evstore configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level evstore configuration.
type Config struct {
	Driver              string   `yaml:"driver"`
	DBURL               string   `yaml:"db_url"`
	DBUser              string   `yaml:"db_user"`
	DBPassword          string   `yaml:"db_password"`
	MaxOpenConns        int      `yaml:"max_open_conns"`
	LogLevel            string   `yaml:"log_level"`
	LogFormat           string   `yaml:"log_format"`
	MaintenanceInterval Duration `yaml:"maintenance_interval"`
	FanoutWorkers       int      `yaml:"fanout_workers"`
	DefaultLimit        int      `yaml:"default_limit"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads configuration from a YAML or TOML file, picked by the file
// extension. If no path is given, defaults and environment variables are
// used. If a path is given and the file does not exist,
// ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := decode(path, expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// decode unmarshals data into cfg. TOML documents are converted to YAML
// first so both formats share the same field tags and Duration parsing.
func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return err
		}
		data, err = yaml.Marshal(tree.ToMap())
		if err != nil {
			return err
		}
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("driver must be one of: sqlite3, sqlite")
	}
	if c.DBURL == "" {
		return fmt.Errorf("db_url is required")
	}
	if c.MaxOpenConns < 0 {
		return fmt.Errorf("max_open_conns must be >= 0")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}
	if c.MaintenanceInterval.Duration < time.Minute {
		return fmt.Errorf("maintenance_interval must be >= 1m")
	}
	if c.FanoutWorkers < 1 {
		return fmt.Errorf("fanout_workers must be >= 1")
	}
	if c.DefaultLimit < 0 {
		return fmt.Errorf("default_limit must be >= 0")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Driver:              "sqlite3",
		DBURL:               "evstore.db",
		LogLevel:            "info",
		LogFormat:           "text",
		MaintenanceInterval: Duration{1 * time.Hour},
		FanoutWorkers:       4,
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in the raw file with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EVSTORE_DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv("EVSTORE_DB_URL"); v != "" {
		cfg.DBURL = v
	}
	if v := os.Getenv("EVSTORE_DB_USER"); v != "" {
		cfg.DBUser = v
	}
	if v := os.Getenv("EVSTORE_DB_PASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	if v := os.Getenv("EVSTORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("EVSTORE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("EVSTORE_MAINTENANCE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MaintenanceInterval = Duration{d}
		}
	}
	if v := os.Getenv("EVSTORE_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxOpenConns = n
		}
	}
	if v := os.Getenv("EVSTORE_FANOUT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FanoutWorkers = n
		}
	}
	if v := os.Getenv("EVSTORE_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultLimit = n
		}
	}
}
