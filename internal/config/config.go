// Package config loads arxmltool settings from file, environment and flags
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nainya/arxmlstore/internal/logger"
	"github.com/nainya/arxmlstore/pkg/arxml"
	"github.com/nainya/arxmlstore/pkg/version"
)

// EnvPrefix prefixes environment overrides, e.g. ARXMLTOOL_SERVER_PORT
const EnvPrefix = "ARXMLTOOL"

// Config is the arxmltool configuration
type Config struct {
	Log            LogConfig    `mapstructure:"log" yaml:"log" json:"log"`
	Parse          ParseConfig  `mapstructure:"parse" yaml:"parse" json:"parse"`
	Server         ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	Watch          WatchConfig  `mapstructure:"watch" yaml:"watch" json:"watch"`
	DefaultVersion string       `mapstructure:"default_version" yaml:"default_version" json:"default_version"`
}

// LogConfig selects level and format of the log output
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" json:"pretty"`
}

// ParseConfig controls how deviations found while loading are handled.
// Policy maps a warning kind (e.g. "unknown-element") to warn, skip or fail.
type ParseConfig struct {
	Strict bool              `mapstructure:"strict" yaml:"strict" json:"strict"`
	Policy map[string]string `mapstructure:"policy" yaml:"policy" json:"policy"`
}

// ServerConfig configures the gRPC service and its observability endpoint
type ServerConfig struct {
	Port        int `mapstructure:"port" yaml:"port" json:"port"`
	MetricsPort int `mapstructure:"metrics_port" yaml:"metrics_port" json:"metrics_port"`
	MaxModels   int `mapstructure:"max_models" yaml:"max_models" json:"max_models"`
}

// WatchConfig configures the watch command
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

// configFileNames are searched in order when no path is given
var configFileNames = []string{
	"arxmltool.yaml",
	".arxmltool.yaml",
}

var supportedLevels = []string{"debug", "info", "warn", "error"}

// ErrConfigNotFound is returned when an explicit config path does not exist
var ErrConfigNotFound = errors.New("config file not found")

// ValidationError is one invalid setting
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid setting
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("config validation errors:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Field)
		sb.WriteString(": ")
		sb.WriteString(err.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Port:        50051,
			MetricsPort: 9090,
			MaxModels:   16,
		},
		Watch:          WatchConfig{Debounce: 300 * time.Millisecond},
		DefaultVersion: version.Latest.Name(),
	}
}

// Load reads configuration from configPath, or from the first of
// arxmltool.yaml and .arxmltool.yaml in the working directory. Environment
// variables prefixed with ARXMLTOOL override file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		v.SetConfigFile(configPath)
	} else {
		for _, name := range configFileNames {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				break
			}
		}
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadFromPath loads the first config file found in dir
func LoadFromPath(dir string) (*Config, error) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.pretty", def.Log.Pretty)
	v.SetDefault("parse.strict", false)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.metrics_port", def.Server.MetricsPort)
	v.SetDefault("server.max_models", def.Server.MaxModels)
	v.SetDefault("watch.debounce", def.Watch.Debounce)
	v.SetDefault("default_version", def.DefaultVersion)
}

// Validate checks every setting and reports all problems at once
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Log.Level != "" && !contains(supportedLevels, c.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unsupported level %q, must be one of: %s", c.Log.Level, strings.Join(supportedLevels, ", ")),
		})
	}

	keys := make([]string, 0, len(c.Parse.Policy))
	for k := range c.Parse.Policy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := arxml.ParseWarningKind(k); err != nil {
			errs = append(errs, ValidationError{Field: "parse.policy", Message: err.Error()})
			continue
		}
		if _, err := arxml.ParseAction(c.Parse.Policy[k]); err != nil {
			errs = append(errs, ValidationError{Field: "parse.policy." + k, Message: err.Error()})
		}
	}

	for field, port := range map[string]int{"server.port": c.Server.Port, "server.metrics_port": c.Server.MetricsPort} {
		if port < 0 || port > 65535 {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("port %d out of range", port)})
		}
	}
	if c.Server.Port != 0 && c.Server.Port == c.Server.MetricsPort {
		errs = append(errs, ValidationError{Field: "server.metrics_port", Message: "must differ from server.port"})
	}
	if c.Server.MaxModels < 1 {
		errs = append(errs, ValidationError{Field: "server.max_models", Message: "must be at least 1"})
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, ValidationError{Field: "watch.debounce", Message: "debounce must be non-negative"})
	}
	if _, err := version.Parse(c.DefaultVersion); err != nil {
		errs = append(errs, ValidationError{Field: "default_version", Message: err.Error()})
	}

	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return errs
	}
	return nil
}

// ParseOptions converts the parse section for arxml.Model.LoadBufferWithOptions.
// Call Validate first; invalid entries are ignored here.
func (c *Config) ParseOptions() arxml.ParseOptions {
	opts := arxml.ParseOptions{Strict: c.Parse.Strict}
	for k, a := range c.Parse.Policy {
		kind, err := arxml.ParseWarningKind(k)
		if err != nil {
			continue
		}
		action, err := arxml.ParseAction(a)
		if err != nil {
			continue
		}
		if opts.Policy == nil {
			opts.Policy = make(map[arxml.WarningKind]arxml.Action)
		}
		opts.Policy[kind] = action
	}
	return opts
}

// Version returns the configured default version for new files
func (c *Config) Version() version.Version {
	v, err := version.Parse(c.DefaultVersion)
	if err != nil {
		return version.Latest
	}
	return v
}

// LoggerConfig converts the log section for logger.NewLogger
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, Pretty: c.Log.Pretty}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
