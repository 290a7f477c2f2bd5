// Package config loads intentverify settings from defaults, an optional
// config file, INTENTVERIFY_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/netintent/internal/logging"
	"github.com/signalsfoundry/netintent/internal/observability"
	"github.com/signalsfoundry/netintent/internal/report"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. INTENTVERIFY_LOG_LEVEL.
const EnvPrefix = "INTENTVERIFY"

type Config struct {
	Dataset string        `mapstructure:"dataset"`
	Workers int           `mapstructure:"workers"`
	Log     LogConfig     `mapstructure:"log"`
	Report  ReportConfig  `mapstructure:"report"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Backend string `mapstructure:"backend"`
}

type ReportConfig struct {
	// Format is json, jsonl or table. Empty picks table on a terminal and
	// json otherwise.
	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`
	// Color is auto, always or never.
	Color string `mapstructure:"color"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	ServiceName string  `mapstructure:"service_name"`
}

type ServeConfig struct {
	// Interval re-verifies the dataset periodically; zero verifies once.
	Interval time.Duration `mapstructure:"interval"`
}

var defaults = map[string]any{
	"dataset":              "",
	"workers":              0,
	"log.level":            "info",
	"log.format":           "text",
	"log.backend":          "slog",
	"report.format":        "",
	"report.verbose":       false,
	"report.color":         "auto",
	"metrics.addr":         ":9090",
	"grpc.addr":            ":50051",
	"tracing.enabled":      false,
	"tracing.exporter":     "stdout",
	"tracing.endpoint":     "",
	"tracing.sample_ratio": 1.0,
	"tracing.service_name": "intentverify",
	"serve.interval":       time.Duration(0),
}

// New returns a viper instance carrying the defaults and the environment
// binding. Keys use dots; the matching variables use underscores.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds flags by key. The flag named by each value must exist in fs.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("config: flag --%s for %s is not defined", name, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads file, when given, and decodes the merged settings. The file
// type follows its extension (yaml, yml, toml, json).
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Report.Format != "" {
		if _, err := report.ParseFormat(c.Report.Format); err != nil {
			errs = append(errs, err)
		}
	}
	switch strings.ToLower(c.Report.Color) {
	case "", "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("report.color must be auto, always or never, got %q", c.Report.Color))
	}
	switch strings.ToLower(c.Log.Backend) {
	case "", "slog", "zap":
	default:
		errs = append(errs, fmt.Errorf("log.backend must be slog or zap, got %q", c.Log.Backend))
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter must be stdout or otlp, got %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %v", c.Tracing.SampleRatio))
	}
	if c.Serve.Interval < 0 {
		errs = append(errs, fmt.Errorf("serve.interval must not be negative, got %s", c.Serve.Interval))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format, Backend: c.Log.Backend}
}

// TracingSettings returns the tracer settings.
func (c *Config) TracingSettings() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    strings.ToLower(c.Tracing.Exporter),
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// ReportFormat resolves the report format. An empty setting picks table
// when stdout is a terminal and json otherwise.
func (c *Config) ReportFormat(terminal bool) report.Format {
	if f, err := report.ParseFormat(c.Report.Format); err == nil {
		return f
	}
	if terminal {
		return report.FormatTable
	}
	return report.FormatJSON
}

// ReportColor resolves the colour setting against whether the output is a
// terminal.
func (c *Config) ReportColor(terminal bool) bool {
	switch strings.ToLower(c.Report.Color) {
	case "always":
		return true
	case "never":
		return false
	default:
		return terminal
	}
}
