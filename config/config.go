// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the terroir settings from defaults, an optional YAML
// file, TERROIR_* environment variables and command line flags, in that
// order of precedence (flags win).
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input       string  `yaml:"input" mapstructure:"input"`
	Output      string  `yaml:"output" mapstructure:"output"`
	GeoJSON     string  `yaml:"geojson" mapstructure:"geojson"`
	DBPath      string  `yaml:"db_path" mapstructure:"db_path"`
	ThresholdKm float64 `yaml:"threshold_km" mapstructure:"threshold_km"`
	Workers     int     `yaml:"workers" mapstructure:"workers"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPTrace   bool    `yaml:"http_trace" mapstructure:"http_trace"`

	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Wikipedia WikipediaConfig `yaml:"wikipedia" mapstructure:"wikipedia"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// NominatimConfig configures source A.
type NominatimConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff" mapstructure:"backoff"`
}

// WikipediaConfig configures source B.
type WikipediaConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Memoize     bool          `yaml:"memoize" mapstructure:"memoize"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the review API.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// EnvPrefix prefixes every environment override, e.g. TERROIR_NOMINATIM_BASE_URL.
const EnvPrefix = "TERROIR"

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"input":      "input",
	"output":     "output",
	"geojson":    "geojson",
	"db":         "db_path",
	"threshold":  "threshold_km",
	"workers":    "workers",
	"user-agent": "user_agent",
	"trace":      "http_trace",
	"log-level":  "log.level",
	"log-format": "log.format",
	"addr":       "server.addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input", "data/wines.json")
	v.SetDefault("output", "data/geocoded_locations.json")
	v.SetDefault("geojson", "data/wines_map.geojson")
	v.SetDefault("db_path", "data/terroir.duckdb")
	v.SetDefault("threshold_km", 50.0)
	v.SetDefault("workers", 1)
	v.SetDefault("user_agent", "WineMapper/1.0")
	v.SetDefault("http_trace", false)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.min_interval", 1100*time.Millisecond)
	v.SetDefault("nominatim.timeout", 10*time.Second)
	v.SetDefault("nominatim.max_attempts", 3)
	v.SetDefault("nominatim.backoff", 2*time.Second)
	v.SetDefault("wikipedia.base_url", "https://en.wikipedia.org")
	v.SetDefault("wikipedia.min_interval", 200*time.Millisecond)
	v.SetDefault("wikipedia.timeout", 20*time.Second)
	v.SetDefault("wikipedia.memoize", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.addr", "127.0.0.1:8080")
}

// Load builds the configuration. path names an explicit YAML file; when
// empty, terroir.yaml is looked up in the working directory and its absence
// is not an error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("terroir")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional unless named)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, eris.Wrapf(err, "config: bind flag %s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects settings that would break the pacing or the policy.
func (c *Config) Validate() error {
	var errs []error

	if c.ThresholdKm <= 0 {
		errs = append(errs, eris.Errorf("threshold_km must be positive, got %g", c.ThresholdKm))
	}

	if c.Workers < 1 {
		errs = append(errs, eris.Errorf("workers must be at least 1, got %d", c.Workers))
	}

	if strings.TrimSpace(c.UserAgent) == "" {
		errs = append(errs, eris.New("user_agent is required by the geocoding services"))
	}

	if c.Nominatim.MinInterval <= 0 {
		errs = append(errs, eris.Errorf("nominatim.min_interval must be positive, got %s", c.Nominatim.MinInterval))
	}

	if c.Nominatim.MaxAttempts < 1 {
		errs = append(errs, eris.Errorf("nominatim.max_attempts must be at least 1, got %d", c.Nominatim.MaxAttempts))
	}

	if c.Nominatim.Backoff < 0 {
		errs = append(errs, eris.Errorf("nominatim.backoff can't be negative, got %s", c.Nominatim.Backoff))
	}

	if c.Wikipedia.MinInterval <= 0 {
		errs = append(errs, eris.Errorf("wikipedia.min_interval must be positive, got %s", c.Wikipedia.MinInterval))
	}

	if c.Nominatim.Timeout <= 0 || c.Wikipedia.Timeout <= 0 {
		errs = append(errs, eris.New("request timeouts must be positive"))
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, eris.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "config: invalid")
	}

	return nil
}

// InitLogger builds the logger described by cfg, installs it as the global
// zap logger and returns it so the caller can Sync it on exit.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.DisableStacktrace = true
	}

	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}

	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}

	zap.ReplaceGlobals(logger)

	return logger, nil
}
