// Package config loads the service configuration from a YAML file with
// defaults filled in, struct-tag validation, and environment overrides
// for the deploy-sensitive values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"trendfilter/internal/filter"
	"trendfilter/internal/model"
)

// Profile is a named filter parameter set. Optional fields fall back to
// the engine defaults, so a profile only lists what it changes.
type Profile struct {
	Type           string   `yaml:"type"`
	Source         string   `yaml:"source"`
	Quantity       *float64 `yaml:"quantity"`
	Scale          string   `yaml:"scale"`
	Period         *int     `yaml:"period"`
	SmoothRange    *bool    `yaml:"smooth_range"`
	SmoothPeriod   *int     `yaml:"smooth_period"`
	AverageValues  *bool    `yaml:"average_values"`
	AverageSamples *int     `yaml:"average_samples"`
}

// Params resolves the profile against the engine defaults.
func (p Profile) Params() filter.Params {
	out := filter.DefaultParams()
	if p.Type != "" {
		out.Type = filter.FilterType(p.Type)
	}
	if p.Source != "" {
		out.Source = filter.MovementSource(p.Source)
	}
	if p.Quantity != nil {
		out.Quantity = *p.Quantity
	}
	if p.Scale != "" {
		out.Scale = filter.RangeScale(p.Scale)
	}
	if p.Period != nil {
		out.Period = *p.Period
	}
	if p.SmoothRange != nil {
		out.SmoothRange = *p.SmoothRange
	}
	if p.SmoothPeriod != nil {
		out.SmoothPeriod = *p.SmoothPeriod
	}
	if p.AverageValues != nil {
		out.AverageValues = *p.AverageValues
	}
	if p.AverageSamples != nil {
		out.AverageSamples = *p.AverageSamples
	}
	return out
}

// Config holds all service configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`

	Server struct {
		Listen        string `yaml:"listen" default:":8080"`
		MetricsListen string `yaml:"metrics_listen" default:":9090"`
	} `yaml:"server"`

	SQLite struct {
		Path string `yaml:"path" default:"data/trendfilter.db"`
	} `yaml:"sqlite"`

	Redis struct {
		Enabled      bool   `yaml:"enabled"`
		Addr         string `yaml:"addr" default:"localhost:6379"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		StreamMaxLen int64  `yaml:"stream_max_len" default:"10000"`
	} `yaml:"redis"`

	Notify struct {
		WebhookURL    string `yaml:"webhook_url"`
		TelegramToken string `yaml:"telegram_token"`
		TelegramChat  string `yaml:"telegram_chat"`
	} `yaml:"notify"`

	// Named parameter sets selectable per run. Loading guarantees a
	// "default" profile exists.
	Profiles map[string]Profile `yaml:"profiles"`
}

var validate = validator.New()

// Load reads, defaults, validates, and env-overrides a YAML config.
// An empty path yields the built-in defaults.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("%w: parse config: %v", model.ErrConfig, err)
		}
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	applyEnv(&c)

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("%w: validate config: %v", model.ErrConfig, err)
	}

	if c.Profiles == nil {
		c.Profiles = map[string]Profile{}
	}
	if _, ok := c.Profiles["default"]; !ok {
		c.Profiles["default"] = Profile{}
	}
	for name, prof := range c.Profiles {
		if err := prof.Params().Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
	}

	return &c, nil
}

// applyEnv overrides deploy-sensitive values from the environment.
func applyEnv(c *Config) {
	if v := os.Getenv("TRENDFILTER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TRENDFILTER_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("TRENDFILTER_METRICS_LISTEN"); v != "" {
		c.Server.MetricsListen = v
	}
	if v := os.Getenv("TRENDFILTER_SQLITE_PATH"); v != "" {
		c.SQLite.Path = v
	}
	if v := os.Getenv("TRENDFILTER_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("TRENDFILTER_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("TRENDFILTER_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
	if v := os.Getenv("TRENDFILTER_WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
	if v := os.Getenv("TRENDFILTER_TELEGRAM_TOKEN"); v != "" {
		c.Notify.TelegramToken = v
	}
	if v := os.Getenv("TRENDFILTER_TELEGRAM_CHAT"); v != "" {
		c.Notify.TelegramChat = v
	}
}
