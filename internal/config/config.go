// Package config loads the slowdog server configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/edirooss/slowdog/pkg/hostutil"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DefaultInterval        = 25 * time.Second
	DefaultLogLevel        = "warn"
	DefaultEmailRate       = 6 // per minute
	DefaultRedisKey        = "slowdog:reports"
	DefaultRedisMaxReports = 1000
)

// Config mirrors slowdog-server.yaml.
type Config struct {
	// Watchdog
	Enabled         *bool    `yaml:"enabled"`
	IntervalSeconds *float64 `yaml:"interval_seconds"`
	IncludeLocals   bool     `yaml:"include_locals"`
	ExemptNames     []string `yaml:"exempt_names"`
	Workers         int      `yaml:"workers"`

	// File sink
	OutputDirectory string `yaml:"output_directory"`

	// Email sink
	EmailFrom          string `yaml:"email_from"`
	EmailTo            string `yaml:"email_to"`
	SMTPAddress        string `yaml:"smtp_address"`
	SMTPUsername       string `yaml:"smtp_username"`
	SMTPPassword       string `yaml:"smtp_password"`
	EmailRatePerMinute int    `yaml:"email_rate_per_minute"`

	// Log sink
	LoggerName string `yaml:"logger_name"`
	LogLevel   string `yaml:"log_level"`

	// Redis sink
	RedisAddr       string `yaml:"redis_address"`
	RedisDB         int    `yaml:"redis_db"`
	RedisKey        string `yaml:"redis_key"`
	RedisMaxReports int64  `yaml:"redis_max_reports"`

	// HTTP server
	ListenAddr string `yaml:"listen_address"`
	Port       string `yaml:"port"`
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.IntervalSeconds == nil {
		secs := DefaultInterval.Seconds()
		c.IntervalSeconds = &secs
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.EmailRatePerMinute <= 0 {
		c.EmailRatePerMinute = DefaultEmailRate
	}
	if c.RedisKey == "" {
		c.RedisKey = DefaultRedisKey
	}
	if c.RedisMaxReports <= 0 {
		c.RedisMaxReports = DefaultRedisMaxReports
	}
	if c.Port == "" {
		c.Port = "8080"
	}
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var err error
	if c.IntervalSeconds != nil && *c.IntervalSeconds < 0 {
		err = errors.Join(err, errors.New("interval_seconds must not be negative"))
	}
	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = errors.Join(err, fmt.Errorf("log_level: %w", lerr))
	}
	if (c.EmailFrom == "") != (c.EmailTo == "") {
		err = errors.Join(err, errors.New("email_from and email_to must be set together"))
	}
	if c.EmailTo != "" && c.SMTPAddress == "" {
		err = errors.Join(err, errors.New("smtp_address is required when email is configured"))
	}
	if c.SMTPAddress != "" {
		if herr := hostutil.ValidateHostPort(c.SMTPAddress); herr != nil {
			err = errors.Join(err, fmt.Errorf("smtp_address: %w", herr))
		}
	}
	if c.RedisAddr != "" {
		if herr := hostutil.ValidateHostPort(c.RedisAddr); herr != nil {
			err = errors.Join(err, fmt.Errorf("redis_address: %w", herr))
		}
	}
	if c.ListenAddr != "" {
		if herr := hostutil.ValidateHost(c.ListenAddr); herr != nil {
			err = errors.Join(err, fmt.Errorf("listen_address: %w", herr))
		}
	}
	if perr := hostutil.ValidatePort(c.Port); perr != nil {
		err = errors.Join(err, fmt.Errorf("port: %w", perr))
	}
	if c.Workers < 0 {
		err = errors.Join(err, errors.New("workers must not be negative"))
	}
	return err
}

// IsEnabled reports whether the watchdog should run.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Interval is the delay before an in-flight request is reported.
func (c *Config) Interval() time.Duration {
	if c.IntervalSeconds == nil {
		return DefaultInterval
	}
	return time.Duration(*c.IntervalSeconds * float64(time.Second))
}

// Level is the parsed log_level; invalid values fall back to warn.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.WarnLevel
	}
	return lvl
}

// EmailEnabled reports whether both addresses are set.
func (c *Config) EmailEnabled() bool {
	return c.EmailFrom != "" && c.EmailTo != ""
}

// EmailRecipients splits email_to on commas.
func (c *Config) EmailRecipients() []string {
	var to []string
	for _, addr := range strings.Split(c.EmailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return to
}
