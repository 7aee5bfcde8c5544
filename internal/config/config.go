package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	OWID     OWIDConfig     `mapstructure:"owid"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// OWIDConfig holds the remote data source configuration
type OWIDConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	BulkPath            string        `mapstructure:"bulk_path"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryDelayBase      time.Duration `mapstructure:"retry_delay_base"`
	DatePolicy          string        `mapstructure:"date_policy"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

// PipelineConfig holds the dashboard constants: selectable metrics, correlation fields, defaults
type PipelineConfig struct {
	DefaultSource     string   `mapstructure:"default_source"`
	DefaultEntity     string   `mapstructure:"default_entity"`
	Metrics           []string `mapstructure:"metrics"`
	CorrelationFields []string `mapstructure:"correlation_fields"`
}

// CacheConfig holds table cache configuration
type CacheConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	WarmInterval time.Duration `mapstructure:"warm_interval"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envKeyReplacer maps nested keys to env names: owid.base_url -> COVIDBOARD_OWID_BASE_URL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("COVIDBOARD")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
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

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// OWID defaults
	v.SetDefault("owid.base_url", "https://covid.ourworldindata.org")
	v.SetDefault("owid.bulk_path", "/data/owid-covid-data.csv.gz")
	v.SetDefault("owid.timeout", "30s")
	v.SetDefault("owid.max_retries", 3)
	v.SetDefault("owid.retry_delay_base", "1s")
	v.SetDefault("owid.date_policy", "skip")
	v.SetDefault("owid.max_idle_conns", 10)
	v.SetDefault("owid.max_idle_conns_per_host", 2)
	v.SetDefault("owid.idle_conn_timeout", "90s")

	// Pipeline defaults
	v.SetDefault("pipeline.default_source", "per_entity")
	v.SetDefault("pipeline.default_entity", "IND")
	v.SetDefault("pipeline.metrics", []string{
		"new_cases", "total_cases", "new_deaths", "total_deaths",
		"people_vaccinated", "new_vaccinations",
	})
	v.SetDefault("pipeline.correlation_fields", []string{
		"total_cases", "total_deaths",
		"people_vaccinated", "new_cases", "new_deaths",
	})

	// Cache defaults
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.warm_interval", "0s")

	// Server defaults
	v.SetDefault("server.listen_addr", ":8501")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate OWID config
	if c.OWID.BaseURL == "" {
		return fmt.Errorf("owid.base_url is required")
	}
	if c.OWID.Timeout <= 0 {
		return fmt.Errorf("owid.timeout must be positive")
	}
	if c.OWID.MaxRetries < 1 {
		return fmt.Errorf("owid.max_retries must be at least 1")
	}
	if c.OWID.DatePolicy != "skip" && c.OWID.DatePolicy != "fail" {
		return fmt.Errorf("owid.date_policy must be one of: skip, fail")
	}

	// Validate Pipeline config
	if c.Pipeline.DefaultSource != "per_entity" && c.Pipeline.DefaultSource != "bulk" {
		return fmt.Errorf("pipeline.default_source must be one of: per_entity, bulk")
	}
	if len(c.Pipeline.Metrics) == 0 {
		return fmt.Errorf("pipeline.metrics must contain at least one metric")
	}
	seen := make(map[string]bool)
	for _, m := range c.Pipeline.Metrics {
		if m == "" {
			return fmt.Errorf("pipeline.metrics must not contain empty names")
		}
		if seen[m] {
			return fmt.Errorf("pipeline.metrics contains duplicate %q", m)
		}
		seen[m] = true
	}

	// Validate Cache config
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Cache.WarmInterval < 0 {
		return fmt.Errorf("cache.warm_interval must not be negative")
	}
	if c.Cache.WarmInterval > 0 && c.Cache.WarmInterval < 1*time.Minute {
		return fmt.Errorf("cache.warm_interval must be at least 1 minute when enabled")
	}

	// Validate Server config
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
