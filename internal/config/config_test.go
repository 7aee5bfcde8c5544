package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	// Create temp config file
	content := `
owid:
  base_url: "https://covid.example.org"
  timeout: 15s
  max_retries: 2
  date_policy: fail

pipeline:
  default_source: bulk
  default_entity: India
  metrics:
    - new_cases
    - total_cases
  correlation_fields:
    - total_cases
    - total_deaths

cache:
  ttl: 30m
  warm_interval: 10m

logging:
  level: "debug"
  format: "json"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Test Load
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if cfg.OWID.BaseURL != "https://covid.example.org" {
		t.Errorf("Unexpected base URL: %s", cfg.OWID.BaseURL)
	}
	if cfg.OWID.Timeout != 15*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.OWID.Timeout)
	}
	if cfg.OWID.BulkPath != "/data/owid-covid-data.csv.gz" {
		t.Errorf("Expected default bulk path, got %s", cfg.OWID.BulkPath)
	}
	if cfg.Pipeline.DefaultEntity != "India" {
		t.Errorf("Unexpected default entity: %s", cfg.Pipeline.DefaultEntity)
	}
	if len(cfg.Pipeline.Metrics) != 2 {
		t.Errorf("Expected 2 metrics, got %d", len(cfg.Pipeline.Metrics))
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Unexpected cache TTL: %v", cfg.Cache.TTL)
	}
	if cfg.Server.ListenAddr != ":8501" {
		t.Errorf("Expected default listen addr, got %s", cfg.Server.ListenAddr)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults should validate: %v", err)
	}
	if cfg.OWID.Timeout != 30*time.Second {
		t.Errorf("Expected 30s default timeout, got %v", cfg.OWID.Timeout)
	}
	if len(cfg.Pipeline.CorrelationFields) != 5 {
		t.Errorf("Expected 5 default correlation fields, got %v", cfg.Pipeline.CorrelationFields)
	}
	if cfg.Pipeline.DefaultEntity != "IND" {
		t.Errorf("Expected IND default entity, got %s", cfg.Pipeline.DefaultEntity)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("COVIDBOARD_PIPELINE_DEFAULT_ENTITY", "FRA")
	t.Setenv("COVIDBOARD_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.DefaultEntity != "FRA" {
		t.Errorf("Expected env override FRA, got %s", cfg.Pipeline.DefaultEntity)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected env override warn, got %s", cfg.Logging.Level)
	}
}

func validConfig() *Config {
	return &Config{
		OWID: OWIDConfig{
			BaseURL:    "https://example.com",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			DatePolicy: "skip",
		},
		Pipeline: PipelineConfig{
			DefaultSource: "per_entity",
			DefaultEntity: "IND",
			Metrics:       []string{"new_cases"},
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Server: ServerConfig{
			ListenAddr: ":8501",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.OWID.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.OWID.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "invalid date policy",
			mutate:  func(c *Config) { c.OWID.DatePolicy = "ignore" },
			wantErr: true,
		},
		{
			name:    "invalid source",
			mutate:  func(c *Config) { c.Pipeline.DefaultSource = "csv" },
			wantErr: true,
		},
		{
			name:    "no metrics",
			mutate:  func(c *Config) { c.Pipeline.Metrics = nil },
			wantErr: true,
		},
		{
			name:    "duplicate metric",
			mutate:  func(c *Config) { c.Pipeline.Metrics = []string{"new_cases", "new_cases"} },
			wantErr: true,
		},
		{
			name:    "warm interval too short",
			mutate:  func(c *Config) { c.Cache.WarmInterval = 10 * time.Second },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
