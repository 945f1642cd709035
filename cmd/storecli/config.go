package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional on-disk configuration for storecli, loaded with
// gopkg.in/yaml.v3.
type Config struct {
	Seed   string       `yaml:"seed"`
	Server ServerConfig `yaml:"server"`
}

// ServerConfig configures the `serve` subcommand's HTTP facade.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	EnableCORS      bool          `yaml:"enable_cors"`
	EnableMetrics   bool          `yaml:"enable_metrics"`
	LogRequests     bool          `yaml:"log_requests"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			EnableCORS:      true,
			EnableMetrics:   true,
			LogRequests:     true,
			RateLimitRPS:    100,
			RateLimitBurst:  200,
			RequestTimeout:  30 * time.Second,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// loadConfig reads path (if non-empty) over defaultConfig, leaving every
// field the file doesn't mention at its default.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
