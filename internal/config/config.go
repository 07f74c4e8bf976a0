package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds persistent defaults loaded from config files.
type Config struct {
	Serve    ServeConfig    `yaml:"serve"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ServeConfig holds ingestion daemon defaults.
type ServeConfig struct {
	Port           int      `yaml:"port"`
	Bind           string   `yaml:"bind"`
	HTTPAddr       string   `yaml:"http_addr"`
	File           string   `yaml:"file"`
	MaxSize        string   `yaml:"max_size"`
	MaxArchives    int      `yaml:"max_archives"`
	CheckInterval  string   `yaml:"check_interval"`
	RingSize       int      `yaml:"ring_size"`
	Redact         string   `yaml:"redact"`
	RedactPatterns string   `yaml:"redact_patterns"`
	Webhooks       []string `yaml:"webhooks"`
}

// DefaultsConfig holds global defaults.
type DefaultsConfig struct {
	Timeout string `yaml:"timeout"`
	Verbose bool   `yaml:"verbose"`
}

// Load reads config from ~/.logsink/config.yaml then CWD .logsink.yaml.
// CWD config values override home config. Missing files are not errors.
// Environment variables (LOGSINK_*) override config file values.
func Load() *Config {
	cfg := &Config{}

	if home, err := os.UserHomeDir(); err == nil {
		_ = loadFile(filepath.Join(home, ".logsink", "config.yaml"), cfg)
	}

	_ = loadFile(".logsink.yaml", cfg)

	applyEnv(cfg)

	return cfg
}

// LoadFrom reads config from a specific path. Used for testing.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOGSINK_BIND"); v != "" {
		cfg.Serve.Bind = v
	}
	if v := os.Getenv("LOGSINK_HTTP_ADDR"); v != "" {
		cfg.Serve.HTTPAddr = v
	}
	if v := os.Getenv("LOGSINK_FILE"); v != "" {
		cfg.Serve.File = v
	}
	if v := os.Getenv("LOGSINK_MAX_SIZE"); v != "" {
		cfg.Serve.MaxSize = v
	}
	if v := os.Getenv("LOGSINK_CHECK_INTERVAL"); v != "" {
		cfg.Serve.CheckInterval = v
	}
	if v := os.Getenv("LOGSINK_REDACT"); v != "" {
		cfg.Serve.Redact = v
	}
	if v := os.Getenv("LOGSINK_WEBHOOKS"); v != "" {
		cfg.Serve.Webhooks = strings.Split(v, ",")
	}
	if v := os.Getenv("LOGSINK_TIMEOUT"); v != "" {
		cfg.Defaults.Timeout = v
	}
	if v := os.Getenv("LOGSINK_VERBOSE"); v != "" {
		cfg.Defaults.Verbose = strings.EqualFold(v, "true") || v == "1"
	}
}
