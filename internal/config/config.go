package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for webwatcher.
// Constructed once at startup and passed by reference into every
// collector - no ambient lookups anywhere else in the codebase.
type Config struct {
	// Scan timeouts
	ScanTimeout      time.Duration `yaml:"scan_timeout"`      // Global deadline for a full scan
	CollectorTimeout time.Duration `yaml:"collector_timeout"` // Per-collector timeout

	// Collector limits
	MaxRedirectHops int   `yaml:"max_redirect_hops"` // Redirect chain hop limit
	MaxPageBytes    int64 `yaml:"max_page_bytes"`    // Page fetch size cap

	// Thresholds
	YoungDomainDays int `yaml:"young_domain_days"` // WHOIS age below this is flagged

	// Reputation sources (empty key disables a source)
	URLHausEndpoint string `yaml:"urlhaus_endpoint"`
	PhishTankKey    string `yaml:"phishtank_key"`
	VirusTotalKey   string `yaml:"virustotal_key"`
	AbuseIPDBKey    string `yaml:"abuseipdb_key"`
	BreachAPIKey    string `yaml:"breach_api_key"`
	BreachAPIBase   string `yaml:"breach_api_base"`

	// Storage
	DatabasePath string `yaml:"database_path"`

	// Debug
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".webwatcher")
	if err != nil {
		dataDir = "./.webwatcher"
	}

	return &Config{
		ScanTimeout:      45 * time.Second,
		CollectorTimeout: 10 * time.Second,
		MaxRedirectHops:  10,
		MaxPageBytes:     2 << 20, // 2MB page cap
		YoungDomainDays:  30,
		URLHausEndpoint:  "https://urlhaus-api.abuse.ch/v1/url/",
		BreachAPIBase:    "https://haveibeenpwned.com/api/v3",
		DatabasePath:     filepath.Join(dataDir, "incidents.db"),
	}
}

// DefaultPath returns the default config file location (~/.webwatcher/config.yaml)
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.webwatcher/config.yaml"
	}
	return filepath.Join(homeDir, ".webwatcher", "config.yaml")
}

// Load reads configuration from a YAML file, applying it over defaults.
// A missing file is not an error - defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file with restrictive permissions
// (the file may contain API keys)
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}
