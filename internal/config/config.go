package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// StockPriceConfig is the `stock_price` block. The API key is never read from here.
type StockPriceConfig struct {
	Symbol       string `yaml:"symbol"`
	Database     string `yaml:"database,omitempty"`
	Schema       string `yaml:"schema"`
	Table        string `yaml:"table"`
	LookbackDays int    `yaml:"lookback_days"`
	APIBaseURL   string `yaml:"api_base_url,omitempty"`
	APITimeout   string `yaml:"api_timeout,omitempty"`
}

// SessionSummaryConfig is the `session_summary` block. An absent primary_key
// selects the default key; an empty list disables the uniqueness check.
type SessionSummaryConfig struct {
	Database      string   `yaml:"database,omitempty"`
	Schema        string   `yaml:"schema"`
	Table         string   `yaml:"table"`
	SelectSQL     string   `yaml:"select_sql"`
	PrimaryKey    []string `yaml:"primary_key,omitempty"`
	BusinessKey   []string `yaml:"business_key"`
	ScratchPrefix string   `yaml:"scratch_prefix,omitempty"`
}

// ArchiveConfig is the `archive` block. Credentials come from the environment.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	UseSSL   bool   `yaml:"use_ssl"`
}

type ProjectConfig struct {
	Connection     ConnectionConfig     `yaml:"connection"`
	StockPrice     StockPriceConfig     `yaml:"stock_price"`
	SessionSummary SessionSummaryConfig `yaml:"session_summary"`
	Archive        ArchiveConfig        `yaml:"archive"`
	Timeout        string               `yaml:"timeout"`
}

const ConfigFileName = "stageswap.yaml"

// Load reads stageswap.yaml from dir.
func Load(dir string) (*ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads the config at path.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ParseDuration parses an optional duration field; empty yields fallback.
func ParseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", field, value)
	}
	return d, nil
}
