// Package config provides configuration loading and management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/export"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Secret for verifying operator bearer tokens
	JWTSecret string

	// Treasury account receiving distribution remainders (hex address)
	Treasury string

	// Per-adapter metrics query timeout
	AdapterTimeout time.Duration

	// Route cache validity window
	CacheTTL time.Duration

	// Request rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// File holds the optional YAML bootstrap, when CONFIG_FILE is set
	File *FileConfig
}

// FileConfig is the YAML bootstrap: bridge endpoints, chain tuning, weight
// profiles and fee categories applied at startup.
type FileConfig struct {
	Adapters []AdapterConfig                 `yaml:"adapters"`
	Chains   map[uint64]ChainTuning          `yaml:"chains"`
	Weights  map[string]model.ScoringWeights `yaml:"weights"`
	Fees     map[string]FeeCategoryConfig    `yaml:"fees"`
	Export   export.Config                   `yaml:"export"`
}

// AdapterConfig describes one remote bridge integration
type AdapterConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key,omitempty"`
}

// ChainTuning bootstraps a chain's congestion response
type ChainTuning struct {
	types.ChainConfig  `yaml:",inline"`
	MaxMultiplierBps   int64 `yaml:"max_multiplier_bps"`
	AdjustmentSpeedBps int64 `yaml:"adjustment_speed_bps"`
}

// FeeCategoryConfig bootstraps one fee category. Amounts are decimal strings
// in the asset's smallest unit.
type FeeCategoryConfig struct {
	BaseRateBps             int64  `yaml:"base_rate_bps"`
	MinFeeAmount            string `yaml:"min_fee_amount"`
	MaxFeeAmount            string `yaml:"max_fee_amount"`
	CongestionMultiplierBps int64  `yaml:"congestion_multiplier_bps"`
	Active                  bool   `yaml:"active"`
}

// Load creates a new Config from environment variables, plus the YAML file
// when CONFIG_FILE points at one.
func Load() (Config, error) {
	cfg := Config{
		Port:           GetEnvOrDefault("PORT", "8080"),
		OtelEndpoint:   GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		JWTSecret:      GetEnvOrDefault("JWT_SECRET", ""),
		Treasury:       GetEnvOrDefault("TREASURY_ADDRESS", ""),
		AdapterTimeout: GetEnvAsDuration("ADAPTER_TIMEOUT", 5*time.Second),
		CacheTTL:       GetEnvAsDuration("ROUTE_CACHE_TTL", 60*time.Second),
		RateLimitRPS:   GetEnvAsFloat("RATE_LIMIT_RPS", 50.0),
		RateLimitBurst: GetEnvAsInt("RATE_LIMIT_BURST", 100),
	}

	if path, exists := GetEnv("CONFIG_FILE"); exists && path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.File = file
	}
	return cfg, nil
}

// LoadFile parses the YAML bootstrap file
func LoadFile(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var file FileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &file, nil
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
