package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Report service
	ReportAPIURL   string
	Transport      string // "http" or "httpie"
	APIToken       string
	HTTPieBin      string
	HTTPieAuth     string
	PollInterval   time.Duration
	PollTimeout    time.Duration // 0 means wait for ever
	IntervalMonths int

	// Export
	OutputDir   string
	OutputFile  string
	FilterField string

	// Storage
	StorageType string // "sqlite", "postgres" or "none"
	SQLitePath  string
	PostgresURL string

	// API Server
	APIPort string
	APIHost string

	// CLI
	APIEndpoint string

	// Azure Blob upload
	AzureAccount   string
	AzureKey       string
	AzureContainer string

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	pollInterval, err := getDuration("POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}
	pollTimeout, err := getDuration("POLL_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	months, err := getInt("INTERVAL_MONTHS", 6)
	if err != nil {
		return nil, err
	}

	return &Config{
		ReportAPIURL:   getEnv("REPORT_API_URL", "https://api.veracode.com/appsec/v1/analytics/report"),
		Transport:      getEnv("TRANSPORT", "http"),
		APIToken:       getEnv("API_TOKEN", ""),
		HTTPieBin:      getEnv("HTTPIE_BIN", "http"),
		HTTPieAuth:     getEnv("HTTPIE_AUTH", "veracode_hmac"),
		PollInterval:   pollInterval,
		PollTimeout:    pollTimeout,
		IntervalMonths: months,
		OutputDir:      getEnv("OUTPUT_DIR", "."),
		OutputFile:     getEnv("OUTPUT_FILE", "veracode_findings.xlsx"),
		FilterField:    getEnv("FILTER_FIELD", "app_name"),
		StorageType:    getEnv("STORAGE_TYPE", "sqlite"),
		SQLitePath:     getEnv("SQLITE_PATH", "./findings.db"),
		PostgresURL:    getEnv("POSTGRES_URL", ""),
		APIPort:        getEnv("API_PORT", "8080"),
		APIHost:        getEnv("API_HOST", "localhost"),
		APIEndpoint:    getEnv("API_ENDPOINT", "http://localhost:8080"),
		AzureAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		AzureKey:       getEnv("AZURE_STORAGE_KEY", ""),
		AzureContainer: getEnv("AZURE_CONTAINER", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: "must be a duration such as 2s or 10m"}
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: "must be an integer"}
	}
	return n, nil
}

// Validate validates the configuration needed to fetch reports
func (c *Config) Validate() error {
	if c.ReportAPIURL == "" {
		return &ConfigError{Field: "REPORT_API_URL", Message: "report API URL is required"}
	}
	if c.Transport != "http" && c.Transport != "httpie" {
		return &ConfigError{Field: "TRANSPORT", Message: "must be 'http' or 'httpie'"}
	}
	if c.PollInterval <= 0 {
		return &ConfigError{Field: "POLL_INTERVAL", Message: "must be positive"}
	}
	if c.PollTimeout < 0 {
		return &ConfigError{Field: "POLL_TIMEOUT", Message: "must not be negative"}
	}
	if c.IntervalMonths <= 0 {
		return &ConfigError{Field: "INTERVAL_MONTHS", Message: "must be positive"}
	}
	return c.ValidateStorage()
}

// ValidateStorage validates the storage settings only
func (c *Config) ValidateStorage() error {
	if c.StorageType != "sqlite" && c.StorageType != "postgres" && c.StorageType != "none" {
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite', 'postgres' or 'none'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	return nil
}

// BlobUploadEnabled reports whether Azure Blob settings are complete
func (c *Config) BlobUploadEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != "" && c.AzureContainer != ""
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
