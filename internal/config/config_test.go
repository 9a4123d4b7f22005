package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"REPORT_API_URL", "TRANSPORT", "API_TOKEN", "HTTPIE_BIN", "HTTPIE_AUTH",
	"POLL_INTERVAL", "POLL_TIMEOUT", "INTERVAL_MONTHS", "OUTPUT_DIR", "OUTPUT_FILE",
	"FILTER_FIELD", "STORAGE_TYPE", "SQLITE_PATH", "POSTGRES_URL",
	"AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_KEY", "AZURE_CONTAINER",
}

func clearEnv(t *testing.T) {
	t.Helper()
	// run from a directory without a .env file
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.veracode.com/appsec/v1/analytics/report", cfg.ReportAPIURL)
	assert.Equal(t, "http", cfg.Transport)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.PollTimeout)
	assert.Equal(t, 6, cfg.IntervalMonths)
	assert.Equal(t, "veracode_findings.xlsx", cfg.OutputFile)
	assert.Equal(t, "app_name", cfg.FilterField)
	assert.Equal(t, "sqlite", cfg.StorageType)
	assert.False(t, cfg.BlobUploadEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSPORT", "httpie")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_TIMEOUT", "30m")
	t.Setenv("INTERVAL_MONTHS", "3")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "acct")
	t.Setenv("AZURE_STORAGE_KEY", "key")
	t.Setenv("AZURE_CONTAINER", "findings")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "httpie", cfg.Transport)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.PollTimeout)
	assert.Equal(t, 3, cfg.IntervalMonths)
	assert.True(t, cfg.BlobUploadEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_INTERVAL", "soon")

	_, err := Load()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "POLL_INTERVAL", cfgErr.Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"transport", func(c *Config) { c.Transport = "grpc" }, "TRANSPORT"},
		{"poll interval", func(c *Config) { c.PollInterval = 0 }, "POLL_INTERVAL"},
		{"interval months", func(c *Config) { c.IntervalMonths = 0 }, "INTERVAL_MONTHS"},
		{"storage type", func(c *Config) { c.StorageType = "mysql" }, "STORAGE_TYPE"},
		{"postgres url", func(c *Config) { c.StorageType = "postgres" }, "POSTGRES_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load()
			require.NoError(t, err)

			tt.edit(cfg)
			var cfgErr *ConfigError
			require.ErrorAs(t, cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
