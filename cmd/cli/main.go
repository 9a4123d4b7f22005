package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/findings-exporter/internal/config"
	"github.com/kurihiro0119/findings-exporter/internal/logging"
	"github.com/kurihiro0119/findings-exporter/internal/storage"
	"github.com/kurihiro0119/findings-exporter/internal/storage/postgres"
	"github.com/kurihiro0119/findings-exporter/internal/storage/sqlite"
)

var (
	outputJSON bool
	logLevel   string
	remote     bool
)

var rootCmd = &cobra.Command{
	Use:   "findings-exporter",
	Short: "Security findings export tool",
	Long: `A CLI tool for exporting security findings from an asynchronous reporting API.

The requested time range is split into calendar windows of at most six months.
One report job is submitted and polled per window, strictly in order, and the
findings of all windows are merged, optionally filtered, and written to a file.
Finished runs are archived locally so they can be inspected and re-exported.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel == "" {
			logLevel = cfg.LogLevel
		}
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logging.Init(os.Stderr, level, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")

	runsCmd.Flags().BoolVar(&remote, "remote", false, "query the API server at API_ENDPOINT instead of local storage")
	showCmd.Flags().BoolVar(&remote, "remote", false, "query the API server at API_ENDPOINT instead of local storage")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getStorage opens the configured run archive. It returns nil when
// STORAGE_TYPE is "none".
func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "none":
		return nil, nil
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

// requireStorage is getStorage for commands that cannot work without an archive
func requireStorage(cfg *config.Config) (storage.Storage, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	store, err := getStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("no run archive configured (STORAGE_TYPE=none)")
	}
	slog.Debug("Opened run archive", "type", cfg.StorageType)
	return store, nil
}
