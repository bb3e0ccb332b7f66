// Command trendfilter runs a range filter over OHLC bar series: one-shot
// runs against CSV files, bar imports into SQLite, and an HTTP/WebSocket
// service over stored series.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"trendfilter/config"
	"trendfilter/internal/logger"
)

const version = "1.0.0"

var (
	cfgPath   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:     "trendfilter",
	Short:   "Range filter engine for OHLC series",
	Version: version,
	Long: `trendfilter feeds OHLC bars through a range filter: a line that holds
still while price moves less than a per-bar range size and steps when
price escapes the band around it. Runs can be executed one-shot against
CSV files, or served over HTTP and WebSocket from bars stored in SQLite.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the trendfilter version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trendfilter %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config (empty = built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override log format (console|json)")
	rootCmd.AddCommand(versionCmd)
}

// setup loads .env and the config file, applies log overrides, and
// initializes the global logger for the given service name.
func setup(service string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	logger.Init(service, cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
