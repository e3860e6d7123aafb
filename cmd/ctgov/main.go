// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the ctgov CLI. Each pipeline stage
// (release lookup, planning, download, inline fetch, normalize, ingest) is a
// subcommand.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/ctgov-connector/internal/logger"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// appLog is configured from log.level before any subcommand runs.
var appLog = logger.Discard()

// rootCmd is the base command for the ctgov CLI.
var rootCmd = &cobra.Command{
	Use:   "ctgov",
	Short: "Fetch and normalize ClinicalTrials.gov study records",
	Long: `ctgov pulls the full study corpus from the ClinicalTrials.gov v2 API and
turns it into clean documents for downstream indexing.

fetch and download write raw page files under the data directory, one
directory per release. normalize streams cleaned, id-stamped records from
those files, and ingest loads them into the local document store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appLog = logger.New(cfg.Log.Level)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./ctgov.yaml or ~/.config/ctgov/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ctgov")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ctgov"))
		}
	}

	setDefaults()
	viper.SetEnvPrefix("CTGOV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults() {
	viper.SetDefault("fetch.base_url", types.DefaultBaseURL)
	viper.SetDefault("fetch.page_size", types.DefaultPageSize)
	viper.SetDefault("fetch.request_delay", types.DefaultRequestDelay)
	viper.SetDefault("fetch.data_dir", types.DefaultDataDir)
	viper.SetDefault("fetch.fields", []string{})
	viper.SetDefault("fetch.timeout", types.DefaultTimeout)
	viper.SetDefault("fetch.user_agent", types.DefaultUserAgent)
	viper.SetDefault("fetch.page_retries", types.DefaultPageRetries)
	viper.SetDefault("fetch.download_concurrency", types.DefaultDownloadConcurrency)
	viper.SetDefault("normalize.dir", "")
	viper.SetDefault("normalize.file", "")
	viper.SetDefault("normalize.stamp_ids", true)
	viper.SetDefault("store.dir", types.DefaultStoreDir)
	viper.SetDefault("store.max_results", 20)
	viper.SetDefault("log.level", types.DefaultLogLevel)
}

// loadConfig decodes and validates the merged defaults, config file and
// environment.
func loadConfig() (types.ConnectorConfig, error) {
	var cfg types.ConnectorConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
