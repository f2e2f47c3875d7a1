package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/resultsync/internal/config"
	"github.com/harrison/resultsync/internal/logger"
)

// loadConfig loads the configuration named by --config, or the first config
// file found in the current directory, and applies --log-dir and --verbose.
// The returned path is empty when defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		// An explicit path must exist; LoadConfig alone would fall back to defaults
		if _, statErr := os.Stat(configPath); statErr != nil {
			return nil, "", fmt.Errorf("config file %s: %w", configPath, statErr)
		}
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, configPath, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
	}

	var logDirPtr *string
	if cmd.Flags().Changed("log-dir") {
		logDir, _ := cmd.Flags().GetString("log-dir")
		logDirPtr = &logDir
	}
	var levelPtr *string
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level := "debug"
		levelPtr = &level
	}
	cfg.MergeWithFlags(levelPtr, logDirPtr, nil)

	return cfg, configPath, nil
}

// openLoggers creates the console and run-file sinks. The returned close
// function flushes the run log.
func openLoggers(cmd *cobra.Command, cfg *config.Config) (*logger.MultiLogger, *logger.FileLogger, func(), error) {
	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	fileLogger, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create file logger: %w", err)
	}

	return logger.NewMultiLogger(console, fileLogger), fileLogger, func() { fileLogger.Close() }, nil
}
