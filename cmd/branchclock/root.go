package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"branchclock-hq/branchclock/pkg/cli"
	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/security/secrets"
	"branchclock-hq/branchclock/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "branchclock",
	Short: "branchclock - time tracking driven by git branches",
	Long: `branchclock watches your git repositories and keeps a timer for the ticket
the current branch belongs to.

  - Branch names like feature/PROJ-123-login resolve to Jira tickets
  - Switching to a ticket branch starts the timer
  - Committing stops it and logs the whole minutes to Jira
  - Logged time is mirrored to Productive when configured

Configuration is read from a YAML file and BRANCHCLOCK_* environment
variables. A missing file is fine when the environment carries the settings.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a status derived from the
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "branchclock.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig reads the config file, tolerating its absence, and resolves
// credential references.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigOrDefaults(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// resolveSecrets replaces ${secret:name} references in credential fields.
func resolveSecrets(cfg *config.Config) error {
	m := secrets.FromConfig(cfg.Secrets, newQuietLogger())
	if err := m.ResolveConfig(context.Background(), cfg); err != nil {
		return cli.NewConfigError("secrets", err.Error())
	}
	return nil
}

// newLogger builds the process logger and makes it the slog default.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, w))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}

// newCommandLogger is newLogger for one-shot commands, which only report
// warnings unless --verbose is set.
func newCommandLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	if !verbose && cfg.Telemetry.Logging.Level != "error" {
		cfg.Telemetry.Logging.Level = "warn"
	}
	return newLogger(cfg, w)
}

func newQuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// requireJira fails commands that need the primary tracker when it is not
// configured.
func requireJira(cfg *config.Config) error {
	if cfg.Jira.BaseURL == "" {
		return cli.NewConfigError("jira", "base_url, email and api_token are required for this command")
	}
	return nil
}
