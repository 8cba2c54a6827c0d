package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"branchclock-hq/branchclock/pkg/cli"
	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/gitwatch"
)

var validateFlags struct {
	checkAuth bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the config file with environment overrides, apply defaults and report
every invalid field at once. The file must exist.

With --check-auth the Jira credentials are verified as well.

Examples:
  branchclock validate
  branchclock validate --config ~/.config/branchclock.yaml --check-auth`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.checkAuth, "check-auth", false, "verify Jira credentials")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	if err := resolveSecrets(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Configuration valid (%s)\n", cfgFile)

	repos := gitwatch.DiscoverRepositories(cfg.Workspace.Roots, newQuietLogger())
	fmt.Fprintf(out, "✓ Workspace %s: %d repositories\n", cfg.Workspace.ID, len(repos))

	switch {
	case cfg.Jira.BaseURL == "":
		fmt.Fprintln(out, "! Jira not configured, time will not be logged")
	case validateFlags.checkAuth:
		logger, err := newCommandLogger(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		tel, err := newTelemetry(cfg)
		if err != nil {
			return err
		}
		defer tel.shutdown(cmd.Context(), logger)

		user, err := newTrackers(cfg, logger, tel).jira.Myself(cmd.Context())
		if err != nil {
			return cli.NewCommandError("validate", err)
		}
		fmt.Fprintf(out, "✓ Jira authenticated as %s\n", user.DisplayName)
	default:
		fmt.Fprintf(out, "✓ Jira %s\n", cfg.Jira.BaseURL)
	}

	if cfg.Productive.ProductiveEnabled() {
		fmt.Fprintf(out, "✓ Productive organization %s\n", cfg.Productive.OrganizationID)
	} else {
		fmt.Fprintln(out, "· Productive disabled")
	}
	return nil
}
