/*
Package cli provides the rendering and process helpers used by the
branchclock command.

Output Formatting:

Commands print either colored text tables or JSON, selected by --format:

	format, err := cli.ParseFormat(flagFormat)
	if err != nil {
		return err
	}
	return cli.RenderHistory(os.Stdout, entries, format)

Color is disabled automatically when stdout is not a terminal or NO_COLOR
is set.

Errors:

ConfigError and CommandError carry the context shown to the user.
ExitCode maps an error to the process exit status.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
