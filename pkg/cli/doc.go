/*
Package cli provides command-line helpers shared by the turnstile commands.

Output Formatting:

Commands accept --output text|json|csv. Results that implement Table get
aligned columns in text mode and a header row plus records in CSV mode:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(events)))
	for i, ev := range events {
		replay(ev)
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Errors:

ExitCode maps a command error to the process exit status; configuration
problems exit with 2.
*/
package cli
