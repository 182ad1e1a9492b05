package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/bucketoffset/backend"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the kernel once and verify it",
		Long: `Generate the input, run the kernel on the selected backend, read the
result back and compare it with the host computation.

Mismatching indices are printed as "index <i>: expected <e>, observed <o>",
followed by a summary line.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rootOpts)
		},
	}
}

func runCheck(cmd *cobra.Command, opts *RootOptions) error {
	cfg := opts.Config

	accel, err := backend.Open(cfg.Backend)
	if err != nil {
		return WrapExitError(ExitCommandError, "select backend", err)
	}
	defer accel.Close()

	report, err := bucketoffset.Run(cmd.Context(), cfg, accel)
	if err != nil {
		return WrapExitError(ExitCommandError, "run", err)
	}
	if werr := report.WriteText(cmd.OutOrStdout()); werr != nil {
		return WrapExitError(ExitCommandError, "write report", werr)
	}

	switch report.Outcome {
	case bucketoffset.OutcomePass:
		return nil
	case bucketoffset.OutcomeMismatch:
		return NewExitError(ExitFailure,
			fmt.Sprintf("verification failed: %d of %d indices differ", len(report.Mismatches), report.Length))
	default:
		return WrapExitError(ExitCommandError, "run aborted", report.Err)
	}
}
