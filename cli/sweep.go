package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a consistency sweep over every project",
		Long: `Reconcile every project in sweep mode.

Later uploads of an interview already on file are dropped, along with
their analysis rows, and repeated analysis rows are removed. Orphans and
stale respnos are fixed as in any reconciliation pass.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(rootOpts, cmd)
		},
	}
	return cmd
}

func runSweep(opts *RootOptions, cmd *cobra.Command) error {
	svc, closeFn, err := opts.openService()
	if err != nil {
		return err
	}
	defer closeFn()

	f := opts.formatter(cmd)
	run, err := svc.Sweep(cmd.Context())
	if err != nil {
		f.Error("E_SWEEP", "sweep failed", err.Error())
		return WrapExitError(ExitCommandError, "sweep failed", err)
	}
	if err := f.Success(run, formatSweep(run)); err != nil {
		return err
	}
	if run.Error != "" {
		return NewExitError(ExitFailure, run.Error)
	}
	return nil
}

func formatSweep(r reconcile.SweepRun) string {
	return fmt.Sprintf("Swept %d project(s), %d changed: %d duplicate transcript(s), %d duplicate row(s), %d orphan row(s) removed\n",
		r.Projects, r.Changed, r.DuplicateTranscripts, r.DuplicateRowsDropped, r.OrphanRowsRemoved)
}
