package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Assign and lock respnos in every legacy project",
		Long: `Run the one-time legacy migration across every stored project.

Transcripts without a respno get one in interview order, legacy analysis
rows are linked to their transcripts, and every respno is locked. Projects
already migrated are reported as skipped, so running it twice is safe.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
	return cmd
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	svc, closeFn, err := opts.openService()
	if err != nil {
		return err
	}
	defer closeFn()

	f := opts.formatter(cmd)
	report, err := svc.RunLegacyMigration(cmd.Context())
	if err != nil {
		f.Error("E_MIGRATE", "migration failed", err.Error())
		return WrapExitError(ExitCommandError, "migration failed", err)
	}

	if err := f.Success(report, formatMigration(report)); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d project(s) failed to migrate", report.Failed))
	}
	return nil
}

func formatMigration(r reconcile.MigrationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Migrated %d, skipped %d, failed %d\n", r.Migrated, r.Skipped, r.Failed)
	for _, m := range r.Projects {
		switch {
		case m.Error != "":
			fmt.Fprintf(&b, "  %s  FAILED: %s\n", m.ProjectID, m.Error)
		case m.Skipped:
			fmt.Fprintf(&b, "  %s  skipped\n", m.ProjectID)
		default:
			fmt.Fprintf(&b, "  %s  assigned=%d locked=%d backfilled=%d rows=%d\n",
				m.ProjectID, m.Assigned, m.Locked, m.Backfilled, m.RowsUpdated)
			if len(m.Reassigned) > 0 {
				fmt.Fprintf(&b, "    renumbered duplicates: %s\n", strings.Join(m.Reassigned, ", "))
			}
			if len(m.LockConflicts) > 0 {
				fmt.Fprintf(&b, "    WARNING: locked transcripts share %s\n", strings.Join(m.LockConflicts, ", "))
			}
		}
	}
	return b.String()
}
