package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reconcile <project>",
		Short:         "Run the reconciliation pass over one project",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runReconcile(opts *RootOptions, projectID string, cmd *cobra.Command) error {
	svc, closeFn, err := opts.openService()
	if err != nil {
		return err
	}
	defer closeFn()

	f := opts.formatter(cmd)
	report, err := svc.Reconcile(cmd.Context(), projectID)
	if err != nil {
		f.Error("E_RECONCILE", "reconcile failed", err.Error())
		return WrapExitError(ExitCommandError, "reconcile failed", err)
	}
	return f.Success(report, formatReport(report))
}

func formatReport(r reconcile.ChangeReport) string {
	if !r.Changed() && len(r.LockConflicts) == 0 {
		return fmt.Sprintf("%s is consistent\n", r.ProjectID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s reconciled\n", r.ProjectID)
	for _, c := range r.Changes {
		old := c.Old
		if old == "" {
			old = "(none)"
		}
		fmt.Fprintf(&b, "  %s: %s -> %s\n", c.TranscriptID, old, c.New)
	}
	fmt.Fprintf(&b, "  rows updated: %d, sheets reordered: %d, keys renamed: %d\n",
		r.RowsUpdated, r.SheetsReordered, r.KeysRenamed)
	fmt.Fprintf(&b, "  orphan rows removed: %d, aux entries purged: %d\n", r.OrphanRowsRemoved, r.AuxPurged)
	if len(r.LockConflicts) > 0 {
		fmt.Fprintf(&b, "  WARNING: locked transcripts share %s\n", strings.Join(r.LockConflicts, ", "))
	}
	return b.String()
}
