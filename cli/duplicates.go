package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// NewDuplicatesCommand creates the duplicates command.
func NewDuplicatesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "duplicates <project>",
		Short:         "List transcripts sharing an interview date and time",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDuplicates(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runDuplicates(opts *RootOptions, projectID string, cmd *cobra.Command) error {
	svc, closeFn, err := opts.openService()
	if err != nil {
		return err
	}
	defer closeFn()

	f := opts.formatter(cmd)
	groups, err := svc.DetectDuplicates(cmd.Context(), projectID)
	if err != nil {
		f.Error("E_DUPLICATES", "duplicate detection failed", err.Error())
		return WrapExitError(ExitCommandError, "duplicate detection failed", err)
	}
	if groups == nil {
		groups = []reconcile.DuplicateGroup{}
	}
	return f.Success(groups, formatDuplicates(projectID, groups))
}

func formatDuplicates(projectID string, groups []reconcile.DuplicateGroup) string {
	if len(groups) == 0 {
		return fmt.Sprintf("No duplicates in %s\n", projectID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d duplicate group(s) in %s\n", len(groups), projectID)
	for _, g := range groups {
		fmt.Fprintf(&b, "  %s %s:", g.InterviewDate, g.InterviewTime)
		for i, id := range g.TranscriptIDs {
			fmt.Fprintf(&b, " %s(%s)", id, g.Respnos[i])
		}
		b.WriteString("\n")
	}
	return b.String()
}
