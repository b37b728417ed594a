package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/project"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/store/jsonfile"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	Overwrite bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	importOpts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Copy a legacy transcripts.json/analyses.json directory into the store",
		Long: `Import the dashboard's legacy data files into the configured store.

Data is written as-is; run "respnoctl migrate" afterwards to assign and
lock respnos. Projects that already exist in the store are skipped unless
--overwrite is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, importOpts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&importOpts.Overwrite, "overwrite", false, "replace projects that already exist")

	return cmd
}

func runImport(opts *RootOptions, importOpts *ImportOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	projects, err := jsonfile.LoadLegacy(dir)
	if err != nil {
		f.Error("E_IMPORT", "failed to read legacy data", err.Error())
		return WrapExitError(ExitCommandError, "failed to read legacy data", err)
	}
	f.VerboseLog("Found %d project(s) in %s", len(projects), dir)

	svc, closeFn, err := opts.openService()
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := svc.Import(cmd.Context(), projects, importOpts.Overwrite)
	if err != nil {
		f.Error("E_IMPORT", "import failed", err.Error())
		return WrapExitError(ExitCommandError, "import failed", err)
	}
	return f.Success(report, formatImport(report))
}

func formatImport(r project.ImportReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d project(s)", len(r.Imported))
	if len(r.Imported) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(r.Imported, ", "))
	}
	b.WriteString("\n")
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped %d existing project(s): %s\n", len(r.Skipped), strings.Join(r.Skipped, ", "))
	}
	return b.String()
}
