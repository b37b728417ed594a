// Package cli implements respnoctl, the admin command line for the
// respondent-identity engine.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/config"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/logger"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/project"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Overrides for the config file and environment. Empty means unset.
	StoreDriver string
	DBPath      string
	DataDir     string
	RedisURL    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for respnoctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "respnoctl",
		Short: "respnoctl - respondent number administration",
		Long: `Administer respondent numbers (respnos) across projects.

Runs the one-time legacy migration, background consistency sweeps and
per-project reconciliation against the configured store.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.StoreDriver, "store", "", "store driver (sqlite|json|memory)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "JSON store directory")
	cmd.PersistentFlags().StringVar(&opts.RedisURL, "redis-url", "", "Redis URL for cross-process project locks")

	// Add subcommands
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewDuplicatesCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves the effective configuration: file and environment
// first, then flags.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.StoreDriver != "" {
		cfg.Store.Driver = o.StoreDriver
	}
	if o.DBPath != "" {
		cfg.Store.Path = o.DBPath
	}
	if o.DataDir != "" {
		cfg.Store.DataDir = o.DataDir
	}
	if o.RedisURL != "" {
		cfg.RedisURL = o.RedisURL
	}
	return cfg, cfg.Validate()
}

// openService builds the service described by the flags. Logs are only
// emitted in verbose mode so they never mix with command output.
func (o *RootOptions) openService() (*project.Service, func() error, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	log := logger.NewNop()
	if o.Verbose {
		if log, err = logger.New(cfg.LogMode); err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to create logger", err)
		}
	}

	svc, closeFn, err := project.Open(cfg, log)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return svc, closeFn, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
