package cli

import (
	"github.com/spf13/cobra"

	"github.com/tvarstm/stm"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List every TVar id in the store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if opts.DB == "" {
		return ReportError(formatter, ExitCommandError, "--db is required", nil)
	}

	store, err := stm.Open(stm.Options{Backend: stm.Persistent, Location: opts.DB})
	if err != nil {
		return ReportError(formatter, ExitCommandError, "failed to open store", err)
	}
	defer store.Close()

	ids, err := store.ListTVars(cmd.Context())
	if err != nil {
		return ReportError(formatter, ExitCommandError, "failed to list tvars", err)
	}

	return formatter.Success(ids)
}
