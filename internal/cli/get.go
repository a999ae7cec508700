package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tvarstm/stm"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:           "get <id>",
		Short:         "Read a TVar's current value, or a path within it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, cmd, args[0], path)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "path within the TVar's document to read (e.g. alice.balance)")

	return cmd
}

func runGet(opts *RootOptions, cmd *cobra.Command, id, path string) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if opts.DB == "" {
		return ReportError(formatter, ExitCommandError, "--db is required", nil)
	}

	store, err := stm.Open(stm.Options{Backend: stm.Persistent, Location: opts.DB})
	if err != nil {
		return ReportError(formatter, ExitCommandError, "failed to open store", err)
	}
	defer store.Close()

	formatter.VerboseLog("reading tvar %q (path=%q)", id, path)

	ctx := cmd.Context()
	value, err := stm.Atomically(ctx, store, func(tx *stm.Tx) (stm.Value, error) {
		if path != "" {
			return tx.ReadTVarPath(id, path)
		}
		return tx.ReadTVar(id)
	})
	if err != nil {
		if stm.IsNotFound(err) {
			return ReportError(formatter, ExitFailure, fmt.Sprintf("tvar %q not found", id), err)
		}
		var absent *stm.PathAbsentError
		if errors.As(err, &absent) {
			return ReportError(formatter, ExitFailure, fmt.Sprintf("path %q absent in tvar %q", path, id), err)
		}
		return ReportError(formatter, ExitCommandError, "failed to read tvar", err)
	}

	return formatter.Success(stm.ToGo(value))
}
