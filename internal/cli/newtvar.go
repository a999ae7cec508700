package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tvarstm/stm"
)

// NewNewTVarCommand creates the new-tvar command.
func NewNewTVarCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "new-tvar <id> <initial-json>",
		Short:         "Create a TVar at version 0 with an initial JSON value",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNewTVar(rootOpts, cmd, args[0], args[1])
		},
	}
	return cmd
}

func runNewTVar(opts *RootOptions, cmd *cobra.Command, id, initialJSON string) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if opts.DB == "" {
		return ReportError(formatter, ExitCommandError, "--db is required", nil)
	}

	var initial any
	if err := json.Unmarshal([]byte(initialJSON), &initial); err != nil {
		return ReportError(formatter, ExitCommandError, "invalid initial JSON value", err)
	}

	store, err := stm.Open(stm.Options{Backend: stm.Persistent, Location: opts.DB})
	if err != nil {
		return ReportError(formatter, ExitCommandError, "failed to open store", err)
	}
	defer store.Close()

	formatter.VerboseLog("creating tvar %q at %s", id, opts.DB)

	ctx := cmd.Context()
	if err := store.NewTVar(ctx, id, initial); err != nil {
		var already *stm.AlreadyExistsError
		if errors.As(err, &already) {
			return ReportError(formatter, ExitFailure, fmt.Sprintf("tvar %q already exists", id), err)
		}
		return ReportError(formatter, ExitCommandError, "failed to create tvar", err)
	}

	return formatter.Success(map[string]any{"id": id, "created": true})
}
