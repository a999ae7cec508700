package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tvarstm/stm"
	"github.com/tvarstm/stm/internal/jsonval"
)

// NewIncrementCommand creates the increment command: a small demo that
// drives the public Atomically API end-to-end against a real persistent
// store, so the CLI exercises the same commit/retry path library callers
// do rather than talking to the backend directly.
func NewIncrementCommand(rootOpts *RootOptions) *cobra.Command {
	var delta int64

	cmd := &cobra.Command{
		Use:           "increment <id>",
		Short:         "Atomically add delta to an integer-valued TVar",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIncrement(rootOpts, cmd, args[0], delta)
		},
	}
	cmd.Flags().Int64Var(&delta, "delta", 1, "amount to add")

	return cmd
}

func runIncrement(opts *RootOptions, cmd *cobra.Command, id string, delta int64) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if opts.DB == "" {
		return ReportError(formatter, ExitCommandError, "--db is required", nil)
	}

	store, err := stm.Open(stm.Options{Backend: stm.Persistent, Location: opts.DB})
	if err != nil {
		return ReportError(formatter, ExitCommandError, "failed to open store", err)
	}
	defer store.Close()

	formatter.VerboseLog("incrementing tvar %q by %d", id, delta)

	ctx := cmd.Context()
	result, err := stm.Atomically(ctx, store, func(tx *stm.Tx) (int64, error) {
		cur, err := tx.ReadTVar(id)
		if err != nil {
			return 0, err
		}
		n, ok := cur.(jsonval.Number).Int64()
		if !ok {
			return 0, fmt.Errorf("tvar %q is not an integer", id)
		}
		next := n + delta
		if err := tx.WriteTVar(id, next); err != nil {
			return 0, err
		}
		return next, nil
	})
	if err != nil {
		if stm.IsNotFound(err) {
			return ReportError(formatter, ExitFailure, fmt.Sprintf("tvar %q not found", id), err)
		}
		if stm.IsMaxRetriesExceeded(err) {
			return ReportError(formatter, ExitFailure, "gave up after exceeding the retry ceiling", err)
		}
		return ReportError(formatter, ExitCommandError, "failed to increment tvar", err)
	}

	return formatter.Success(map[string]any{"id": id, "value": result})
}
