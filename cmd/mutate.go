package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/recents/config"
	rerrors "github.com/otherjamesbrown/recents/pkg/errors"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

// NewDeleteCommand creates the 'delete' command.
func NewDeleteCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete call records by id",
		Long: `Delete call records by id.

Pass every id of a grouped entry to remove the whole group; 'recents list -o json'
shows them as id plus neighbour_ids. Ids are deleted in batches of 30. If a
batch fails, the batches before it stay deleted and the command reports how
many records were removed.

Examples:
  recents delete 1042
  recents delete 1042 1041 1038`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			cfg, rt, err := deps.open(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := withTimeout(cmd.Context(), cfg)
			defer cancel()

			res, err := recents.Wait(ctx, rt.Mutator.DeleteByIDs(ctx, ids))
			if err != nil && res.Err == nil {
				return err
			}
			return finishMutation(cmd, cfg.OutputFormat, "delete", res)
		},
	}
	return cmd
}

// NewClearCommand creates the 'clear' command.
func NewClearCommand(deps *CommandDeps) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the whole call history",
		Long: `Delete the whole call history.

Requires write access to the call log. With permissions.write_call_log set to
"prompt" you are asked to confirm unless --yes is given; without a terminal
and without --yes the request is denied.

Examples:
  recents clear
  recents clear --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rt, err := deps.open(cmd, yes)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := withTimeout(cmd.Context(), cfg)
			defer cancel()

			res, err := recents.Wait(ctx, rt.Mutator.DeleteAll(ctx))
			if err != nil && res.Err == nil {
				return err
			}
			return finishMutation(cmd, cfg.OutputFormat, "clear", res)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// NewRestoreCommand creates the 'restore' command.
func NewRestoreCommand(deps *CommandDeps) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore FILE",
		Short: "Write previously listed calls back to the history",
		Long: `Write previously listed calls back to the history.

FILE holds calls as produced by 'recents list -o yaml' or '-o json'; use "-"
to read standard input. Each entry is written as one record, oldest first,
keeping its number, type, time, duration and name.

Requires write access to the call log, like 'clear'.

Examples:
  recents list --all -o yaml > backup.yaml
  recents restore backup.yaml --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			calls, err := readCalls(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			cfg, rt, err := deps.open(cmd, yes)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := withTimeout(cmd.Context(), cfg)
			defer cancel()

			res, err := recents.Wait(ctx, rt.Mutator.Restore(ctx, calls))
			if err != nil && res.Err == nil {
				return err
			}
			return finishMutation(cmd, cfg.OutputFormat, "restore", res)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", rerrors.ErrValidation, a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readCalls decodes a YAML or JSON list of calls from path, or stdin for "-".
func readCalls(stdin io.Reader, path string) ([]recents.EnrichedCall, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading calls: %w", err)
	}

	var calls []recents.EnrichedCall
	if err := yaml.Unmarshal(data, &calls); err != nil {
		return nil, fmt.Errorf("%w: parsing calls: %v", rerrors.ErrValidation, err)
	}
	return calls, nil
}

// finishMutation prints the result and turns denial or failure into an error.
func finishMutation(cmd *cobra.Command, format config.OutputFormat, op string, res recents.MutationResult) error {
	if err := outputMutation(cmd.OutOrStdout(), format, op, res); err != nil {
		return err
	}
	if res.Outcome == recents.OutcomeDenied {
		return fmt.Errorf("%s: %w", op, rerrors.ErrPermissionDenied)
	}
	return res.Err
}
