package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/phone"
)

// blockResult is the machine-readable result of a block subcommand.
type blockResult struct {
	Number     string `json:"number" yaml:"number"`
	Normalized string `json:"normalized" yaml:"normalized"`
	Blocked    bool   `json:"blocked" yaml:"blocked"`
	Changed    bool   `json:"changed" yaml:"changed"`
}

// NewBlockCommand creates the 'block' command with its subcommands.
func NewBlockCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Manage blocked numbers",
		Long: `Manage blocked numbers.

Calls from blocked numbers are left out of 'recents list'. Entries match a
caller when their digits are equal or share the last comparable digits
(aggregation.comparable_digits, 9 by default). An entry containing '*' is a
pattern where '*' stands for any run of digits, e.g. "0900*".

The blocklist lives in a YAML file (blocklist.backend: file) or a Redis set
(blocklist.backend: redis).

Examples:
  recents block add "+421 905 123 456"
  recents block add "0900*"
  recents block check 0905123456
  recents block list
  recents block remove "0900*"`,
	}

	cmd.AddCommand(newBlockAddCommand(deps))
	cmd.AddCommand(newBlockRemoveCommand(deps))
	cmd.AddCommand(newBlockCheckCommand(deps))
	cmd.AddCommand(newBlockListCommand(deps))

	return cmd
}

func newBlockAddCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "add NUMBER",
		Short: "Block a number or pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlocklist(cmd, deps, func(cfg *config.CLIConfig, bl Blocklist) error {
				added, err := bl.Add(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return outputBlockResult(cmd.OutOrStdout(), cfg.OutputFormat, blockResult{
					Number:     args[0],
					Normalized: phone.Normalize(args[0]),
					Blocked:    true,
					Changed:    added,
				})
			})
		},
	}
}

func newBlockRemoveCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NUMBER",
		Short:   "Unblock a number or pattern",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlocklist(cmd, deps, func(cfg *config.CLIConfig, bl Blocklist) error {
				removed, err := bl.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				stillBlocked, err := bl.IsBlocked(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return outputBlockResult(cmd.OutOrStdout(), cfg.OutputFormat, blockResult{
					Number:     args[0],
					Normalized: phone.Normalize(args[0]),
					Blocked:    stillBlocked,
					Changed:    removed,
				})
			})
		},
	}
}

func newBlockCheckCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "check NUMBER",
		Short: "Report whether calls from a number are hidden",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlocklist(cmd, deps, func(cfg *config.CLIConfig, bl Blocklist) error {
				blocked, err := bl.IsBlocked(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return outputBlockResult(cmd.OutOrStdout(), cfg.OutputFormat, blockResult{
					Number:     args[0],
					Normalized: phone.Normalize(args[0]),
					Blocked:    blocked,
				})
			})
		},
	}
}

func newBlockListCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List blocked numbers and patterns",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlocklist(cmd, deps, func(cfg *config.CLIConfig, bl Blocklist) error {
				entries, err := bl.List(cmd.Context())
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []string{}
				}
				return writeFormatted(cmd.OutOrStdout(), cfg.OutputFormat, entries, func(w io.Writer) error {
					if len(entries) == 0 {
						fmt.Fprintln(w, "No blocked numbers.")
						return nil
					}
					for _, e := range entries {
						fmt.Fprintf(w, "  %s\n", e)
					}
					return nil
				})
			})
		},
	}
}

// withBlocklist opens the runtime and hands its blocklist to fn.
func withBlocklist(cmd *cobra.Command, deps *CommandDeps, fn func(*config.CLIConfig, Blocklist) error) error {
	cfg, rt, err := deps.open(cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.Blocklist == nil {
		return errors.New("no blocklist configured (blocklist.backend is none)")
	}
	return fn(cfg, rt.Blocklist)
}

func outputBlockResult(w io.Writer, format config.OutputFormat, r blockResult) error {
	return writeFormatted(w, format, r, func(w io.Writer) error {
		state := "not blocked"
		if r.Blocked {
			state = "blocked"
		}
		suffix := ""
		if !r.Changed {
			suffix = " (unchanged)"
		}
		fmt.Fprintf(w, "%s: %s%s\n", r.Number, state, suffix)
		return nil
	})
}
