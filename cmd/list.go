package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recents/pkg/recents"
)

// NewListCommand creates the 'list' command.
func NewListCommand(deps *CommandDeps) *cobra.Command {
	var (
		group   bool
		maxSize int
		pages   int
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the recent calls feed",
		Long: `Show the recent calls feed, newest first.

Each entry is a call enriched with the caller's contact name and photo, the
SIM line that handled it and, for contacts with several numbers, which number
was used. Calls from blocked numbers are left out.

With --group, consecutive calls from the same party on the same line are
folded into one entry; the CALLS column shows how many were folded.

Pages are fetched one after another, each continuing from the end of the
previous one. --pages controls how many, --all keeps going until the history
is exhausted.

Examples:
  # Latest page
  recents list

  # Grouped, three pages of up to 50 entries
  recents list --group --max 50 --pages 3

  # Everything, as JSON
  recents list --all -o json`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rt, err := deps.open(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !cmd.Flags().Changed("group") {
				group = cfg.Aggregation.GroupSubsequentCalls
			}
			if !cmd.Flags().Changed("max") {
				maxSize = cfg.Aggregation.PageSize
			}

			ctx, cancel := withTimeout(cmd.Context(), cfg)
			defer cancel()

			page, err := fetchPages(ctx, rt.Aggregator, recents.PageRequest{
				GroupSubsequentCalls: group,
				MaxSize:              maxSize,
			}, pages, all)
			if err != nil {
				return err
			}

			if !cfg.Permissions.ReadCallLog {
				fmt.Fprintln(cmd.ErrOrStderr(), "Call log read permission is not granted; showing nothing.")
			}

			return outputCalls(cmd.OutOrStdout(), cfg.OutputFormat, page)
		},
	}

	cmd.Flags().BoolVarP(&group, "group", "g", false, "Fold consecutive calls from the same party")
	cmd.Flags().IntVar(&maxSize, "max", 0, "Maximum entries per page (default from config)")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to fetch")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch pages until the history is exhausted")

	return cmd
}

// fetchPages fetches up to pages pages, or every page when all is set, each
// continuing from the previous one. It stops early once a page adds nothing.
func fetchPages(ctx context.Context, agg *recents.Aggregator, req recents.PageRequest, pages int, all bool) ([]recents.EnrichedCall, error) {
	var page []recents.EnrichedCall
	for i := 0; all || i < pages; i++ {
		req.PreviousPage = page
		next, err := agg.Fetch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", i+1, err)
		}
		if len(next) == len(page) {
			break
		}
		page = next
	}
	return page, nil
}
