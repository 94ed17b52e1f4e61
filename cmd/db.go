package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/db"
)

// NewDbCommand creates the 'db' command with its subcommands.
func NewDbCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Call log database management",
		Long: `Call log database management.

Manage the PostgreSQL schema behind the call log (store.driver: postgres).
The SQLite store creates its schema on open and needs no migrations.

Migrations are embedded in the binary, named with numeric prefixes
(e.g. 001_call_log.sql), applied in order and tracked in the
schema_migrations table.

Examples:
  # Show migration status
  recents db status

  # Apply all pending migrations
  recents db migrate

  # Preview migrations without applying
  recents db migrate --dry-run`,
		Aliases: []string{"database", "migrations"},
	}

	cmd.AddCommand(newDbMigrateCommand(deps))
	cmd.AddCommand(newDbStatusCommand(deps))

	return cmd
}

func newDbMigrateCommand(deps *CommandDeps) *cobra.Command {
	var (
		dryRun bool
		target string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Shows pending migrations before applying them. Each migration runs in its own
transaction; if one fails it is rolled back and no further migrations are
attempted.`,
		Example: `  recents db migrate
  recents db migrate --dry-run
  recents db migrate --target 002 --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, deps, func(ctx context.Context, pool *pgxpool.Pool) error {
				return runDbMigrate(ctx, pool, cmd.InOrStdin(), cmd.OutOrStdout(), dryRun, yes, target)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be applied without executing")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target version to migrate to (e.g., 002)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func newDbStatusCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database migration status",
		Long: `Show the current state of database migrations.

Displays three categories of migrations:
  - Applied: applied and still embedded in the binary
  - Pending: embedded but not applied yet
  - Drift: applied but unknown to this binary`,
		Example: `  recents db status
  recents db status -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			return withDatabaseConfig(cmd, deps, cfg, func(ctx context.Context, pool *pgxpool.Pool) error {
				status, err := db.GetMigrationStatus(ctx, pool, db.Schema())
				if err != nil {
					return fmt.Errorf("getting migration status: %w", err)
				}
				return outputMigrationStatus(cmd.OutOrStdout(), cfg.OutputFormat, status)
			})
		},
	}
}

func withDatabase(cmd *cobra.Command, deps *CommandDeps, fn func(context.Context, *pgxpool.Pool) error) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	return withDatabaseConfig(cmd, deps, cfg, fn)
}

func withDatabaseConfig(cmd *cobra.Command, deps *CommandDeps, cfg *config.CLIConfig, fn func(context.Context, *pgxpool.Pool) error) error {
	if cfg.Store.Driver != config.DriverPostgres {
		return fmt.Errorf("db commands need store.driver %q (configured: %q)", config.DriverPostgres, cfg.Store.Driver)
	}

	ctx, cancel := withTimeout(cmd.Context(), cfg)
	defer cancel()

	pool, err := connectToDatabase(ctx, cfg, deps.Secrets)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, pool)
}

func runDbMigrate(ctx context.Context, conn db.Conn, in io.Reader, out io.Writer, dryRun, yes bool, target string) error {
	status, err := db.GetMigrationStatus(ctx, conn, db.Schema())
	if err != nil {
		return fmt.Errorf("getting pending migrations: %w", err)
	}

	if len(status.Pending) == 0 {
		fmt.Fprintln(out, "No pending migrations.")
		return nil
	}

	fmt.Fprintf(out, "Pending migrations (%d):\n", len(status.Pending))
	for _, m := range status.Pending {
		fmt.Fprintf(out, "  %s - %s\n", m.Version, m.Name)
	}
	fmt.Fprintln(out)

	if dryRun {
		fmt.Fprintln(out, "Dry run mode: no migrations applied.")
		return nil
	}

	if !yes {
		fmt.Fprint(out, "Apply these migrations? (y/N): ")
		line, _ := bufio.NewReader(in).ReadString('\n')
		if strings.ToLower(strings.TrimSpace(line)) != "y" {
			fmt.Fprintln(out, "Migration cancelled.")
			return nil
		}
	}

	var result *db.MigrationResult
	if target != "" {
		fmt.Fprintf(out, "Applying migrations up to version %s...\n", target)
		result, err = db.RunMigrationsToTarget(ctx, conn, db.Schema(), target)
	} else {
		fmt.Fprintln(out, "Applying all pending migrations...")
		result, err = db.RunMigrations(ctx, conn, db.Schema())
	}

	if err != nil {
		fmt.Fprintf(out, "\nMigration failed: %v\n", err)
		if result != nil && len(result.Applied) > 0 {
			fmt.Fprintln(out, "\nSuccessfully applied before failure:")
			for _, v := range result.Applied {
				fmt.Fprintf(out, "  ✓ %s\n", v)
			}
		}
		return err
	}

	fmt.Fprintln(out)
	if len(result.Applied) > 0 {
		fmt.Fprintf(out, "Successfully applied %d migration(s):\n", len(result.Applied))
		for _, v := range result.Applied {
			fmt.Fprintf(out, "  ✓ %s\n", v)
		}
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped %d migration(s) (already applied):\n", len(result.Skipped))
		for _, v := range result.Skipped {
			fmt.Fprintf(out, "  - %s\n", v)
		}
	}

	fmt.Fprintln(out, "\nMigrations completed successfully.")
	return nil
}

func outputMigrationStatus(w io.Writer, format config.OutputFormat, status *db.MigrationStatus) error {
	return writeFormatted(w, format, status, func(w io.Writer) error {
		outputMigrationStatusText(w, status)
		return nil
	})
}

func outputMigrationStatusText(w io.Writer, status *db.MigrationStatus) {
	writeEntries := func(title string, entries []db.MigrationStatusEntry, withTime bool) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(w, "%s (%d):\n", title, len(entries))
		if withTime {
			fmt.Fprintln(w, "  VERSION    NAME                              APPLIED")
			fmt.Fprintln(w, "  -------    ----                              -------")
		} else {
			fmt.Fprintln(w, "  VERSION    NAME")
			fmt.Fprintln(w, "  -------    ----")
		}
		for _, m := range entries {
			if !withTime {
				fmt.Fprintf(w, "  %-10s %s\n", truncate(m.Version, 10), m.Name)
				continue
			}
			appliedAt := "-"
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "  %-10s %-33s %s\n", truncate(m.Version, 10), truncate(m.Name, 33), appliedAt)
		}
		fmt.Fprintln(w)
	}

	writeEntries("Applied Migrations", status.Applied, true)
	writeEntries("Pending Migrations", status.Pending, false)
	writeEntries("Drift - applied but file missing", status.Drift, true)

	if len(status.Applied) == 0 && len(status.Pending) == 0 && len(status.Drift) == 0 {
		fmt.Fprintln(w, "No migrations found.")
		return
	}

	fmt.Fprintf(w, "Summary: %d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		fmt.Fprintf(w, ", %d drift", len(status.Drift))
	}
	fmt.Fprintln(w)
}
