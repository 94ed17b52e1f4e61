package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/recents/pkg/credentials"
)

// secretStatus describes one secret for 'auth status'.
type secretStatus struct {
	Name   string `json:"name" yaml:"name"`
	Stored bool   `json:"stored" yaml:"stored"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Masked string `json:"masked,omitempty" yaml:"masked,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewAuthCommand creates the 'auth' command with its subcommands.
func NewAuthCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage store passwords",
		Long: `Manage the passwords recents uses to reach its stores.

Secrets are kept in the system keyring:
  db-password      PostgreSQL call log (used when database.password is empty)
  redis-password   Redis blocklist and event channel

Environment variables RECENTS_DB_PASSWORD and RECENTS_REDIS_PASSWORD take
precedence over stored secrets.`,
	}

	cmd.AddCommand(newAuthSetCommand(deps))
	cmd.AddCommand(newAuthDeleteCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))

	return cmd
}

func newAuthSetCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME",
		Short: "Store a secret",
		Long: `Store a secret in the system keyring.

On a terminal the value is read without echo. Otherwise the first line of
standard input is used, so it can be piped:

  echo "$PGPASSWORD" | recents auth set db-password`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: credentials.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			value, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), name)
			if err != nil {
				return err
			}
			if err := deps.Secrets.Set(name, value); err != nil {
				return fmt.Errorf("storing %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in %s.\n", name, deps.Secrets.Description())
			return nil
		},
	}
}

func newAuthDeleteCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:       "delete NAME",
		Short:     "Remove a stored secret",
		Aliases:   []string{"rm"},
		Args:      cobra.ExactArgs(1),
		ValidArgs: credentials.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			err := deps.Secrets.Delete(name)
			if errors.Is(err, credentials.ErrNoCredentials) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not stored.\n", name)
				return nil
			}
			if err != nil {
				return fmt.Errorf("deleting %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", name)
			return nil
		},
	}
}

func newAuthStatusCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which secrets are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			var statuses []secretStatus
			for _, name := range credentials.Names() {
				s := secretStatus{Name: name}
				value, source, err := deps.Secrets.Get(name)
				switch {
				case err == nil:
					s.Stored = true
					s.Source = source
					s.Masked = maskSecret(value)
				case !errors.Is(err, credentials.ErrNoCredentials):
					s.Error = err.Error()
				}
				statuses = append(statuses, s)
			}

			return writeFormatted(cmd.OutOrStdout(), cfg.OutputFormat, statuses, func(w io.Writer) error {
				fmt.Fprintf(w, "Secrets are written to: %s\n\n", deps.Secrets.Description())
				for _, s := range statuses {
					switch {
					case s.Error != "":
						fmt.Fprintf(w, "  %-16s error: %s\n", s.Name, s.Error)
					case s.Stored:
						fmt.Fprintf(w, "  %-16s %s (%s)\n", s.Name, s.Masked, s.Source)
					default:
						fmt.Fprintf(w, "  %-16s not set\n", s.Name)
					}
				}
				return nil
			})
		},
	}
}

// readSecret reads a secret without echo from a terminal, or one line from in.
func readSecret(in io.Reader, prompt io.Writer, name string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(prompt, "Enter %s: ", name)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("no value given for %s", name)
	}
	return value, nil
}

// maskSecret shows at most the first two characters of s.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", 6)
}
