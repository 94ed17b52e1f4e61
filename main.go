// Package main provides the recents CLI entry point.
// recents shows and edits the phone's recent calls history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/recents/cmd"
	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/buildinfo"
	rerrors "github.com/otherjamesbrown/recents/pkg/errors"
)

// Global flags.
var (
	cfgFile      string
	timeout      time.Duration
	outputFormat string
	debug        bool
)

// Exit codes.
const (
	exitOK = iota
	exitError
	exitDenied
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "recents",
	Short: "Recent calls history",
	Long: `recents shows and edits the recent calls history.

The feed merges the raw call log with contact names and photos, the SIM line
that handled each call and, for contacts with several numbers, which number
was used. Calls from blocked numbers are hidden.

COMMON WORKFLOWS:
  Browse:      recents list  |  recents list --group --pages 3
  Clean up:    recents delete <id>...  |  recents clear
  Back up:     recents list --all -o yaml > calls.yaml  →  recents restore calls.yaml
  Block:       recents block add "0900*"  →  recents block list
  Serve:       recents serve

Configuration lives in ~/.recents/config.yaml (or $RECENTS_CONFIG_DIR).
Run 'recents config show' to see the effective settings.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig loads the configuration and applies the global flags.
func loadConfig() (*config.CLIConfig, error) {
	var (
		cfg *config.CLIConfig
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadConfigFrom(cfgFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, err
	}

	if timeout != 0 {
		cfg.Timeout = timeout
	}
	if outputFormat != "" {
		format := config.OutputFormat(outputFormat)
		if !format.IsValid() {
			return nil, fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", outputFormat)
		}
		cfg.OutputFormat = format
	}
	if debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// configPath returns the file the configuration is read from.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.ConfigPath()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the recents CLI.

Use --output json or --output yaml for machine-readable output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("recents")
		out := cmd.OutOrStdout()

		switch config.OutputFormat(outputFormat) {
		case config.OutputFormatJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case config.OutputFormatYAML:
			enc := yaml.NewEncoder(out)
			defer enc.Close()
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "recents version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		if info.Modified {
			fmt.Fprintln(out, "  modified:   true")
		}
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and initialize the recents configuration file.`,
}

// configShowCmd displays the effective configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, the config file, environment
variables and flags have been applied, as YAML. Passwords are never shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		path, _ := configPath()

		out := cmd.OutOrStdout()
		if cfg.OutputFormat == config.OutputFormatText {
			fmt.Fprintf(out, "# Config file: %s\n", path)
		}
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

// configInitCmd writes a default configuration file.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		out := cmd.OutOrStdout()
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", path)
			fmt.Fprintln(out, "Use 'recents config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg, path); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", path)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Store:          %s\n", defaultCfg.Store.Driver)
		fmt.Fprintf(out, "  Blocklist:      %s\n", defaultCfg.Blocklist.Backend)
		fmt.Fprintf(out, "  Page size:      %d\n", defaultCfg.Aggregation.PageSize)
		fmt.Fprintf(out, "  Write access:   %s\n", defaultCfg.Permissions.WriteCallLog)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.recents/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "command timeout (e.g., 30s, 1m)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "calls", Title: "Call History:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	deps := cmd.DefaultDeps(loadConfig)

	for _, c := range []*cobra.Command{
		cmd.NewListCommand(deps),
		cmd.NewDeleteCommand(deps),
		cmd.NewClearCommand(deps),
		cmd.NewRestoreCommand(deps),
		cmd.NewBlockCommand(deps),
	} {
		c.GroupID = "calls"
		rootCmd.AddCommand(c)
	}

	for _, c := range []*cobra.Command{
		cmd.NewServeCommand(deps),
		cmd.NewDbCommand(deps),
	} {
		c.GroupID = "ops"
		rootCmd.AddCommand(c)
	}

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	authCmd := cmd.NewAuthCommand(deps)
	for _, c := range []*cobra.Command{configCmd, authCmd, versionCmd} {
		c.GroupID = "setup"
		rootCmd.AddCommand(c)
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case rerrors.IsPermissionDenied(err):
		return exitDenied
	default:
		return exitError
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	stop()
	os.Exit(exitCode(err))
}
