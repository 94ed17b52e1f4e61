package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/credentials"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

// SecretStore is the credential store as the auth commands use it.
type SecretStore interface {
	SecretSource
	Get(name string) (string, string, error)
	Set(name, value string) error
	Delete(name string) error
	Description() string
}

// CommandDeps holds the dependencies shared by the recents commands.
type CommandDeps struct {
	// LoadConfig returns the effective configuration, flags applied.
	LoadConfig func() (*config.CLIConfig, error)

	// OpenRuntime wires the stores for cfg behind gate.
	OpenRuntime func(ctx context.Context, cfg *config.CLIConfig, gate recents.PermissionGate) (*Runtime, error)

	// NewGate builds the permission gate for a command invocation.
	NewGate func(cmd *cobra.Command, cfg *config.CLIConfig, assumeYes bool) recents.PermissionGate

	Secrets SecretStore

	// Registry collects the metrics of the opened runtime. serve exposes it.
	Registry *prometheus.Registry
}

// DefaultDeps returns the default dependencies for production use.
func DefaultDeps(loadConfig func() (*config.CLIConfig, error)) *CommandDeps {
	if loadConfig == nil {
		loadConfig = config.LoadConfig
	}
	deps := &CommandDeps{
		LoadConfig: loadConfig,
		Secrets:    credentials.NewStore(),
		Registry:   prometheus.NewRegistry(),
	}
	deps.OpenRuntime = func(ctx context.Context, cfg *config.CLIConfig, gate recents.PermissionGate) (*Runtime, error) {
		return OpenRuntime(ctx, cfg, RuntimeOptions{
			Logger:     NewLogger(cfg, "recents", os.Stderr),
			Registerer: deps.Registry,
			Gate:       gate,
			Secrets:    deps.Secrets,
		})
	}
	deps.NewGate = func(cmd *cobra.Command, cfg *config.CLIConfig, assumeYes bool) recents.PermissionGate {
		gate := NewTerminalGate(cfg, assumeYes)
		gate.In = cmd.InOrStdin()
		gate.Out = cmd.ErrOrStderr()
		return gate
	}
	return deps
}

// open loads configuration and opens a runtime for cmd.
func (d *CommandDeps) open(cmd *cobra.Command, assumeYes bool) (*config.CLIConfig, *Runtime, error) {
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	rt, err := d.OpenRuntime(cmd.Context(), cfg, d.NewGate(cmd, cfg, assumeYes))
	if err != nil {
		return nil, nil, err
	}
	return cfg, rt, nil
}

// withTimeout bounds ctx by the configured command timeout.
func withTimeout(ctx context.Context, cfg *config.CLIConfig) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, cfg.Timeout)
}
