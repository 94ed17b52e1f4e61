package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/credentials"
	"github.com/otherjamesbrown/recents/pkg/logging"
	"github.com/otherjamesbrown/recents/pkg/recents"
	"github.com/otherjamesbrown/recents/pkg/store/sqlite"
)

// fakeSecrets is an in-memory SecretStore.
type fakeSecrets struct {
	values map[string]string
}

func newFakeSecrets() *fakeSecrets {
	return &fakeSecrets{values: map[string]string{}}
}

func (f *fakeSecrets) Lookup(name string) (string, error) {
	return f.values[name], nil
}

func (f *fakeSecrets) Get(name string) (string, string, error) {
	v, ok := f.values[name]
	if !ok {
		return "", "", credentials.ErrNoCredentials
	}
	return v, "memory", nil
}

func (f *fakeSecrets) Set(name, value string) error {
	f.values[name] = value
	return nil
}

func (f *fakeSecrets) Delete(name string) error {
	if _, ok := f.values[name]; !ok {
		return credentials.ErrNoCredentials
	}
	delete(f.values, name)
	return nil
}

func (f *fakeSecrets) Description() string { return "memory" }

// testEnv is a sqlite-backed configuration with injectable permissions.
type testEnv struct {
	cfg        *config.CLIConfig
	deps       *CommandDeps
	secrets    *fakeSecrets
	allowWrite bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Store.SQLitePath = filepath.Join(dir, config.DefaultSQLiteFile)
	cfg.Blocklist.File = filepath.Join(dir, config.DefaultBlocklistFile)
	cfg.OutputFormat = config.OutputFormatJSON
	require.NoError(t, cfg.Validate())

	env := &testEnv{cfg: cfg, secrets: newFakeSecrets()}
	env.deps = &CommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) {
			c := *env.cfg
			return &c, nil
		},
		OpenRuntime: func(ctx context.Context, cfg *config.CLIConfig, gate recents.PermissionGate) (*Runtime, error) {
			return OpenRuntime(ctx, cfg, RuntimeOptions{
				Logger:  logging.NewNopLogger(),
				Gate:    gate,
				Secrets: env.secrets,
			})
		},
		NewGate: func(_ *cobra.Command, cfg *config.CLIConfig, _ bool) recents.PermissionGate {
			return recents.StaticGate{Read: cfg.Permissions.ReadCallLog, Write: env.allowWrite}
		},
		Secrets: env.secrets,
	}
	return env
}

// seed inserts calls from the given numbers, oldest first, one minute apart.
func (e *testEnv) seed(t *testing.T, numbers ...string) {
	t.Helper()
	store, err := sqlite.Open(e.cfg.Store.SQLitePath, nil)
	require.NoError(t, err)
	defer store.Close()

	base := int64(1_700_000_000_000)
	records := make([]recents.RawRecord, 0, len(numbers))
	for i, n := range numbers {
		n := n
		records = append(records, recents.RawRecord{
			Number:          &n,
			TimestampMs:     base + int64(i)*60_000,
			DurationSeconds: 30,
			Type:            recents.CallTypeIncoming,
		})
	}
	require.NoError(t, store.InsertBatch(context.Background(), records))
}

// run executes the command built by newCmd with args.
func run(t *testing.T, newCmd func(*CommandDeps) *cobra.Command, deps *CommandDeps, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newCmd(deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// listCalls runs 'list' and decodes its JSON output.
func (e *testEnv) listCalls(t *testing.T, args ...string) []recents.EnrichedCall {
	t.Helper()
	out, _, err := run(t, NewListCommand, e.deps, "", args...)
	require.NoError(t, err)

	var calls []recents.EnrichedCall
	require.NoError(t, json.Unmarshal([]byte(out), &calls), out)
	return calls
}

func numbersOf(calls []recents.EnrichedCall) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.PhoneNumber)
	}
	return out
}
