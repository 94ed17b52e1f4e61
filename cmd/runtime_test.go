package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/recents/config"
	"github.com/otherjamesbrown/recents/pkg/blocklist"
	"github.com/otherjamesbrown/recents/pkg/logging"
	"github.com/otherjamesbrown/recents/pkg/sim"
)

func openTestRuntime(t *testing.T, cfg *config.CLIConfig) (*Runtime, error) {
	t.Helper()
	rt, err := OpenRuntime(context.Background(), cfg, RuntimeOptions{
		Logger:  logging.NewNopLogger(),
		Secrets: newFakeSecrets(),
	})
	if rt != nil {
		t.Cleanup(func() { rt.Close() })
	}
	return rt, err
}

func TestOpenRuntime_SQLiteWithFileBlocklist(t *testing.T) {
	env := newTestEnv(t)

	rt, err := openTestRuntime(t, env.cfg)
	require.NoError(t, err)

	assert.NotNil(t, rt.Aggregator)
	assert.NotNil(t, rt.Mutator)
	assert.NotNil(t, rt.Pool)
	assert.NotNil(t, rt.Health)
	assert.Nil(t, rt.Postgres)
	require.NoError(t, rt.Health.Ping(context.Background()))

	reg, ok := rt.Blocklist.(*blocklist.FileRegistry)
	require.True(t, ok, "file backend should give a FileRegistry, got %T", rt.Blocklist)
	assert.Equal(t, env.cfg.Blocklist.File, reg.Path())
}

func TestOpenRuntime_NoBlocklist(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Blocklist.Backend = config.BlocklistNone

	rt, err := openTestRuntime(t, env.cfg)
	require.NoError(t, err)
	assert.Nil(t, rt.Blocklist)
}

func TestOpenRuntime_RedisBlocklistNeedsRedis(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Blocklist.Backend = config.BlocklistRedis

	rt, err := openTestRuntime(t, env.cfg)
	require.Error(t, err)
	assert.Nil(t, rt)
	assert.Contains(t, err.Error(), "redis")
}

func TestOpenRuntime_InvalidSimAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.SimAccounts = []sim.Account{{ID: 1, HandleID: "a"}, {ID: 2, HandleID: "a"}}

	rt, err := openTestRuntime(t, env.cfg)
	require.Error(t, err)
	assert.Nil(t, rt)
	assert.Contains(t, err.Error(), "duplicate handle_id")
}

func TestOpenRuntime_ContactsFileNamesCalls(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ContactsFile = filepath.Join(t.TempDir(), "contacts.yaml")
	require.NoError(t, os.WriteFile(env.cfg.ContactsFile, []byte(`
contacts:
  - contact_id: 1
    display_name: Alice
    phone_numbers:
      - value: "+421 905 111 111"
        type: 2
`), 0600))
	env.cfg.SimAccounts = []sim.Account{{ID: 0, HandleID: "sim-a", Color: 0xff0000}}
	env.seed(t, "0905111111", "0905222222")

	calls := env.listCalls(t)
	require.Len(t, calls, 2)
	assert.Equal(t, "0905222222", calls[0].Name)
	assert.Equal(t, "Alice", calls[1].Name)
}

func TestOpenRuntime_MissingContactsFile(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ContactsFile = filepath.Join(t.TempDir(), "missing.yaml")

	var (
		rt  *Runtime
		err error
	)
	require.NotPanics(t, func() { rt, err = openTestRuntime(t, env.cfg) })
	require.Error(t, err)
	assert.Nil(t, rt)
	assert.Contains(t, err.Error(), "reading contacts file")
}

func TestRuntime_CloseNil(t *testing.T) {
	var rt *Runtime
	assert.NoError(t, rt.Close())
}

func TestRuntime_CloseTwice(t *testing.T) {
	env := newTestEnv(t)

	rt, err := openTestRuntime(t, env.cfg)
	require.NoError(t, err)

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}
