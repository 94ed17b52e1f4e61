package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/recents/pkg/credentials"
)

func TestAuthCommand_HasSubcommands(t *testing.T) {
	cmd := NewAuthCommand(newTestEnv(t).deps)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"set", "delete", "status"} {
		assert.True(t, names[want], "auth command should have %q subcommand", want)
	}
}

func TestAuthSet_FromStdin(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := run(t, NewAuthCommand, env.deps, "hunter22\n", "set", credentials.DBPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored db-password in memory")
	assert.Equal(t, "hunter22", env.secrets.values[credentials.DBPassword])
}

func TestAuthSet_EmptyInput(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := run(t, NewAuthCommand, env.deps, "\n", "set", credentials.RedisPassword)
	require.Error(t, err)
	assert.Empty(t, env.secrets.values)
}

func TestAuthDelete(t *testing.T) {
	env := newTestEnv(t)
	env.secrets.values[credentials.RedisPassword] = "s3cret"

	out, _, err := run(t, NewAuthCommand, env.deps, "", "delete", credentials.RedisPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted redis-password")
	assert.Empty(t, env.secrets.values)

	out, _, err = run(t, NewAuthCommand, env.deps, "", "delete", credentials.RedisPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "was not stored")
}

func TestAuthStatus(t *testing.T) {
	env := newTestEnv(t)
	env.secrets.values[credentials.DBPassword] = "correct-horse"

	out, _, err := run(t, NewAuthCommand, env.deps, "", "status")
	require.NoError(t, err)

	var statuses []secretStatus
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 2)

	assert.Equal(t, credentials.DBPassword, statuses[0].Name)
	assert.True(t, statuses[0].Stored)
	assert.Equal(t, "memory", statuses[0].Source)
	assert.NotContains(t, statuses[0].Masked, "horse")

	assert.Equal(t, credentials.RedisPassword, statuses[1].Name)
	assert.False(t, statuses[1].Stored)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "co******", maskSecret("correct-horse"))
}
