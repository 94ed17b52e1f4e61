//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to DATABASE_URL and skips when it is unset.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(context.Background()))
	t.Cleanup(pool.Close)
	return pool
}

func cleanup(t *testing.T, pool *pgxpool.Pool, versions []string, tables ...string) {
	t.Helper()
	ctx := context.Background()
	for _, table := range tables {
		_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)
	}
	for _, v := range versions {
		_, _ = pool.Exec(ctx, "DELETE FROM schema_migrations WHERE version IN ($1, $2)", v, v+".sql")
	}
}

func TestRunMigrationsToTarget(t *testing.T) {
	ctx := context.Background()
	pool := setupTestDB(t)

	fsys := fstest.MapFS{
		"901_create_test_table.sql": {Data: []byte("CREATE TABLE recents_test_901 (id INT);")},
		"902_add_column.sql":        {Data: []byte("ALTER TABLE recents_test_901 ADD COLUMN name TEXT;")},
		"903_create_another.sql":    {Data: []byte("CREATE TABLE recents_test_903 (id INT);")},
	}
	versions := []string{"901_create_test_table", "902_add_column", "903_create_another"}
	t.Cleanup(func() { cleanup(t, pool, versions, "recents_test_901", "recents_test_903") })

	result, err := RunMigrationsToTarget(ctx, pool, fsys, "902_add_column")
	require.NoError(t, err)
	assert.Equal(t, []string{"901_create_test_table", "902_add_column"}, result.Applied)

	status, err := GetMigrationStatus(ctx, pool, fsys)
	require.NoError(t, err)
	require.Len(t, status.Pending, 1)
	assert.Equal(t, "903_create_another", status.Pending[0].Version)

	result, err = RunMigrations(ctx, pool, fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"903_create_another"}, result.Applied)
	assert.Len(t, result.Skipped, 2)
}

func TestRunMigrationsToTarget_InvalidTarget(t *testing.T) {
	pool := setupTestDB(t)

	_, err := RunMigrationsToTarget(context.Background(), pool, fstest.MapFS{
		"901_a.sql": {Data: []byte("SELECT 1;")},
	}, "999_missing")
	assert.ErrorContains(t, err, "not found")
}
