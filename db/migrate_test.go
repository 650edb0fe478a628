package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateCreatesAllTables(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, Migrate(conn, nil))

	for _, table := range []string{"entities", "knowledge", "evidence", "relationship_types", "relation_assertions"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, Migrate(conn, nil))
	require.NoError(t, Migrate(conn, nil))

	// Seed must not be duplicated by the second run.
	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM relationship_types").Scan(&count))
	assert.Equal(t, 8, count)
}

func TestMigrateSeedsDefaultTypes(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, Migrate(conn, nil))

	for _, machineName := range []string{"is_a", "part_of", "causes", "associated_with", "teaches", "performs", "instance_of", "subclass_of"} {
		var deprecated bool
		err := conn.QueryRow("SELECT deprecated FROM relationship_types WHERE machine_name = ?", machineName).Scan(&deprecated)
		require.NoError(t, err, "seed type %s missing", machineName)
		assert.False(t, deprecated, "seed type %s should be active", machineName)
	}
}
