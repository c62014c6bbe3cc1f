package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"postgres://scan:pw@db:5432/arbscanner?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "arbscanner", User: "scan", Password: "pw"}),
	)
	assert.Equal(t,
		"postgres://scan:pw@db:6543/arbscanner?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "arbscanner", User: "scan", Password: "pw", SSLMode: "require"}),
	)
	assert.Equal(t, "postgres://override", DSN(ClientConfig{DSN: "postgres://override", Host: "ignored"}))
	assert.Equal(t,
		"postgres://scan:p%40ss@db:5432/arbscanner?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "arbscanner", User: "scan", Password: "p@ss"}),
	)
}

func TestMigrationFilesSorted(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
	assert.IsIncreasing(t, names)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := migrationsFS.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	for _, table := range []string{"users", "alert_rules", "quote_history", "opportunity_history", "alert_log"} {
		assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS "+table, table)
	}
	assert.False(t, strings.Contains(string(data), "DROP TABLE"))
}

func TestNonNil(t *testing.T) {
	assert.Equal(t, []string{}, nonNil(nil))
	assert.Equal(t, []string{"a"}, nonNil([]string{"a"}))
}
