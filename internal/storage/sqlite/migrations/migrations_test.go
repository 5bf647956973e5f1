package migrations_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/agenciai/agx/internal/storage/sqlite/migrations"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestMigratorUpDown(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(err)
	defer db.Close()

	m, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db})
	require.NoError(err)

	version, err := m.Up(ctx)
	require.NoError(err)
	assert.Equal(t, uint(1), version)
	assert.True(t, tableExists(t, db, "tasks"))

	// Applying it again is a no-op.
	version, err = m.Up(ctx)
	require.NoError(err)
	assert.Equal(t, uint(1), version)

	require.NoError(m.Down(ctx))
	assert.False(t, tableExists(t, db, "tasks"))
}

func TestNewMigratorWithoutDB(t *testing.T) {
	_, err := migrations.NewMigrator(migrations.MigratorConfig{})
	assert.Error(t, err)
}
