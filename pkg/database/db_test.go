package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", FileName)}
	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrations are idempotent")

	for _, table := range []string{"mangas", "chapters", "admins"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err)
		assert.Equal(t, table, name)
	}

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("MANGASYNC_DB_PATH", "")
	assert.Equal(t, filepath.Join("/srv/data", FileName), DefaultConfig("/srv/data").Path)

	t.Setenv("MANGASYNC_DB_PATH", "/tmp/other.db")
	assert.Equal(t, "/tmp/other.db", DefaultConfig("/srv/data").Path)
}
