package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrations = fstest.MapFS{
	"migrations/000001_notes.up.sql":   {Data: []byte(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL);`)},
	"migrations/000001_notes.down.sql": {Data: []byte(`DROP TABLE notes;`)},
	"migrations/000002_tags.up.sql":    {Data: []byte(`CREATE TABLE tags (id INTEGER PRIMARY KEY);`)},
	"migrations/000002_tags.down.sql":  {Data: []byte(`DROP TABLE tags;`)},
	"migrations/README.md":             {Data: []byte("ignored")},
}

func sqliteConfig(t *testing.T) Config {
	t.Helper()
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "test.db")}
	require.NoError(t, cfg.Normalize())
	return cfg
}

func tableExists(t *testing.T, cfg Config, name string) bool {
	t.Helper()
	db, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name))
	return n == 1
}

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	require.NoError(t, RunMigrations(ctx, cfg, testMigrations))
	assert.True(t, tableExists(t, cfg, "notes"))
	assert.True(t, tableExists(t, cfg, "tags"))

	// Already at head.
	require.NoError(t, RunMigrations(ctx, cfg, testMigrations))

	require.NoError(t, RollbackMigrations(ctx, cfg, testMigrations, 1))
	assert.True(t, tableExists(t, cfg, "notes"))
	assert.False(t, tableExists(t, cfg, "tags"))
}

func TestRollbackRejectsNonPositiveSteps(t *testing.T) {
	err := RollbackMigrations(context.Background(), sqliteConfig(t), testMigrations, 0)
	assert.ErrorContains(t, err, "steps must be positive")
}

func TestConnectSQLitePool(t *testing.T) {
	db, err := Connect(context.Background(), sqliteConfig(t))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestUpFilesAndBetween(t *testing.T) {
	files := upFiles(testMigrations)
	assert.Equal(t, []string{"000001_notes.up.sql", "000002_tags.up.sql"}, files)

	assert.Equal(t, files, between(files, 0, 2))
	assert.Equal(t, []string{"000002_tags.up.sql"}, between(files, 2, 1))
	assert.Empty(t, between(files, 2, 2))
}

func TestNormalize(t *testing.T) {
	pg := Config{Host: "db", Name: "expenses"}
	require.NoError(t, pg.Normalize())
	assert.Equal(t, DriverPostgres, pg.Driver)
	assert.Equal(t, "5432", pg.Port)
	assert.Equal(t, 5, pg.MaxConnections)
	assert.Contains(t, pg.DSN(), "sslmode=disable")

	lite := Config{Driver: "SQLite", Path: "x.db", MaxConnections: 8}
	require.NoError(t, lite.Normalize())
	assert.Equal(t, 1, lite.MaxConnections)
	assert.Contains(t, lite.DSN(), "foreign_keys(1)")

	assert.Error(t, (&Config{Driver: "mysql"}).Normalize())
	assert.Error(t, (&Config{Driver: DriverSQLite}).Normalize())
	assert.Error(t, (&Config{}).Normalize())
}
