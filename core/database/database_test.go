package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/feedbackbot/migrations"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "feedbackbot.db", cfg.Path)

	pg := Config{Driver: "postgresql", Host: "db", Name: "relay"}
	require.NoError(t, pg.Normalize())
	assert.Equal(t, DriverPostgres, pg.Driver)
	assert.Equal(t, "5432", pg.Port)
	assert.Equal(t, "disable", pg.SSLMode)
	assert.Equal(t, 10, pg.MaxConnections)

	dyn := Config{Driver: "dynamo"}
	require.NoError(t, dyn.Normalize())
	assert.Equal(t, "feedbackbot", dyn.Dynamo.TablePrefix)
	assert.False(t, dyn.SQL())

	assert.Error(t, (&Config{Driver: "postgres"}).Normalize())
	assert.Error(t, (&Config{Driver: "oracle"}).Normalize())
}

func TestMigrateURL(t *testing.T) {
	pg := Config{Driver: DriverPostgres, User: "bot", Password: "p@ss word", Host: "db", Port: "5432", Name: "relay", SSLMode: "disable"}
	assert.Equal(t, "postgres://bot:p%40ss%20word@db:5432/relay?sslmode=disable", pg.MigrateURL())

	lite := Config{Driver: DriverSQLite, Path: "/tmp/relay.db"}
	assert.Equal(t, "sqlite3:///tmp/relay.db?_foreign_keys=on", lite.MigrateURL())
	assert.Contains(t, lite.DSN(), "_foreign_keys=on")
}

func TestEmbeddedMigrationsPerDriver(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverSQLite} {
		files := listMigrationFiles(migrations.FS, driver)
		assert.Equal(t, []string{"000001_init.up.sql"}, files, driver)
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_init.up.sql", "000002_more.up.sql", "000003_last.up.sql"}
	assert.Equal(t, []string{"000002_more.up.sql", "000003_last.up.sql"}, selectApplied(files, 1, 3))
	assert.Nil(t, selectApplied(files, 3, 3))
	assert.Equal(t, uint64(2), parseVersion("000002_more.up.sql"))
}

func TestSQLiteConnectAndMigrate(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "relay.db")}
	require.NoError(t, cfg.Normalize())

	require.NoError(t, RunMigrations(cfg))
	// A second run is a no-op.
	require.NoError(t, RunMigrations(cfg))

	db, err := Connect(cfg)
	require.NoError(t, err)
	defer db.Close()

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('inquiries', 'administrators', 'replies') ORDER BY name`))
	assert.Equal(t, []string{"administrators", "inquiries", "replies"}, tables)

	var fk int
	require.NoError(t, db.Get(&fk, `PRAGMA foreign_keys`))
	assert.Equal(t, 1, fk)
}

func TestConnectRejectsDynamo(t *testing.T) {
	_, err := Connect(Config{Driver: DriverDynamoDB})
	assert.Error(t, err)
	assert.NoError(t, RunMigrations(Config{Driver: DriverDynamoDB}))
}
