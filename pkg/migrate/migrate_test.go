package migrate_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/farmcart-sync/pkg/migrate"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.ValidateFS(migrate.Migrations, "migrations"))
}

func TestLocalEntriesMigrationContainsTable(t *testing.T) {
	data, err := migrate.Migrations.ReadFile("migrations/20260301120000_create_local_entries.sql")
	require.NoError(t, err)
	content := string(data)
	for _, check := range []string{
		"CREATE TABLE IF NOT EXISTS local_entries",
		"key TEXT PRIMARY KEY",
		"DROP TABLE IF EXISTS local_entries",
	} {
		require.True(t, strings.Contains(content, check), "missing %q", check)
	}
}

func TestRunUpAgainstSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.Run(context.Background(), sqlDB, "sqlite3", "up"))
	require.True(t, conn.Migrator().HasTable("local_entries"))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	path, err := migrate.CreateSQLMigration(dir, "Add Sync Cursor!", now)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "20260302093000_add_sync_cursor.sql"))
	require.NoError(t, migrate.ValidateFS(os.DirFS(dir), "."))

	_, err = migrate.CreateSQLMigration(dir, "add sync cursor", now)
	require.Error(t, err)

	_, err = migrate.CreateSQLMigration(dir, "!!!", now)
	require.Error(t, err)
}
