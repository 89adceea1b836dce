package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "migrate.db")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrationsRunsOnceInOrder(t *testing.T) {
	sqlDB := openTestDB(t)
	migrationFS := fstest.MapFS{
		"0002_add_column.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
ALTER TABLE widgets ADD COLUMN label TEXT NOT NULL DEFAULT '';
-- +migrate Down
`)},
		"0001_init.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
CREATE TABLE widgets (id TEXT PRIMARY KEY);
-- +migrate Down
DROP TABLE widgets;
`)},
	}

	if err := ApplyMigrations(sqlDB, migrationFS); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := sqlDB.Exec("INSERT INTO widgets (id, label) VALUES ('w-1', 'first')"); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	// Re-applying is a no-op.
	if err := ApplyMigrations(sqlDB, migrationFS); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}

	var applied int
	if err := sqlDB.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count applied: %v", err)
	}
	if applied != 2 {
		t.Fatalf("applied migrations = %d, want 2", applied)
	}
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	t.Parallel()

	if err := ApplyMigrations(nil, fstest.MapFS{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestExtractUpMigration(t *testing.T) {
	t.Parallel()

	content := "-- +migrate Up\nCREATE TABLE t (id TEXT);\n-- +migrate Down\nDROP TABLE t;\n"
	up := ExtractUpMigration(content)
	if up != "\nCREATE TABLE t (id TEXT);\n" {
		t.Fatalf("unexpected up section: %q", up)
	}

	plain := "CREATE TABLE t (id TEXT);"
	if ExtractUpMigration(plain) != plain {
		t.Fatal("expected content without markers to pass through")
	}
}
