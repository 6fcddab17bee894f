package db

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stubtesting "github.com/stubzen/stubzen/internal/testing"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("opens database and applies schema", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		conn, err := OpenWithMigrations(dbPath)
		require.NoError(t, err)
		require.NotNil(t, conn)
		defer conn.Close()

		for _, table := range []string{"schema_migrations", "runs", "units"} {
			var count int
			err = conn.QueryRow(
				"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
			).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 1, count, "table %s should exist after migrations", table)
		}
	})

	t.Run("wraps migration errors with context", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		// Pre-create a conflicting bookkeeping table so migration 000
		// applies but 001 re-runs on every open.
		conn, err := Open(dbPath)
		require.NoError(t, err)
		_, err = conn.Exec("CREATE TABLE units (bad_schema TEXT)")
		require.NoError(t, err)
		conn.Close()

		conn, err = OpenWithMigrations(dbPath)
		if err != nil {
			detailed := fmt.Sprintf("%+v", err)
			assert.Contains(t, detailed, "001", "error should name the failing migration")
			if conn != nil {
				conn.Close()
			}
			return
		}
		conn.Close()
	})
}

func TestMigrate(t *testing.T) {
	t.Run("records applied versions", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		conn, err := Open(dbPath)
		require.NoError(t, err)
		defer conn.Close()

		err = Migrate(conn)
		require.NoError(t, err)

		var count int
		err = conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 2, "000 and 001 should both record")
	})

	t.Run("applies against an in-memory database", func(t *testing.T) {
		conn := stubtesting.CreateTestDB(t)
		require.NoError(t, Migrate(conn))

		var count int
		err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='units'").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("is idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		conn, err := Open(dbPath)
		require.NoError(t, err)
		defer conn.Close()

		err = Migrate(conn)
		require.NoError(t, err)

		err = Migrate(conn)
		require.NoError(t, err, "running migrations multiple times should be safe")
	})

	t.Run("fails on a closed database", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		conn, err := Open(dbPath)
		require.NoError(t, err)
		conn.Close()

		err = Migrate(conn)
		require.Error(t, err)
	})
}
