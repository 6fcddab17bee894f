// Package db opens and migrates the SQLite database backing the
// generation manifest.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/logger"
)

// SQLiteBusyTimeoutMS is how long a locked database blocks a statement
// before erroring. Watch mode can overlap a manual generate run; five
// seconds outlasts any single regeneration.
const SQLiteBusyTimeoutMS = 5000

// Open opens a SQLite database at the specified path with optimized
// settings. The file is created if it does not exist; the parent
// directory must.
func Open(path string) (*sql.DB, error) {
	logger.Debugw("opening database", "path", path)
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// Enable WAL mode for concurrent reads during writes
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "enable WAL mode")
	}

	// Enable foreign key constraints
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	if _, err := conn.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", SQLiteBusyTimeoutMS)); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "set busy timeout")
	}

	logger.Debugw("database opened",
		"path", path,
		"wal_mode", true,
		"foreign_keys", true,
	)
	return conn, nil
}

// OpenWithMigrations opens the database and brings its schema up to
// date in one step.
func OpenWithMigrations(path string) (*sql.DB, error) {
	conn, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
