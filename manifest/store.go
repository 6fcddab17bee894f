// Package manifest records what stubzen wrote and the source content
// each unit was written from. The record enables skip-unchanged
// regeneration, exact clean, and watch-mode incremental runs.
package manifest

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stubzen/stubzen/db"
	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/logger"
)

// Dir and File name the manifest location under the project root.
const (
	Dir  = ".stubzen"
	File = "manifest.db"
)

// DefaultPath returns the manifest database path for a project root.
func DefaultPath(root string) string {
	return filepath.Join(root, Dir, File)
}

// Store is the SQLite-backed generation manifest.
type Store struct {
	conn *sql.DB
}

// Open opens the manifest under the project root, creating the
// directory and schema on first use.
func Open(root string) (*Store, error) {
	path := DefaultPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create manifest directory")
	}
	conn, err := db.OpenWithMigrations(path)
	if err != nil {
		return nil, err
	}
	return &Store{conn: conn}, nil
}

// Close releases the underlying database. Further calls on the store
// return ErrManifestClosed.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Store) guard() error {
	if s == nil || s.conn == nil {
		return errors.ErrManifestClosed
	}
	return nil
}

// BeginRun records the start of a generation run.
func (s *Store) BeginRun(id, style string) error {
	if err := s.guard(); err != nil {
		return err
	}
	_, err := s.conn.Exec("INSERT INTO runs (id, stub_style) VALUES (?, ?)", id, style)
	return errors.Wrap(err, "record run start")
}

// FinishRun stamps the run's end time and counters.
func (s *Store) FinishRun(id string, planned, written, skipped, failed, missing int) error {
	if err := s.guard(); err != nil {
		return err
	}
	_, err := s.conn.Exec(`
		UPDATE runs
		SET finished_at = CURRENT_TIMESTAMP,
		    planned = ?, written = ?, skipped = ?, failed = ?, missing = ?
		WHERE id = ?`,
		planned, written, skipped, failed, missing, id)
	return errors.Wrap(err, "record run finish")
}

// UnitRecord is one written stub in the manifest. Path is relative to
// the project root.
type UnitRecord struct {
	Path        string
	Modules     []string
	SourceHash  string
	WrittenHash string
	RunID       string
}

// Unchanged reports whether path was last written from sources hashing
// to sourceHash.
func (s *Store) Unchanged(path, sourceHash string) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	var stored string
	err := s.conn.QueryRow("SELECT source_hash FROM units WHERE path = ?", path).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "look up unit")
	}
	return stored == sourceHash, nil
}

// RecordUnit upserts a written unit.
func (s *Store) RecordUnit(rec UnitRecord) error {
	if err := s.guard(); err != nil {
		return err
	}
	_, err := s.conn.Exec(`
		INSERT INTO units (path, modules, source_hash, written_hash, run_id, written_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			modules = excluded.modules,
			source_hash = excluded.source_hash,
			written_hash = excluded.written_hash,
			run_id = excluded.run_id,
			written_at = CURRENT_TIMESTAMP`,
		rec.Path, strings.Join(rec.Modules, ","), rec.SourceHash, rec.WrittenHash, rec.RunID)
	return errors.Wrap(err, "record unit")
}

// Units returns every recorded unit, sorted by path.
func (s *Store) Units() ([]UnitRecord, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(
		"SELECT path, modules, source_hash, written_hash, run_id FROM units ORDER BY path")
	if err != nil {
		return nil, errors.Wrap(err, "list units")
	}
	defer rows.Close()

	var records []UnitRecord
	for rows.Next() {
		var rec UnitRecord
		var modules string
		if err := rows.Scan(&rec.Path, &modules, &rec.SourceHash, &rec.WrittenHash, &rec.RunID); err != nil {
			return nil, errors.Wrap(err, "scan unit")
		}
		if modules != "" {
			rec.Modules = strings.Split(modules, ",")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Forget removes a unit row, typically after clean deletes its file.
func (s *Store) Forget(path string) error {
	if err := s.guard(); err != nil {
		return err
	}
	_, err := s.conn.Exec("DELETE FROM units WHERE path = ?", path)
	return errors.Wrap(err, "forget unit")
}

// HashSources hashes file paths and contents in order. A read error
// feeds its message into the hash instead of failing: the mismatch just
// makes the unit regenerate.
func HashSources(files []string) string {
	h := sha256.New()
	for _, path := range files {
		io.WriteString(h, path)
		h.Write([]byte{0})
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Debugw("hashing unreadable source", "path", path, "error", err)
			io.WriteString(h, err.Error())
		} else {
			h.Write(data)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashContent hashes rendered output bytes.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
