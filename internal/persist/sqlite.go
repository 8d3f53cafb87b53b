package persist

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
	"pkt.systems/pslog"
)

// openDB is swapped in tests.
var openDB = sql.Open

// SQLiteStore keeps documents in a single kv table.
type SQLiteStore struct {
	db  *sql.DB
	log pslog.Logger
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, logger pslog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("persist: create data dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open database: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("persist: pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			name       TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persist: migration: %w", err)
	}
	if logger != nil {
		logger = logger.With("db", path)
	}
	return &SQLiteStore{db: db, log: logger, now: time.Now}, nil
}

// Load reads a document. A missing document is not an error.
func (s *SQLiteStore) Load(name string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		if s.log != nil {
			s.log.Debug("state load miss", "name", name)
		}
		return nil, false, nil
	}
	if err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "name", name, "err", err)
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save upserts a document.
func (s *SQLiteStore) Save(name string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, data, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "name", name, "err", err)
		}
		return err
	}
	return nil
}

// Delete removes a document if present.
func (s *SQLiteStore) Delete(name string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE name = ?`, name)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
