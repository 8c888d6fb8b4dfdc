// Package state keeps a sidecar record of dispatch outcomes per transcript,
// keyed by content hash. It exists so duplicate-dispatch suppression does not
// depend solely on string-matching file content for the sentinel.
package state

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
    path            TEXT PRIMARY KEY,
    content_sha256  TEXT NOT NULL,
    status          TEXT NOT NULL,
    updated_at      INTEGER NOT NULL,
    last_error      TEXT
);

CREATE INDEX IF NOT EXISTS idx_dispatches_status ON dispatches(status);
`

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrNotFound = errors.New("no dispatch record")

// Record is the stored outcome of the most recent dispatch for one path.
type Record struct {
	Path       string
	ContentSHA string
	Status     string
	UpdatedAt  time.Time
	LastError  string
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply state schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (store *Store) Close() error {
	if store == nil || store.db == nil {
		return nil
	}
	return store.db.Close()
}

// Get returns the record for a path, or ErrNotFound.
func (store *Store) Get(path string) (Record, error) {
	if store == nil || store.db == nil {
		return Record{}, errors.New("state store is not open")
	}

	row := store.db.QueryRow(
		`SELECT path, content_sha256, status, updated_at, COALESCE(last_error, '')
		 FROM dispatches WHERE path = ?`, path)

	var record Record
	var updatedAt int64
	err := row.Scan(&record.Path, &record.ContentSHA, &record.Status, &updatedAt, &record.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load dispatch record for %s: %w", path, err)
	}
	record.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return record, nil
}

// RecordCompleted upserts a completed dispatch for the given content hash.
func (store *Store) RecordCompleted(path, contentSHA string) error {
	return store.upsert(path, contentSHA, StatusCompleted, "")
}

// RecordFailed upserts a failed dispatch, retaining the error text.
func (store *Store) RecordFailed(path, contentSHA, lastError string) error {
	return store.upsert(path, contentSHA, StatusFailed, lastError)
}

func (store *Store) upsert(path, contentSHA, status, lastError string) error {
	if store == nil || store.db == nil {
		return errors.New("state store is not open")
	}
	_, err := store.db.Exec(
		`INSERT INTO dispatches (path, content_sha256, status, updated_at, last_error)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		    content_sha256 = excluded.content_sha256,
		    status = excluded.status,
		    updated_at = excluded.updated_at,
		    last_error = excluded.last_error`,
		path, contentSHA, status, time.Now().UTC().UnixNano(), nullable(lastError))
	if err != nil {
		return fmt.Errorf("record dispatch for %s: %w", path, err)
	}
	return nil
}

// Count returns record totals by status for the status endpoint.
func (store *Store) Count() (completed int, failed int, err error) {
	if store == nil || store.db == nil {
		return 0, 0, errors.New("state store is not open")
	}
	rows, err := store.db.Query(`SELECT status, COUNT(*) FROM dispatches GROUP BY status`)
	if err != nil {
		return 0, 0, fmt.Errorf("count dispatch records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, err
		}
		switch status {
		case StatusCompleted:
			completed = count
		case StatusFailed:
			failed = count
		}
	}
	return completed, failed, rows.Err()
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// HashFile returns the hex SHA-256 of a file's content.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
