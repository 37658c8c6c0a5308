// Package store persists bookings and feeds as JSON blobs, one record per
// key, in a single sqlite table.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a key has no blob.
var ErrNotFound = errors.New("blob not found")

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	key        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// BlobStore is a key-per-record store. Keys look like "bookings/<id>.json".
type BlobStore struct {
	db *sql.DB
}

// Open creates or opens the sqlite database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(path string) (*BlobStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &BlobStore{db: db}, nil
}

// Close shuts down the database connection.
func (s *BlobStore) Close() error {
	return s.db.Close()
}

// Put creates or replaces the blob at key.
func (s *BlobStore) Put(ctx context.Context, key string, body []byte) error {
	if key == "" {
		return errors.New("blob key is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (key, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		key, body, time.Now().UTC(),
	)
	return errors.Wrapf(err, "put %s", key)
}

// Get returns the blob at key or ErrNotFound.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM blobs WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}
	return body, nil
}

// List returns the keys starting with prefix in ascending order.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM blobs WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(prefix), prefix,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", prefix)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrapf(err, "list %s", prefix)
		}
		keys = append(keys, k)
	}
	return keys, errors.Wrapf(rows.Err(), "list %s", prefix)
}

// Delete removes the blob at key or returns ErrNotFound.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
	if err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, key)
	}
	return nil
}

// keyID extracts <id> from "<prefix><id>.json".
func keyID(prefix, key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".json")
}
