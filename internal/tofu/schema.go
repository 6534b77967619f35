// Package tofu is the SQLite-backed trust-on-first-use certificate store.
package tofu

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS trust_records (
	host_port   TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	first_seen  DATETIME NOT NULL,
	last_seen   DATETIME NOT NULL,
	not_before  DATETIME,
	not_after   DATETIME
);
`

// Store wraps a sql.DB holding trust records.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the trust database file at path and applies the schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", fileDSN(path))
	if err != nil {
		return nil, fmt.Errorf("tofu: open db: %w", err)
	}
	// A single writer keeps first-use inserts strictly ordered.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tofu: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tofu: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// fileDSN builds a file: URI for path so that '?' and '#' in the file name
// are escaped instead of starting the parameter list.
func fileDSN(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")
	u := url.URL{Scheme: "file", Opaque: url.PathEscape(path), RawQuery: params.Encode()}
	return u.String()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
