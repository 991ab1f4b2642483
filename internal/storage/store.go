// Package storage persists feeds and entries in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection. All mutating operations run inside
// a transaction so a failure partway leaves the database untouched.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and brings its schema up
// to the current version.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// the sqlite driver opens a new connection per goroutine by default;
	// a single connection keeps writes serialized the way the engine expects
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies schema migrations incrementally. The version lives in
// SQLite's user_version pragma; each step bumps it so an older on-disk
// database upgrades in place. The whole upgrade is one transaction.
func (s *Store) migrate() error {
	return s.inTx(func(tx *sql.Tx) error {
		var version int64
		if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}

		if version < 1 {
			if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS feeds (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT,
				feed_link TEXT,
				link TEXT,
				feed_kind TEXT,
				refreshed_at TIMESTAMP,
				inserted_at TIMESTAMP,
				updated_at TIMESTAMP
			)`); err != nil {
				return fmt.Errorf("migration 1 (feeds table): %w", err)
			}

			if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				feed_id INTEGER,
				title TEXT,
				author TEXT,
				pub_date TIMESTAMP,
				description TEXT,
				content TEXT,
				link TEXT,
				read_at TIMESTAMP,
				inserted_at TIMESTAMP,
				updated_at TIMESTAMP
			)`); err != nil {
				return fmt.Errorf("migration 1 (entries table): %w", err)
			}

			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS entries_feed_id_and_pub_date_and_inserted_at_index
				ON entries (feed_id, pub_date, inserted_at)`); err != nil {
				return fmt.Errorf("migration 1 (entries index): %w", err)
			}

			if _, err := tx.Exec("PRAGMA user_version = 1"); err != nil {
				return fmt.Errorf("migration 1 (version bump): %w", err)
			}
		}

		if version < 2 {
			if _, err := tx.Exec("ALTER TABLE feeds ADD COLUMN latest_etag TEXT"); err != nil {
				return fmt.Errorf("migration 2 (latest_etag column): %w", err)
			}
			if _, err := tx.Exec("PRAGMA user_version = 2"); err != nil {
				return fmt.Errorf("migration 2 (version bump): %w", err)
			}
		}

		if version < 3 {
			if _, err := tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS feeds_feed_link ON feeds (feed_link)"); err != nil {
				return fmt.Errorf("migration 3 (unique feed_link index): %w", err)
			}
			if _, err := tx.Exec("PRAGMA user_version = 3"); err != nil {
				return fmt.Errorf("migration 3 (version bump): %w", err)
			}
		}

		return nil
	})
}

// schemaVersion reports the current user_version pragma value.
func (s *Store) schemaVersion() (int64, error) {
	var version int64
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	return version, err
}

// inTx runs fn inside a transaction, committing when fn returns nil and
// rolling back on any error, so multi-statement operations are
// all-or-nothing no matter where they fail.
func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// nullString maps "" to NULL so absent values stay absent in the schema.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime maps a nil *time.Time to NULL, normalizing to UTC otherwise
// so stored timestamps compare consistently.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
