// Package banlist persists the set of banned identity tokens.
package banlist

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store loads and saves sets of banned identities. The server only
// depends on this contract; live enforcement stays in memory.
type Store interface {
	Load() ([]string, error)
	Save(macs []string) error
	Close() error
}

// SQLiteStore keeps the ban list in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the ban database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ban database: %v", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %v", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS banned_identities (
		mac TEXT PRIMARY KEY,
		banned_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}
	return nil
}

// Load returns every banned identity.
func (s *SQLiteStore) Load() ([]string, error) {
	rows, err := s.db.Query(`SELECT mac FROM banned_identities`)
	if err != nil {
		return nil, fmt.Errorf("failed to load bans: %v", err)
	}
	defer rows.Close()

	var macs []string
	for rows.Next() {
		var mac string
		if err := rows.Scan(&mac); err != nil {
			return nil, fmt.Errorf("failed to scan ban: %v", err)
		}
		macs = append(macs, mac)
	}
	return macs, rows.Err()
}

// Save replaces the stored set with macs.
func (s *SQLiteStore) Save(macs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM banned_identities`); err != nil {
		return fmt.Errorf("failed to clear bans: %v", err)
	}

	now := time.Now().Unix()
	for _, mac := range macs {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO banned_identities (mac, banned_at) VALUES (?, ?)`, mac, now); err != nil {
			return fmt.Errorf("failed to save ban %s: %v", mac, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
