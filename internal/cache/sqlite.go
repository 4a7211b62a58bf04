package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createLookupsSQL = `
CREATE TABLE IF NOT EXISTS lookups (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lookups_expires ON lookups(expires_at);
`

// SQLiteCache persists entries in a single SQLite database file
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteCache opens (or creates) the database at path
func NewSQLiteCache(path string, ttl time.Duration) (*SQLiteCache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// One writer at a time; the pipeline is sequential anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createLookupsSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create lookups table: %w", err)
	}

	return &SQLiteCache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get retrieves a live entry
func (c *SQLiteCache) Get(key string) ([]byte, bool) {
	var value []byte
	var expiresAt int64
	err := c.db.QueryRow(`SELECT value, expires_at FROM lookups WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err != nil {
		return nil, false
	}

	if c.now().Unix() > expiresAt {
		_, _ = c.db.Exec(`DELETE FROM lookups WHERE key = ?`, key)
		return nil, false
	}
	return value, true
}

// Set upserts an entry
func (c *SQLiteCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	_, err := c.db.Exec(`
		INSERT INTO lookups (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, c.now().Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("store lookup: %w", err)
	}
	return nil
}

// Delete removes an entry
func (c *SQLiteCache) Delete(key string) error {
	if _, err := c.db.Exec(`DELETE FROM lookups WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete lookup: %w", err)
	}
	return nil
}

// Clear removes every entry
func (c *SQLiteCache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM lookups`); err != nil {
		return fmt.Errorf("clear lookups: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed
func (c *SQLiteCache) Prune() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM lookups WHERE expires_at < ?`, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune lookups: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle
func (c *SQLiteCache) Close() error {
	if c.db == nil {
		return errors.New("sqlite cache already closed")
	}
	err := c.db.Close()
	c.db = nil
	return err
}
