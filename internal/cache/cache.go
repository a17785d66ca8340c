// Package cache provides a SQLite-backed key-value cache with expiration.
//
// The cache is a scoped object with an explicit TTL, created per process and
// handed to the services that need it. Nothing in this package is global.
package cache

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Cache provides simple key-value storage with expiration.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// New creates a new cache instance. ttl is the default lifetime applied by SetJSON.
func New(db *sql.DB, ttl time.Duration) *Cache {
	return &Cache{db: db, ttl: ttl}
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// SetJSON stores a value as JSON in the cache with the default TTL.
func (c *Cache) SetJSON(key string, value interface{}) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(c.ttl).Unix()
	_, err = c.db.Exec(`
		INSERT INTO cache (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, string(jsonData), expiresAt)
	return err
}

// GetJSON retrieves a JSON value from the cache and unmarshals it into dest.
// Returns false if the key doesn't exist, is expired, or cannot be unmarshaled.
func (c *Cache) GetJSON(key string, dest interface{}) bool {
	var value string
	var expiresAt int64
	err := c.db.QueryRow("SELECT value, expires_at FROM cache WHERE key = ?", key).Scan(&value, &expiresAt)
	if err != nil {
		return false
	}

	if time.Now().Unix() >= expiresAt {
		return false
	}

	return json.Unmarshal([]byte(value), dest) == nil
}

// Delete removes a cache entry.
func (c *Cache) Delete(key string) error {
	_, err := c.db.Exec("DELETE FROM cache WHERE key = ?", key)
	return err
}

// DeleteByPrefix removes all cache entries matching a prefix.
func (c *Cache) DeleteByPrefix(prefix string) error {
	_, err := c.db.Exec("DELETE FROM cache WHERE key LIKE ?", prefix+"%")
	return err
}

// DeleteExpired removes all entries past their expiration time.
// Returns the number of rows removed.
func (c *Cache) DeleteExpired() (int64, error) {
	res, err := c.db.Exec("DELETE FROM cache WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
