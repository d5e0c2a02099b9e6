// Package storage provides the durable key→JSON-blob store used to persist
// broker connection records and manual/import portfolio snapshots.
// All values are stored as JSON blobs addressed by string keys.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store provides key-value operations over a SQL database.
type Store struct {
	db *sql.DB
}

// New creates a new store backed by the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Set serializes value to JSON and upserts it under key.
func (s *Store) Set(key string, value interface{}) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %q: %w", key, err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO kv_store (key, data, updated_at) VALUES (?, ?, ?)",
		key, string(jsonData), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %q: %w", key, err)
	}

	return nil
}

// Get unmarshals the value stored under key into out. The boolean reports
// whether the key existed; a missing key is not an error.
func (s *Store) Get(key string, out interface{}) (bool, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM kv_store WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %q: %w", key, err)
	}

	return true, nil
}

// GetRaw returns the raw JSON stored under key, if present.
func (s *Store) GetRaw(key string) (json.RawMessage, bool, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM kv_store WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return json.RawMessage(data), true, nil
}

// Delete removes the entry under key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM kv_store WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}
