// Package repository provides the client-side storage layer on SQLite.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trade_dashboard/internal/database"
	"trade_dashboard/internal/secure"
)

// Storage keys for the persisted session.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// StorageRepository is the durable key/value client store.
type StorageRepository struct {
	db     *database.DB
	sealer *secure.Sealer
}

// NewStorageRepository creates a new StorageRepository. A nil sealer stores
// secret values in plain text.
func NewStorageRepository(db *database.DB, sealer *secure.Sealer) *StorageRepository {
	return &StorageRepository{db: db, sealer: sealer}
}

// Set stores a plain value under key.
func (r *StorageRepository) Set(key, value string) error {
	return r.put(key, value, false)
}

// SetSecret stores a value under key, sealed when a sealer is configured.
func (r *StorageRepository) SetSecret(key, value string) error {
	if r.sealer == nil {
		return r.put(key, value, false)
	}
	sealed, err := r.sealer.Seal(value, key)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", key, err)
	}
	return r.put(key, sealed, true)
}

func (r *StorageRepository) put(key, value string, encrypted bool) error {
	_, err := r.db.Exec(`
		INSERT INTO client_storage (key, value, encrypted, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encrypted = excluded.encrypted,
			updated_at = excluded.updated_at
	`, key, value, encrypted, time.Now())
	return err
}

// Get returns the value stored under key. The boolean is false when the key
// is absent.
func (r *StorageRepository) Get(key string) (string, bool, error) {
	var value string
	var encrypted bool
	err := r.db.QueryRow(`SELECT value, encrypted FROM client_storage WHERE key = ?`, key).Scan(&value, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if !encrypted {
		return value, true, nil
	}
	if r.sealer == nil {
		return "", false, fmt.Errorf("reading %s: value is sealed but no secret is configured", key)
	}
	plain, err := r.sealer.Open(value, key)
	if err != nil {
		return "", false, fmt.Errorf("opening %s: %w", key, err)
	}
	return plain, true, nil
}

// Delete removes the given keys. Missing keys are ignored.
func (r *StorageRepository) Delete(keys ...string) error {
	for _, key := range keys {
		if _, err := r.db.Exec(`DELETE FROM client_storage WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists the stored keys in sorted order.
func (r *StorageRepository) Keys() ([]string, error) {
	rows, err := r.db.Query(`SELECT key FROM client_storage ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
