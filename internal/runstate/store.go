// Package runstate provides a small expiring key-value store shared by the
// HTTP server and the cron-invoked job processes. Job flags and last-ran
// timestamps live here so separate processes see a consistent view.
package runstate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Store holds string values under string keys, each with an expiry. Expired
// entries behave as absent.
type Store interface {
	// Put stores value under key until expiresAt, replacing any prior value.
	Put(ctx context.Context, key, value string, expiresAt time.Time) error
	// Get returns the value for key. ok is false if the key is missing or
	// expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// AnyPresent reports whether at least one of the keys is present and
	// unexpired.
	AnyPresent(ctx context.Context, keys []string) (bool, error)
}

// PostgresStore is a Store backed by the run_state table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store over the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, key, value string, expiresAt time.Time) error {
	query := `
		INSERT INTO run_state (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, expiresAt.UTC()); err != nil {
		return fmt.Errorf("failed to put run state %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := `
		SELECT value FROM run_state
		WHERE key = $1 AND expires_at > NOW()
	`
	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get run state %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete run state %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) AnyPresent(ctx context.Context, keys []string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	query := `
		SELECT EXISTS (
			SELECT 1 FROM run_state
			WHERE key = ANY($1) AND expires_at > NOW()
		)
	`
	var present bool
	if err := s.db.QueryRowContext(ctx, query, keys).Scan(&present); err != nil {
		return false, fmt.Errorf("failed to check run state keys: %w", err)
	}
	return present, nil
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation for tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(ctx context.Context, key, value string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = entry{value: value, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *MemoryStore) AnyPresent(ctx context.Context, keys []string) (bool, error) {
	for _, k := range keys {
		if _, ok, _ := s.Get(ctx, k); ok {
			return true, nil
		}
	}
	return false, nil
}
