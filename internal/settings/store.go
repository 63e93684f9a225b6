package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store persists raw setting values by name.
type Store interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, name string) (string, bool, error)
	// Set stores value under name, replacing any previous value.
	Set(ctx context.Context, name, value string) error
	// All returns every stored value keyed by name.
	All(ctx context.Context) (map[string]string, error)
}

// DBTX is the subset of pgxpool.Pool used by PostgresStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps settings in the offloader_settings table.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a new PostgresStore with the given connection pool.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get fetches a single setting.
func (s *PostgresStore) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM offloader_settings WHERE name = $1`,
		name,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", name, err)
	}
	return value, true, nil
}

// Set upserts a single setting.
func (s *PostgresStore) Set(ctx context.Context, name, value string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO offloader_settings (name, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", name, err)
	}
	return nil
}

// All loads every stored setting.
func (s *PostgresStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name, value FROM offloader_settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return out, nil
}

// MemoryStore is a Store backed by a map. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns a MemoryStore seeded with values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	m := &MemoryStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}

func (m *MemoryStore) All(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}
