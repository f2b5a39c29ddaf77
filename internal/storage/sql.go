package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/creatorhub/sessiond/internal/db"
)

// SQLStore keeps values in the local_storage table of a Postgres or SQLite
// database. The schema is created by db.Migrate.
type SQLStore struct {
	db      *sql.DB
	dialect db.Dialect
	// SQLite allows a single writer; the lock is nil for Postgres
	writeLock *sync.Mutex
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open, migrated database
func NewSQLStore(database *sql.DB, dialect db.Dialect) *SQLStore {
	s := &SQLStore{db: database, dialect: dialect}
	if dialect == db.DialectSQLite {
		s.writeLock = new(sync.Mutex)
	}
	return s
}

// rebind rewrites $n placeholders to ? for SQLite
func (s *SQLStore) rebind(query string) string {
	if s.dialect != db.DialectSQLite {
		return query
	}
	for i := 9; i >= 1; i-- {
		query = strings.ReplaceAll(query, "$"+strconv.Itoa(i), "?")
	}
	return query
}

func (s *SQLStore) lock() func() {
	if s.writeLock == nil {
		return func() {}
	}
	s.writeLock.Lock()
	return s.writeLock.Unlock
}

// Get returns the value stored under key
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT item_value FROM local_storage WHERE item_key = $1
	`), key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces the value under key
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	defer s.lock()()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO local_storage (item_key, item_value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (item_key) DO UPDATE
		SET item_value = excluded.item_value, updated_at = CURRENT_TIMESTAMP
	`), key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes keys in one transaction
func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	defer s.lock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`DELETE FROM local_storage WHERE item_key = $1`)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, query, k); err != nil {
			return fmt.Errorf("delete %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
