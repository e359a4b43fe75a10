// Package sqlitestorage provides a taskguard.Storage persisted in SQLite.
//
// It is intended for the slow tier of a cache stack, where entries should survive a
// process restart. The driver is modernc.org/sqlite, so no cgo is required.
package sqlitestorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/storage"

	_ "modernc.org/sqlite"
)

// DefaultTable is the table entries are stored in unless WithTable is given.
const DefaultTable = "taskguard_cache"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Option configures the SQLite storage.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// WithTable sets the table name. It panics if name is not a plain SQL identifier.
func WithTable(name string) Option {
	if !tableNamePattern.MatchString(name) {
		panic(fmt.Sprintf("invalid table name %q", name))
	}
	return optionFunc(func(o *options) {
		o.table = name
	})
}

// WithBusyTimeout sets how long a connection waits for a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.busyTimeout = d
	})
}

// WithMaxOpenConns sets the connection pool size. The default of 1 keeps every
// operation on one connection, which ":memory:" databases require.
func WithMaxOpenConns(n int) Option {
	return optionFunc(func(o *options) {
		o.maxOpenConns = n
	})
}

type options struct {
	table        string
	busyTimeout  time.Duration
	maxOpenConns int
}

func defaultOptions() options {
	return options{
		table:        DefaultTable,
		busyTimeout:  5 * time.Second,
		maxOpenConns: 1,
	}
}

var (
	_ taskguard.Storage   = (*Storage)(nil)
	_ taskguard.KeyLister = (*Storage)(nil)
)

// Storage implements taskguard.Storage on a SQLite table of (key, value) rows.
type Storage struct {
	db *sql.DB

	getQuery    string
	setQuery    string
	removeQuery string
	clearQuery  string
	keyQuery    string
	countQuery  string
	keysQuery   string
}

// New opens the SQLite database at dsn and creates the table if needed.
func New(dsn string, opts ...Option) (*Storage, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", o.busyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	createTable := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`, o.table)
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s table: %w", o.table, err)
	}

	return &Storage{
		db:          db,
		getQuery:    fmt.Sprintf("SELECT value FROM %s WHERE key = ?", o.table),
		setQuery:    fmt.Sprintf("INSERT INTO %s (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", o.table),
		removeQuery: fmt.Sprintf("DELETE FROM %s WHERE key = ?", o.table),
		clearQuery:  fmt.Sprintf("DELETE FROM %s", o.table),
		keyQuery:    fmt.Sprintf("SELECT key FROM %s ORDER BY key LIMIT 1 OFFSET ?", o.table),
		countQuery:  fmt.Sprintf("SELECT COUNT(*) FROM %s", o.table),
		keysQuery:   fmt.Sprintf("SELECT key FROM %s ORDER BY key", o.table),
	}, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %q: %w", storage.ErrGet, key, err)
	}
	return value, true, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.setQuery, key, value); err != nil {
		return fmt.Errorf("%w: set %q: %w", storage.ErrSet, key, err)
	}
	return nil
}

func (s *Storage) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.removeQuery, key); err != nil {
		return fmt.Errorf("%w: remove %q: %w", storage.ErrRemove, key, err)
	}
	return nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.clearQuery); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrClear, err)
	}
	return nil
}

func (s *Storage) Key(ctx context.Context, index int) (string, bool, error) {
	if index < 0 {
		return "", false, nil
	}
	var key string
	err := s.db.QueryRowContext(ctx, s.keyQuery, index).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: key at %d: %w", storage.ErrKeys, index, err)
	}
	return key, true, nil
}

func (s *Storage) Length(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.countQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", storage.ErrKeys, err)
	}
	return n, nil
}

// AllKeys returns every key in sorted order.
func (s *Storage) AllKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.keysQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", storage.ErrKeys, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", storage.ErrKeys, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate: %w", storage.ErrKeys, err)
	}
	return keys, nil
}
