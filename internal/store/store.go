package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - job_record, history_record, dependent_record
const currentSchemaVersion = 1

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidRecord is returned when a record fails validation before a write.
var ErrInvalidRecord = errors.New("invalid record")

// ErrTerminalRecord is returned when writing to a record that reached a
// terminal status without a cron expression. It wraps ErrInvalidRecord.
var ErrTerminalRecord = fmt.Errorf("%w: terminal record without cron expression is immutable", ErrInvalidRecord)

// Store is the record store. It is safe for concurrent use; operations are
// serialized.
type Store struct {
	db    *sql.DB
	lock  chan struct{}
	clock func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used to stamp create and update times.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// Open creates or opens a SQLite database at the given path and applies the
// schema. The pool is limited to one connection that is closed after each
// operation.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:    db,
		lock:  make(chan struct{}, 1),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withConn runs fn on a freshly opened connection while holding the store
// lock. The connection is closed before the lock is released.
func (s *Store) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire store: %w", ctx.Err())
	}
	defer func() { <-s.lock }()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	defer conn.Close()

	return fn(conn)
}

// withTx runs fn in a transaction on a locked connection. The transaction
// commits if fn returns nil.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

func (s *Store) now() int64 {
	return s.clock().UnixMilli()
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value on a fresh
// connection. Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	return s.withConn(context.Background(), func(conn *sql.Conn) error {
		var value string
		if err := conn.QueryRowContext(context.Background(), "PRAGMA "+name).Scan(&value); err != nil {
			return fmt.Errorf("failed to query %s: %w", name, err)
		}
		if value != expected {
			return fmt.Errorf("%s = %q, expected %q", name, value, expected)
		}
		return nil
	})
}
