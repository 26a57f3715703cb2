// Package sqldb stores cardroom state in a relational database. SQLite
// (modernc.org/sqlite, pure Go) and PostgreSQL (lib/pq) share one schema and
// one set of queries; only placeholders and row locking differ.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mcoot/cardroom/internal/storage"
)

// Dialect selects the SQL flavour
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Store implements storage.Storage over database/sql
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

// OpenSQLite opens (creating if needed) a SQLite database file and ensures
// the schema exists. Write transactions take the database lock up front
// (BEGIN IMMEDIATE) so room joins are serialized.
func OpenSQLite(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps pragmas and the write lock on the same session.
	db.SetMaxOpenConns(1)

	return open(db, DialectSQLite)
}

// OpenPostgres connects to PostgreSQL and ensures the schema exists
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	return open(db, DialectPostgres)
}

func open(db *sql.DB, dialect Dialect) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}

	store := NewWithDB(db, dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an existing handle without touching the schema (for testing)
func NewWithDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		role TEXT NOT NULL,
		display_name TEXT NOT NULL,
		password_algorithm TEXT,
		password_hash TEXT,
		subject TEXT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identities_guest_name ON identities (display_name) WHERE provider = 'guest'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identities_subject ON identities (provider, subject) WHERE subject IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS session_tokens (
		value TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL REFERENCES identities (id) ON DELETE CASCADE,
		issued_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		revoked_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS session_tokens_identity ON session_tokens (identity_id)`,
	`CREATE INDEX IF NOT EXISTS session_tokens_expires ON session_tokens (expires_at)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		host_id TEXT NOT NULL REFERENCES identities (id) ON DELETE CASCADE,
		max_players INTEGER NOT NULL,
		max_spectators INTEGER NOT NULL,
		visibility TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS rooms_created ON rooms (created_at)`,
	`CREATE TABLE IF NOT EXISTS memberships (
		room_code TEXT NOT NULL REFERENCES rooms (code) ON DELETE CASCADE,
		identity_id TEXT NOT NULL REFERENCES identities (id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		joined_at BIGINT NOT NULL,
		PRIMARY KEY (room_code, identity_id)
	)`,
	`CREATE INDEX IF NOT EXISTS memberships_identity ON memberships (identity_id)`,
}

// EnsureSchema creates any missing tables and indexes
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate returns the row-lock suffix for reads inside a join transaction.
// SQLite already holds the database write lock from BEGIN IMMEDIATE.
func (s *Store) forUpdate() string {
	if s.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// noLimit returns a LIMIT clause that lets OFFSET stand alone
func (s *Store) noLimit() string {
	if s.dialect == DialectPostgres {
		return "LIMIT ALL"
	}
	return "LIMIT -1"
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isUniqueViolation detects unique and primary key conflicts from either driver
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
