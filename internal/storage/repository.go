// Package storage is the relational adapter of the store ports. The same
// repository serves SQLite (modernc) and Postgres (lib/pq); only placeholders,
// DSNs and migrations differ.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

// Repository implements store.Store over database/sql.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ store.Store = (*Repository)(nil)

// OpenSQLite opens (creating if needed) the database file at path and brings
// its schema up to date.
func OpenSQLite(path string, now func() time.Time) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	return open(SQLite, dsn, now)
}

// OpenPostgres connects to dsn and brings its schema up to date.
func OpenPostgres(dsn string, now func() time.Time) (*Repository, error) {
	return open(Postgres, dsn, now)
}

func open(d Dialect, dsn string, now func() time.Time) (*Repository, error) {
	if now == nil {
		now = time.Now
	}
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}
	if d == SQLite {
		// one writer at a time avoids SQLITE_BUSY under concurrent saves
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, core.Unavailable("ping database", err)
	}
	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("Relational store ready", "dialect", string(d))
	return &Repository{db: db, dialect: d, now: now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks connectivity, for health endpoints.
func (r *Repository) Ping(ctx context.Context) error {
	return core.Unavailable("ping database", r.db.PingContext(ctx))
}

func (r *Repository) Dialect() Dialect { return r.dialect }

// rebind rewrites ? placeholders into $n for Postgres.
func (r *Repository) rebind(q string) string {
	if r.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// monthsClause narrows a query to months; nil selects all.
func monthsClause(column string, months []int, args []any) (string, []any) {
	if len(months) == 0 {
		return "", args
	}
	for _, m := range months {
		args = append(args, m)
	}
	return fmt.Sprintf(" AND %s IN (%s)", column, placeholders(len(months))), args
}

// isUniqueViolation recognizes unique-constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// wrap classifies a driver error. Context errors pass through untouched.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return core.Unavailable(op, err)
}
