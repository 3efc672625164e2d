// internal/database/database.go
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ErrGameNotFound is returned when a game id has no stored row.
var ErrGameNotFound = errors.New("game not found")

// DB is the process-wide store. Nil when persistence is disabled; callers
// check before use.
var DB *Store

// Store persists game records over database/sql. Postgres goes through the
// pgx stdlib driver, local runs through modernc sqlite.
type Store struct {
	dialect Dialect
	db      *sql.DB
}

// Open connects to the given backend and applies pending migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	var driverName string
	switch dialect {
	case DialectSQLite:
		driverName = "sqlite"
		if dsn == "" {
			dsn = filepath.Join("tmp", "acquire.sqlite")
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	case DialectPostgres:
		driverName = "pgx"
		if dsn == "" {
			return nil, errors.New("postgres dialect requires DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	s := &Store{dialect: dialect, db: db}
	if err := s.migrate(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logrus.WithField("dialect", dialect).Info("database ready")
	return s, nil
}

// Connect opens the store and installs it as DB. An empty dialect leaves
// persistence disabled.
func Connect(ctx context.Context, dialect, dsn string) error {
	d := Dialect(strings.ToLower(strings.TrimSpace(dialect)))
	if d == "" {
		logrus.Info("DB_DIALECT not set; game persistence disabled")
		return nil
	}
	s, err := Open(ctx, d, dsn)
	if err != nil {
		return err
	}
	DB = s
	return nil
}

// Close closes the store.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) bind(pos int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

// placeholders returns n bind markers starting at 1, comma separated.
func (s *Store) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.bind(i + 1)
	}
	return strings.Join(ph, ", ")
}

func (s *Store) migrate(ctx context.Context) error {
	const create = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate schema migrations: %w", err)
	}
	rows.Close()

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", s.dialect))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	for _, file := range files {
		base := filepath.Base(file)
		if applied[base] {
			continue
		}
		body, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		q := "INSERT INTO schema_migrations (version, applied_at) VALUES (" + s.placeholders(2) + ")"
		if _, err := tx.ExecContext(ctx, q, base, time.Now().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}
