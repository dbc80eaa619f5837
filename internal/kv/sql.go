package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect holds the driver name and statements of one SQL flavour.
type Dialect struct {
	Name   string
	Driver string
	get    string
	put    string
	del    string
}

var (
	DialectSQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite",
		get:    `SELECT value FROM kv_tables WHERE table_key = ?`,
		put: `INSERT INTO kv_tables (table_key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (table_key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		del: `DELETE FROM kv_tables WHERE table_key = ?`,
	}
	DialectPostgres = Dialect{
		Name:   "postgres",
		Driver: "pgx",
		get:    `SELECT value FROM kv_tables WHERE table_key = $1`,
		put: `INSERT INTO kv_tables (table_key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (table_key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		del: `DELETE FROM kv_tables WHERE table_key = $1`,
	}
	DialectMySQL = Dialect{
		Name:   "mysql",
		Driver: "mysql",
		get:    `SELECT value FROM kv_tables WHERE table_key = ?`,
		put: `INSERT INTO kv_tables (table_key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = CURRENT_TIMESTAMP`,
		del: `DELETE FROM kv_tables WHERE table_key = ?`,
	}
)

// DialectByName resolves a STORE_DRIVER value.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	}
	return Dialect{}, fmt.Errorf("unknown sql dialect %q", name)
}

// SQL stores every table as one row of kv_tables.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewSQL wraps an open database handle.
func NewSQL(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQL {
	return &SQL{
		db:      db,
		dialect: dialect,
		logger:  logger.With("component", "kv_"+dialect.Name),
	}
}

// OpenSQL opens and pings a database for the dialect.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger) (*SQL, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is empty", dialect.Name)
	}
	if dialect.Name == DialectSQLite.Name {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect.Name == DialectSQLite.Name {
		// One writer keeps SQLite from returning SQLITE_BUSY under WAL.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}
	return NewSQL(db, dialect, logger), nil
}

func sqliteDSN(path string) string {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL", dsn, sep)
}

// RunMigrations executes the dialect's SQL files in lexicographic order, each
// in its own transaction.
func (s *SQL) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	entries, err := fs.ReadDir(filesystem, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		body, err := fs.ReadFile(filesystem, entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if len(strings.TrimSpace(string(body))) == 0 {
			continue
		}
		if err := s.exec(ctx, string(body)); err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
		s.logger.Debug("migration applied", "file", entry.Name())
	}
	return nil
}

func (s *SQL) exec(ctx context.Context, stmt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Get reads one blob.
func (s *SQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put upserts one blob.
func (s *SQL) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.put, key, string(value)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes one blob.
func (s *SQL) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.del, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Ping ensures the database is reachable.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQL) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
