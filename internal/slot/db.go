package slot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect captures the differences between the SQL backends.
type Dialect struct {
	Name       string
	DriverName string
	dir        string
	// migrationsTable creates the bookkeeping table for ApplyMigrations.
	migrationsTable string
	placeholder     func(n int) string
}

var (
	DialectPostgres = Dialect{
		Name:       "postgres",
		DriverName: "pgx",
		dir:        "migrations/postgres",
		migrationsTable: `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
	DialectSQLite = Dialect{
		Name:       "sqlite",
		DriverName: "sqlite",
		dir:        "migrations/sqlite",
		migrationsTable: `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		placeholder: func(int) string { return "?" },
	}
)

// OpenDB opens and pings a database for the given dialect.
func OpenDB(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	if dialect.Name == DialectSQLite.Name {
		// one writer at a time; avoids SQLITE_BUSY under the HTTP adapter
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}
