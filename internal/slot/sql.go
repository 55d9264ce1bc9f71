package slot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQL keeps the document in one row of the document_slots table.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	key     string
}

// NewSQL applies pending migrations and returns a slot bound to key.
func NewSQL(ctx context.Context, db *sql.DB, dialect Dialect, key string) (*SQL, error) {
	if err := ApplyMigrations(ctx, db, dialect); err != nil {
		return nil, err
	}
	if key == "" {
		key = DefaultKey
	}
	return &SQL{db: db, dialect: dialect, key: key}, nil
}

func (s *SQL) Read(ctx context.Context) ([]byte, error) {
	query := fmt.Sprintf(`SELECT payload FROM document_slots WHERE key=%s`, s.dialect.placeholder(1))
	var payload string
	err := s.db.QueryRowContext(ctx, query, s.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	return []byte(payload), nil
}

func (s *SQL) Write(ctx context.Context, payload []byte) error {
	p := s.dialect.placeholder
	query := fmt.Sprintf(`
		INSERT INTO document_slots (key, payload, updated_at)
		VALUES (%s, %s, %s)
		ON CONFLICT (key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, p(1), p(2), p(3))
	if _, err := s.db.ExecContext(ctx, query, s.key, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

func (s *SQL) Erase(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM document_slots WHERE key=%s`, s.dialect.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, s.key); err != nil {
		return fmt.Errorf("erase %s: %w", s.key, err)
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQL) Close() error {
	return s.db.Close()
}
