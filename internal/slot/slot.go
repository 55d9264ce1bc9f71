// Package slot provides the durable key-value slot that holds the serialized
// document tree. Each backend stores exactly one value under one key.
package slot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmpty is returned by Read when nothing has been written to the slot.
	ErrEmpty = errors.New("slot is empty")
	// ErrQuotaExceeded is returned by Write when the payload does not fit the slot.
	ErrQuotaExceeded = errors.New("slot quota exceeded")
)

// Slot is a single durable value addressed by a fixed key.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Erase(ctx context.Context) error
	Close() error
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

const DefaultKey = "vsg_database"

// Options selects and configures a backend for Open.
type Options struct {
	Backend     string
	Key         string
	RedisURL    string
	DatabaseURL string
	SQLitePath  string
	GitDir      string
}

// Open builds the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Slot, error) {
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultKey
	}

	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(opts.RedisURL, key)
	case "postgres":
		db, err := OpenDB(ctx, DialectPostgres, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return NewSQL(ctx, db, DialectPostgres, key)
	case "sqlite":
		db, err := OpenDB(ctx, DialectSQLite, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQL(ctx, db, DialectSQLite, key)
	case "git":
		return NewGit(opts.GitDir, key)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
