package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PabloGalante/chatsync/internal/adapters/cache"
)

// Backend stores cache slots in a single-table SQLite database on the device.
type Backend struct {
	db *sql.DB
}

// Open creates or opens the database at path. ":memory:" is accepted for tests.
func Open(ctx context.Context, path string) (*Backend, error) {
	if path == "" {
		path = "./data/chatsync.db"
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}

	// Single writer; also keeps a :memory: database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite cache: %w", err)
	}

	b := &Backend{db: db}
	if err := b.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS cache_slots (
		slot       TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init sqlite cache schema: %w", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM cache_slots WHERE slot = ?`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite cache get: %w", err)
	}
	return data, nil
}

// Put overwrites the slot wholesale.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO cache_slots (slot, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite cache put: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}
