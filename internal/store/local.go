package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/schema"
)

// Local is the embedded store on the device. It is always available and is
// written before the remote on every mutation.
type Local struct {
	tables
	path string
}

// OpenLocal opens (creating if needed) the embedded database at path and
// initialises its schema.
//
// The caller MUST call Close() when done so the WAL is checkpointed.
func OpenLocal(path string) (*Local, error) {
	return OpenLocalContext(context.Background(), path)
}

// OpenLocalContext is OpenLocal with context support.
func OpenLocalContext(ctx context.Context, path string) (*Local, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	l := &Local{path: path}
	l.tables = tables{
		conn:    conn,
		dialect: DialectSQLite,
		fail: func(op string, err error) error {
			return fmt.Errorf("failed to %s: %w", op, err)
		},
		dup: func(kind schema.Kind, id string, _ error) error {
			return apperr.AlreadyExists(string(kind), id)
		},
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := l.InitSchemaContext(ctx); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the database file path.
func (l *Local) Path() string {
	return l.path
}

// RawDB returns the underlying sql.DB connection.
func (l *Local) RawDB() *sql.DB {
	return l.conn
}

// Close checkpoints the WAL and closes the connection.
func (l *Local) Close() error {
	if l.conn == nil {
		return nil
	}
	if _, err := l.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := l.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	l.conn = nil
	return nil
}

// InitSchemaContext creates every kind table and the checkpoint table.
// It is idempotent.
func (l *Local) InitSchemaContext(ctx context.Context) error {
	if err := l.initSchema(ctx); err != nil {
		return err
	}
	const checkpoints = `
	CREATE TABLE IF NOT EXISTS sync_checkpoints (
		kind TEXT PRIMARY KEY,
		synced_at TEXT NOT NULL
	)`
	if _, err := l.conn.ExecContext(ctx, checkpoints); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, kind schema.Kind, id string) (schema.Record, error) {
	return l.get(ctx, kind, id)
}

func (l *Local) GetAll(ctx context.Context, kind schema.Kind, scope string) ([]schema.Record, error) {
	return l.getAll(ctx, kind, scope)
}

func (l *Local) Add(ctx context.Context, rec schema.Record) error {
	return l.add(ctx, rec)
}

func (l *Local) Update(ctx context.Context, rec schema.Record) error {
	return l.update(ctx, rec)
}

func (l *Local) Delete(ctx context.Context, kind schema.Kind, id string) error {
	return l.delete(ctx, kind, id)
}

// Count returns the number of stored records of kind.
func (l *Local) Count(ctx context.Context, kind schema.Kind) (int, error) {
	return l.count(ctx, kind)
}

// Checkpoint returns the last reconcile time of kind.
func (l *Local) Checkpoint(ctx context.Context, kind schema.Kind) (time.Time, bool, error) {
	var raw string
	err := l.conn.QueryRowContext(ctx, `SELECT synced_at FROM sync_checkpoints WHERE kind = ?`, string(kind)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read checkpoint for %s: %w", kind, err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse checkpoint for %s: %w", kind, err)
	}
	return at, true, nil
}

// SetCheckpoint records a completed reconcile of kind.
func (l *Local) SetCheckpoint(ctx context.Context, kind schema.Kind, at time.Time) error {
	query := `
	INSERT INTO sync_checkpoints (kind, synced_at) VALUES (?, ?)
	ON CONFLICT(kind) DO UPDATE SET synced_at = excluded.synced_at
	`
	if _, err := l.conn.ExecContext(ctx, query, string(kind), formatTime(at)); err != nil {
		return fmt.Errorf("failed to set checkpoint for %s: %w", kind, err)
	}
	return nil
}

// Checkpoints returns every recorded checkpoint.
func (l *Local) Checkpoints(ctx context.Context) (map[schema.Kind]time.Time, error) {
	rows, err := l.conn.QueryContext(ctx, `SELECT kind, synced_at FROM sync_checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	out := make(map[schema.Kind]time.Time)
	for rows.Next() {
		var kind, raw string
		if err := rows.Scan(&kind, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse checkpoint for %s: %w", kind, err)
		}
		out[schema.Kind(kind)] = at
	}
	return out, rows.Err()
}
