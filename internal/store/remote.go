package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/schema"
)

// RemoteConfig selects and addresses the remote backend.
type RemoteConfig struct {
	Dialect Dialect
	// DSN is a libsql:// URL, a mysql DSN or a sqlite file path.
	DSN string
	// AuthToken is appended to libsql URLs.
	AuthToken string
	// Timeout bounds every remote call. Zero disables it.
	Timeout time.Duration
}

// Remote is the shared relational backend.
type Remote struct {
	tables
	timeout time.Duration
}

// OpenRemote connects to the backend described by cfg and creates the kind
// tables when missing.
func OpenRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	r, err := DialRemote(cfg)
	if err != nil {
		return nil, err
	}
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	if err := r.InitSchemaContext(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// DialRemote prepares a connection pool without contacting the backend, so
// an offline device can still start. Call InitSchemaContext once a Ping
// succeeds.
func DialRemote(cfg RemoteConfig) (*Remote, error) {
	dsn, err := remoteDSN(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return NewRemote(conn, cfg.Dialect, cfg.Timeout), nil
}

// NewRemote wraps an open connection. The schema is not touched.
func NewRemote(conn *sql.DB, dialect Dialect, timeout time.Duration) *Remote {
	return &Remote{
		tables: tables{
			conn:    conn,
			dialect: dialect,
			fail: func(op string, err error) error {
				return apperr.RemoteUnavailable(op, err)
			},
			dup: func(kind schema.Kind, id string, err error) error {
				return apperr.Conflict(string(kind), id, err)
			},
		},
		timeout: timeout,
	}
}

func remoteDSN(cfg RemoteConfig) (string, error) {
	if cfg.DSN == "" {
		return "", fmt.Errorf("remote dsn is required")
	}
	switch cfg.Dialect {
	case DialectMySQL:
		mc, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		// Update reports NotFound from RowsAffected, which must count
		// matched rows rather than changed ones.
		mc.ClientFoundRows = true
		return mc.FormatDSN(), nil
	case DialectLibSQL:
		if cfg.AuthToken == "" {
			return cfg.DSN, nil
		}
		u, err := url.Parse(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("invalid libsql url: %w", err)
		}
		q := u.Query()
		q.Set("authToken", cfg.AuthToken)
		u.RawQuery = q.Encode()
		return u.String(), nil
	case DialectSQLite:
		if strings.HasPrefix(cfg.DSN, "file:") {
			return cfg.DSN, nil
		}
		return "file:" + cfg.DSN, nil
	default:
		return "", fmt.Errorf("unknown dialect %q", cfg.Dialect)
	}
}

// Dialect returns the backend flavour.
func (r *Remote) Dialect() Dialect {
	return r.dialect
}

// Close closes the connection.
func (r *Remote) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close remote database: %w", err)
	}
	r.conn = nil
	return nil
}

// InitSchemaContext creates every kind table. It is idempotent.
func (r *Remote) InitSchemaContext(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.initSchema(ctx)
}

func (r *Remote) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Remote) Ping(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.conn.PingContext(ctx); err != nil {
		return apperr.RemoteUnavailable("ping", err)
	}
	return nil
}

func (r *Remote) Get(ctx context.Context, kind schema.Kind, id string) (schema.Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.get(ctx, kind, id)
}

func (r *Remote) GetAll(ctx context.Context, kind schema.Kind, scope string) ([]schema.Record, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.getAll(ctx, kind, scope)
}

func (r *Remote) Add(ctx context.Context, rec schema.Record) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.add(ctx, rec)
}

func (r *Remote) Update(ctx context.Context, rec schema.Record) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.update(ctx, rec)
}

func (r *Remote) Delete(ctx context.Context, kind schema.Kind, id string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.delete(ctx, kind, id)
}

// CreateOrUpdate adds rec and retries as an update when its id is taken.
func (r *Remote) CreateOrUpdate(ctx context.Context, rec schema.Record) error {
	err := r.Add(ctx, rec)
	if errors.Is(err, apperr.ErrConflict) {
		return r.Update(ctx, rec)
	}
	return err
}

// Count returns the number of stored records of kind.
func (r *Remote) Count(ctx context.Context, kind schema.Kind) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.count(ctx, kind)
}
