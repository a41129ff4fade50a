package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/testutil"
)

// openTestRemote backs the remote adapter with a sqlite file.
func openTestRemote(t *testing.T) *Remote {
	t.Helper()
	r, err := OpenRemote(context.Background(), RemoteConfig{
		Dialect: DialectSQLite,
		DSN:     testutil.TempDBPath(t, "remote.db"),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRemote_AddConflict(t *testing.T) {
	ctx := context.Background()
	r := openTestRemote(t)

	txn := testutil.Txn("t-1", "o-1", "Acme", testutil.Day(2024, 1, 1))
	require.NoError(t, r.Add(ctx, txn))

	err := r.Add(ctx, txn)
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)
}

func TestRemote_CreateOrUpdate(t *testing.T) {
	ctx := context.Background()
	r := openTestRemote(t)

	txn := testutil.Txn("t-1", "o-1", "Acme", testutil.Day(2024, 1, 1))
	require.NoError(t, r.CreateOrUpdate(ctx, txn))

	txn.Status = schema.StatusCompleted
	require.NoError(t, r.CreateOrUpdate(ctx, txn))

	got, err := r.Get(ctx, schema.KindTransaction, "t-1")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusCompleted, got.(*schema.Transaction).Status)

	n, err := r.Count(ctx, schema.KindTransaction)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemote_NotFound(t *testing.T) {
	ctx := context.Background()
	r := openTestRemote(t)

	err := r.Delete(ctx, schema.KindPayment, "nope")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = r.Update(ctx, testutil.Payment("nope", "t", "1", testutil.Day(2024, 1, 1)))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRemote_ClosedIsUnavailable(t *testing.T) {
	ctx := context.Background()
	r := openTestRemote(t)
	require.NoError(t, r.conn.Close())

	err := r.Ping(ctx)
	assert.True(t, errors.Is(err, apperr.ErrRemoteUnavailable), "got %v", err)

	_, err = r.GetAll(ctx, schema.KindTransaction, "")
	assert.True(t, errors.Is(err, apperr.ErrRemoteUnavailable), "got %v", err)
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"sqlite": DialectSQLite,
		"LibSQL": DialectLibSQL,
		"turso":  DialectLibSQL,
		"mysql":  DialectMySQL,
	} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDialect("postgres")
	assert.Error(t, err)
}

func TestRemoteDSN(t *testing.T) {
	dsn, err := remoteDSN(RemoteConfig{Dialect: DialectMySQL, DSN: "user:pw@tcp(db:3306)/ledger"})
	require.NoError(t, err)
	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ClientFoundRows)
	assert.Equal(t, "ledger", cfg.DBName)

	dsn, err = remoteDSN(RemoteConfig{Dialect: DialectLibSQL, DSN: "libsql://ledger.turso.io", AuthToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "libsql://ledger.turso.io?authToken=tok", dsn)

	dsn, err = remoteDSN(RemoteConfig{Dialect: DialectSQLite, DSN: "/tmp/r.db"})
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/r.db", dsn)

	_, err = remoteDSN(RemoteConfig{Dialect: DialectSQLite})
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, isUniqueViolation(&mysql.MySQLError{Number: 1146, Message: "no such table"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("exec: %w", errors.New("UNIQUE constraint failed: transactions.id"))))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}

func TestTableDDL(t *testing.T) {
	assert.Len(t, DialectSQLite.tableDDL("notes"), 2)
	mysqlDDL := DialectMySQL.tableDDL("notes")
	require.Len(t, mysqlDDL, 1)
	assert.Contains(t, mysqlDDL[0], "INDEX idx_notes_scope")
}
