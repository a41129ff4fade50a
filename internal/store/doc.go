// Package store provides the local and remote record stores.
//
// # Layout
//
// Both sides keep one table per kind, named after the kind's collection:
//
//	id          primary key, client generated
//	scope_id    owner id or parent transaction id (indexed)
//	payload     JSON document of the record
//	created_at  RFC 3339, UTC
//	updated_at  RFC 3339, UTC
//
// The local store additionally keeps sync_checkpoints(kind, synced_at).
//
// # Local
//
// Local is an embedded SQLite database (ncruces/go-sqlite3) running in WAL
// mode with a busy timeout, so the write path and the reconciler can share it.
//
//	local, err := store.OpenLocal(".ledgersync/local.db")
//	if err != nil {
//	    return err
//	}
//	defer local.Close()
//
// # Remote
//
// Remote speaks database/sql to one of three dialects: libsql (Turso),
// mysql, or sqlite for file-backed remotes and tests. Any backend failure is
// reported as apperr.ErrRemoteUnavailable; a uniqueness violation on Add is
// reported as apperr.ErrConflict.
//
//	remote, err := store.OpenRemote(ctx, store.RemoteConfig{
//	    Dialect: store.DialectLibSQL,
//	    DSN:     "libsql://ledger.turso.io",
//	})
package store
