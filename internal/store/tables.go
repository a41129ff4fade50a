package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/schema"
)

// tables implements the per-kind table operations shared by Local and
// Remote. The two sides differ only in how failures are reported.
type tables struct {
	conn    *sql.DB
	dialect Dialect

	// fail wraps a backend failure of op.
	fail func(op string, err error) error
	// dup reports an insert whose id is already taken.
	dup func(kind schema.Kind, id string, err error) error
}

func (t *tables) initSchema(ctx context.Context) error {
	for _, kind := range schema.Kinds() {
		for _, stmt := range t.dialect.tableDDL(schema.MustSpec(kind).Collection) {
			if _, err := t.conn.ExecContext(ctx, stmt); err != nil {
				return t.fail("initialize schema for "+string(kind), err)
			}
		}
	}
	return nil
}

func collection(kind schema.Kind) (string, error) {
	spec, ok := schema.Spec(kind)
	if !ok {
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	return spec.Collection, nil
}

func (t *tables) get(ctx context.Context, kind schema.Kind, id string) (schema.Record, error) {
	table, err := collection(kind)
	if err != nil {
		return nil, err
	}

	var payload string
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE id = ?`, table)
	err = t.conn.QueryRowContext(ctx, query, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(string(kind), id)
	}
	if err != nil {
		return nil, t.fail(fmt.Sprintf("get %s %s", kind, id), err)
	}
	return schema.Decode(kind, []byte(payload))
}

func (t *tables) getAll(ctx context.Context, kind schema.Kind, scope string) ([]schema.Record, error) {
	table, err := collection(kind)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if scope == "" {
		query := fmt.Sprintf(`SELECT payload FROM %s ORDER BY id`, table)
		rows, err = t.conn.QueryContext(ctx, query)
	} else {
		query := fmt.Sprintf(`SELECT payload FROM %s WHERE scope_id = ? ORDER BY id`, table)
		rows, err = t.conn.QueryContext(ctx, query, scope)
	}
	if err != nil {
		return nil, t.fail("fetch "+string(kind), err)
	}
	defer rows.Close()

	var records []schema.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, t.fail("scan "+string(kind), err)
		}
		rec, err := schema.Decode(kind, []byte(payload))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, t.fail("iterate "+string(kind), err)
	}
	return records, nil
}

func (t *tables) add(ctx context.Context, rec schema.Record) error {
	kind := rec.RecordKind()
	table, payload, err := prepare(rec)
	if err != nil {
		return err
	}
	created, updated := timestamps(rec)

	query := fmt.Sprintf(`INSERT INTO %s (id, scope_id, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`, table)
	_, err = t.conn.ExecContext(ctx, query, rec.RecordID(), rec.ScopeID(), payload, created, updated)
	if isUniqueViolation(err) {
		return t.dup(kind, rec.RecordID(), err)
	}
	if err != nil {
		return t.fail(fmt.Sprintf("add %s %s", kind, rec.RecordID()), err)
	}
	return nil
}

func (t *tables) update(ctx context.Context, rec schema.Record) error {
	kind := rec.RecordKind()
	table, payload, err := prepare(rec)
	if err != nil {
		return err
	}
	_, updated := timestamps(rec)

	query := fmt.Sprintf(`UPDATE %s SET scope_id = ?, payload = ?, updated_at = ? WHERE id = ?`, table)
	res, err := t.conn.ExecContext(ctx, query, rec.ScopeID(), payload, updated, rec.RecordID())
	if err != nil {
		return t.fail(fmt.Sprintf("update %s %s", kind, rec.RecordID()), err)
	}
	return t.affected(res, kind, rec.RecordID())
}

func (t *tables) delete(ctx context.Context, kind schema.Kind, id string) error {
	table, err := collection(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table)
	res, err := t.conn.ExecContext(ctx, query, id)
	if err != nil {
		return t.fail(fmt.Sprintf("delete %s %s", kind, id), err)
	}
	return t.affected(res, kind, id)
}

func (t *tables) count(ctx context.Context, kind schema.Kind) (int, error) {
	table, err := collection(kind)
	if err != nil {
		return 0, err
	}
	var n int
	if err := t.conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
		return 0, t.fail("count "+string(kind), err)
	}
	return n, nil
}

func (t *tables) affected(res sql.Result, kind schema.Kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return t.fail("read rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound(string(kind), id)
	}
	return nil
}

// prepare validates the identity of rec and encodes its payload.
func prepare(rec schema.Record) (table, payload string, err error) {
	kind := rec.RecordKind()
	if rec.RecordID() == "" {
		return "", "", apperr.InvalidRecord(string(kind), fmt.Errorf("id is required"))
	}
	table, err = collection(kind)
	if err != nil {
		return "", "", err
	}
	data, err := schema.Encode(rec)
	if err != nil {
		return "", "", err
	}
	return table, string(data), nil
}

func timestamps(rec schema.Record) (created, updated string) {
	c, u := rec.Stamps()
	return formatTime(c), formatTime(u)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
