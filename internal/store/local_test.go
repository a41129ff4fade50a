package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/testutil"
)

func openTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := OpenLocal(testutil.TempDBPath(t, "local.db"))
	if err != nil {
		t.Fatalf("OpenLocal() failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// TestOpenLocal_CreatesTables tests that every kind table exists after open
func TestOpenLocal_CreatesTables(t *testing.T) {
	l := openTestLocal(t)

	want := []string{"sync_checkpoints"}
	for _, k := range schema.Kinds() {
		want = append(want, schema.MustSpec(k).Collection)
	}
	for _, table := range want {
		var count int
		err := l.RawDB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

// TestInitSchema_Idempotent tests that schema creation can be repeated
func TestInitSchema_Idempotent(t *testing.T) {
	l := openTestLocal(t)
	for i := 0; i < 3; i++ {
		if err := l.InitSchemaContext(context.Background()); err != nil {
			t.Fatalf("InitSchemaContext() iteration %d failed: %v", i, err)
		}
	}
}

func TestLocal_AddGet(t *testing.T) {
	ctx := context.Background()
	l := openTestLocal(t)

	txn := testutil.Txn("t-1", "o-1", "Acme", testutil.Day(2024, 1, 1))
	if err := l.Add(ctx, txn); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	got, err := l.Get(ctx, schema.KindTransaction, "t-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !schema.Equal(txn, got) {
		t.Errorf("Get() = %+v, want %+v", got, txn)
	}
}

func TestLocal_AddDuplicate(t *testing.T) {
	ctx := context.Background()
	l := openTestLocal(t)

	txn := testutil.Txn("t-1", "o-1", "Acme", testutil.Day(2024, 1, 1))
	if err := l.Add(ctx, txn); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	err := l.Add(ctx, txn)
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("second Add() error = %v, want AlreadyExists", err)
	}
}

func TestLocal_AddRequiresID(t *testing.T) {
	l := openTestLocal(t)
	err := l.Add(context.Background(), &schema.Note{TransactionID: "t"})
	if !errors.Is(err, apperr.ErrInvalidRecord) {
		t.Fatalf("Add() error = %v, want InvalidRecord", err)
	}
}

func TestLocal_UpdateAndDeleteUnknown(t *testing.T) {
	ctx := context.Background()
	l := openTestLocal(t)

	err := l.Update(ctx, testutil.Note("n-x", "t-1", "hi", testutil.Day(2024, 1, 1)))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update() error = %v, want NotFound", err)
	}
	err = l.Delete(ctx, schema.KindNote, "n-x")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete() error = %v, want NotFound", err)
	}
	_, err = l.Get(ctx, schema.KindNote, "n-x")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get() error = %v, want NotFound", err)
	}
}

func TestLocal_UpdateMovesScope(t *testing.T) {
	ctx := context.Background()
	l := openTestLocal(t)

	n := testutil.Note("n-1", "t-1", "hello", testutil.Day(2024, 1, 1))
	if err := l.Add(ctx, n); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	n.SetScopeID("t-2")
	if err := l.Update(ctx, n); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	old, _ := l.GetAll(ctx, schema.KindNote, "t-1")
	moved, _ := l.GetAll(ctx, schema.KindNote, "t-2")
	if len(old) != 0 || len(moved) != 1 {
		t.Errorf("scope t-1 has %d, t-2 has %d; want 0 and 1", len(old), len(moved))
	}
}

func TestLocal_GetAllScopedAndOrdered(t *testing.T) {
	ctx := context.Background()
	l := openTestLocal(t)

	day := testutil.Day(2024, 3, 2)
	for _, p := range []*schema.Payment{
		testutil.Payment("p-3", "t-1", "30", day),
		testutil.Payment("p-1", "t-1", "10", day),
		testutil.Payment("p-2", "t-2", "20", day),
	} {
		if err := l.Add(ctx, p); err != nil {
			t.Fatalf("Add(%s) failed: %v", p.ID, err)
		}
	}

	scoped, err := l.GetAll(ctx, schema.KindPayment, "t-1")
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if len(scoped) != 2 || scoped[0].RecordID() != "p-1" || scoped[1].RecordID() != "p-3" {
		t.Errorf("GetAll(t-1) = %v, want [p-1 p-3]", ids(scoped))
	}

	all, err := l.GetAll(ctx, schema.KindPayment, "")
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("GetAll(\"\") returned %d records, want 3", len(all))
	}

	n, err := l.Count(ctx, schema.KindPayment)
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}
}

func TestLocal_Checkpoints(t *testing.T) {
	ctx := context.Background()
	l := openTestLocal(t)

	if _, ok, err := l.Checkpoint(ctx, schema.KindTransaction); err != nil || ok {
		t.Fatalf("Checkpoint() before set = ok %v, err %v", ok, err)
	}

	first := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	if err := l.SetCheckpoint(ctx, schema.KindTransaction, first); err != nil {
		t.Fatalf("SetCheckpoint() failed: %v", err)
	}
	if err := l.SetCheckpoint(ctx, schema.KindTransaction, second); err != nil {
		t.Fatalf("SetCheckpoint() failed: %v", err)
	}

	at, ok, err := l.Checkpoint(ctx, schema.KindTransaction)
	if err != nil || !ok {
		t.Fatalf("Checkpoint() = ok %v, err %v", ok, err)
	}
	if !at.Equal(second) {
		t.Errorf("Checkpoint() = %v, want %v", at, second)
	}

	all, err := l.Checkpoints(ctx)
	if err != nil {
		t.Fatalf("Checkpoints() failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Checkpoints() returned %d entries, want 1", len(all))
	}
}

func ids(records []schema.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.RecordID()
	}
	return out
}
