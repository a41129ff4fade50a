package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgersync/internal/apperr"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/testutil"
)

func TestStore_CollisionCodes(t *testing.T) {
	ctx := context.Background()
	txn := testutil.Txn("t-1", "o-1", "Acme", testutil.Day(2024, 1, 1))

	local := NewLocal()
	require.NoError(t, local.Add(ctx, txn))
	assert.True(t, errors.Is(local.Add(ctx, txn), apperr.ErrAlreadyExists))

	remote := NewRemote()
	require.NoError(t, remote.Add(ctx, txn))
	assert.True(t, errors.Is(remote.Add(ctx, txn), apperr.ErrConflict))
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewLocal()
	txn := testutil.Txn("t-1", "o-1", "Acme", testutil.Day(2024, 1, 1))
	require.NoError(t, s.Add(ctx, txn))

	txn.Name = "mutated"
	got, err := s.Get(ctx, schema.KindTransaction, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.(*schema.Transaction).Name)
}

func TestStore_CallsAndFailures(t *testing.T) {
	ctx := context.Background()
	s := NewRemote()
	s.Seed(testutil.Txn("t-1", "o-1", "Acme", testutil.Day(2024, 1, 1)))
	assert.Equal(t, 0, s.TotalCalls())

	_, err := s.GetAll(ctx, schema.KindTransaction, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Calls(OpGetAll))

	boom := errors.New("boom")
	s.FailWith(func(op string, kind schema.Kind, id string) error {
		if op == OpDelete && id == "t-1" {
			return boom
		}
		return nil
	})
	err = s.Delete(ctx, schema.KindTransaction, "t-1")
	assert.True(t, errors.Is(err, apperr.ErrRemoteUnavailable))
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, s.Len(schema.KindTransaction))

	s.FailWith(nil)
	require.NoError(t, s.Delete(ctx, schema.KindTransaction, "t-1"))
	assert.True(t, errors.Is(s.Delete(ctx, schema.KindTransaction, "t-1"), apperr.ErrNotFound))

	s.ResetCalls()
	assert.Equal(t, 0, s.TotalCalls())
}

func TestStore_CreateOrUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewRemote()
	n := testutil.Note("n-1", "t-1", "first", testutil.Day(2024, 1, 1))
	require.NoError(t, s.CreateOrUpdate(ctx, n))
	n.Body = "second"
	require.NoError(t, s.CreateOrUpdate(ctx, n))

	got, err := s.Get(ctx, schema.KindNote, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.(*schema.Note).Body)
	assert.Equal(t, 1, s.Len(schema.KindNote))
}
