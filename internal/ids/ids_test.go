package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID(t *testing.T) {
	id := UUID{}.NewID()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NotEqual(t, id, UUID{}.NewID())
}

func TestULID(t *testing.T) {
	id := ULID{}.NewID()
	_, err := ulid.ParseStrict(id)
	require.NoError(t, err)
	assert.Len(t, id, 26)
}

func TestNew(t *testing.T) {
	g, err := New("")
	require.NoError(t, err)
	assert.IsType(t, UUID{}, g)

	g, err = New("ULID")
	require.NoError(t, err)
	assert.IsType(t, ULID{}, g)

	_, err = New("snowflake")
	assert.Error(t, err)
}

func TestSequence(t *testing.T) {
	g := Sequence("txn")
	assert.Equal(t, "txn-000001", g.NewID())
	assert.Equal(t, "txn-000002", g.NewID())
}
