package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerline/ledgersync/internal/apperr"
)

func TestRequire(t *testing.T) {
	id, err := Require(Static("o-1"))
	assert.NoError(t, err)
	assert.Equal(t, "o-1", id)

	_, err = Require(Static(""))
	assert.True(t, errors.Is(err, apperr.ErrNoOwner))

	_, err = Require(nil)
	assert.True(t, errors.Is(err, apperr.ErrNoOwner))
}
