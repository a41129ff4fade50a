// Package session exposes the signed-in owner to the sync engine.
//
// Authentication lives outside this module; the engine only needs to know
// whose records it is syncing.
package session

import (
	"github.com/ledgerline/ledgersync/internal/apperr"
)

// Context reports the current owner. An empty id means nobody is signed in.
type Context interface {
	OwnerID() string
}

// Static is a fixed owner id.
type Static string

func (s Static) OwnerID() string { return string(s) }

// Require returns the owner id of c or apperr.ErrNoOwner.
func Require(c Context) (string, error) {
	if c == nil || c.OwnerID() == "" {
		return "", apperr.ErrNoOwner
	}
	return c.OwnerID(), nil
}
