// Package ids generates client-side record identifiers.
//
// Identifiers are created on the device, never by the backend, and stay
// stable for a record's lifetime. Both formats are time ordered, so the
// smallest id of a duplicate group is usually the oldest record.
package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces fresh identifiers.
type Generator interface {
	NewID() string
}

// UUID generates version 7 UUIDs.
type UUID struct{}

func (UUID) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ULID generates lowercase ULIDs.
type ULID struct{}

func (ULID) NewID() string {
	return strings.ToLower(ulid.Make().String())
}

// Func adapts a function to Generator.
type Func func() string

func (f Func) NewID() string { return f() }

// New returns the generator for format: "uuid" (the default) or "ulid".
func New(format string) (Generator, error) {
	switch strings.ToLower(format) {
	case "", "uuid", "uuidv7":
		return UUID{}, nil
	case "ulid":
		return ULID{}, nil
	default:
		return nil, fmt.Errorf("unknown id format %q (must be uuid or ulid)", format)
	}
}

// Sequence returns a generator yielding prefix-1, prefix-2, ... Used by
// tests and the benchmark for reproducible ids.
func Sequence(prefix string) Generator {
	n := 0
	return Func(func() string {
		n++
		return fmt.Sprintf("%s-%06d", prefix, n)
	})
}
