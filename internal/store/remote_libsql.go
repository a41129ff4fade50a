//go:build cgo

package store

// go-libsql is cgo-only; its driver registers only in cgo builds.
import _ "github.com/tursodatabase/go-libsql"
