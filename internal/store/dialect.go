package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/ncruces/go-sqlite3"
)

// Dialect selects the SQL flavour of a backend.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectLibSQL Dialect = "libsql"
	DialectMySQL  Dialect = "mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectSQLite, DialectLibSQL, DialectMySQL:
		return d, nil
	case "turso":
		return DialectLibSQL, nil
	default:
		return "", fmt.Errorf("unknown dialect %q (must be sqlite, libsql or mysql)", s)
	}
}

// driverName is the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	switch d {
	case DialectMySQL:
		return "mysql"
	case DialectLibSQL:
		return "libsql"
	default:
		return "sqlite3"
	}
}

// tableDDL returns the statements creating the table for one collection.
// Statements are executed one at a time since the mysql driver rejects
// multi-statement Exec by default.
func (d Dialect) tableDDL(collection string) []string {
	if d == DialectMySQL {
		return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			scope_id VARCHAR(64) NOT NULL,
			payload LONGTEXT NOT NULL,
			created_at VARCHAR(40) NOT NULL,
			updated_at VARCHAR(40) NOT NULL,
			INDEX idx_%s_scope (scope_id)
		)`, collection, collection)}
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			scope_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, collection),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_scope ON %s(scope_id)`, collection, collection),
	}
}

// isUniqueViolation reports whether err is a primary key or unique
// constraint failure in any supported backend.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	if errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY) || errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
		return true
	}
	// libsql surfaces SQLite errors as plain strings.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
