package storage

import (
	"fmt"
	"strings"
	"time"
)

// Dialect owns the SQL-text differences between the supported engines:
// placeholder style, auto-increment column syntax, timestamp type and the
// driver-level DSN format.
//
// The column set is identical across dialects so a log database stays
// portable between backends: id, network, buffer, nick, timestamp, line.
type Dialect interface {
	Kind() Kind

	// DriverName is the database/sql driver registration name.
	DriverName() string

	// DataSourceName renders spec into the driver's DSN format,
	// including connect/read timeouts so a hung server cannot block
	// the writer indefinitely.
	DataSourceName(spec ConnSpec) string

	// CreateTableSQL returns idempotent DDL for one logical table.
	CreateTableSQL(table string) string

	// InsertSQL returns a parameterized insert for one record.
	InsertSQL(table string) string

	// ListTablesSQL returns a query yielding the names of log tables
	// that start with prefix, one string column per row.
	ListTablesSQL(prefix string) (query string, args []any)

	// PruneSQL returns a parameterized delete of rows older than a
	// bound cutoff timestamp.
	PruneSQL(table string) string

	// BindTime converts a timestamp into the value bound on inserts
	// and prune cutoffs.
	BindTime(t time.Time) any
}

// DialectFor selects the adapter matching a parsed spec.
func DialectFor(kind Kind) (Dialect, error) {
	switch kind {
	case KindMySQL:
		return mysqlDialect{}, nil
	case KindPostgres:
		return postgresDialect{}, nil
	case KindSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %q", kind)
	}
}

// TableName derives the logical table for a network: prefix_network with
// the network lowercased and reduced to [a-z0-9_]. An unknown network maps
// to the bare prefix.
func TableName(prefix, network string) string {
	n := sanitizeIdent(network)
	if n == "" {
		return prefix
	}
	return prefix + "_" + n
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == ' ':
			b.WriteByte('_')
		}
		// anything else is dropped
	}
	return strings.Trim(b.String(), "_")
}
