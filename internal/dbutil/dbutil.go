// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package dbutil contains helpers for working with database connection strings.
package dbutil

import (
	"strconv"
	"strings"

	"github.com/zeebo/errs"
)

// Error is the default dbutil errs class.
var Error = errs.Class("dbutil")

// Implementation type of valid database implementations.
type Implementation int

const (
	// Unknown is an unknown database implementation.
	Unknown Implementation = iota
	// SQLite3 is a sqlite3 database.
	SQLite3
	// Postgres is a postgres database.
	Postgres
)

// SplitConnStr returns the driver name, source and implementation for a
// database URL. Supported schemes are sqlite3:// and postgres://.
func SplitConnStr(s string) (driver string, source string, implementation Implementation, err error) {
	parts := strings.SplitN(s, "://", 2)
	if len(parts) != 2 {
		return "", "", Unknown, Error.New("could not parse DB URL %q", s)
	}

	driver = parts[0]
	source = parts[1]

	switch driver {
	case "sqlite", "sqlite3":
		driver = "sqlite3"
		implementation = SQLite3
	case "postgres", "postgresql":
		driver = "postgres"
		source = s
		implementation = Postgres
	default:
		return "", "", Unknown, Error.New("unsupported database scheme %q", parts[0])
	}

	return driver, source, implementation, nil
}

// Rebind translates ? placeholders into the placeholder dialect of the
// implementation. Postgres uses ordinal $N markers.
func Rebind(implementation Implementation, query string) string {
	if implementation != Postgres {
		return query
	}

	var out strings.Builder
	ordinal := 1
	for _, r := range query {
		if r == '?' {
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(ordinal))
			ordinal++
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

