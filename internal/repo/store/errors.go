package store

import (
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// UniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure
// and returns the offending "table.column" as reported by SQLite.
func UniqueViolation(err error) (string, bool) {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return "", false
	}

	//nolint:exhaustive
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
	default:
		return "", false
	}

	// "constraint failed: UNIQUE constraint failed: users.email (2067)"
	msg := liteErr.Error()
	const marker = "failed: "

	column := msg[strings.LastIndex(msg, marker)+len(marker):]
	column, _, _ = strings.Cut(column, " ")

	return column, true
}

// ForeignKeyViolation reports whether err is a FOREIGN KEY constraint failure.
func ForeignKeyViolation(err error) bool {
	var liteErr *sqlite.Error

	return errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// NotFound tags sql.ErrNoRows with the given domain sentinel and passes other errors through.
func NotFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Join(sentinel, err)
	}

	return err
}
