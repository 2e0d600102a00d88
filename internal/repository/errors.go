// Package repository implements MySQL persistence for users, tokens,
// events, bookings and reviews.  Repositories translate driver failures
// into the domain error kinds of package model so that services and
// handlers never inspect driver types: a missing row becomes
// model.ErrNotFound and a unique-key violation becomes model.ErrConflict.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// translate maps driver errors onto domain errors, keeping the original
// for logging.  what names the entity for the message.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s", model.ErrNotFound, what)
	case isDuplicate(err):
		return fmt.Errorf("%w: %s already exists: %v", model.ErrConflict, what, err)
	}
	return err
}

// rollback is deferred by transactional methods; it is a no-op after Commit.
func rollback(tx *sql.Tx) { _ = tx.Rollback() }
