// Package repository defines the data access layer.  Every repository talks
// to MySQL through database/sql and translates driver errors into the
// sentinel values below so that services never inspect driver types.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrAccountNotFound is returned when no live account matches.
	ErrAccountNotFound = errors.New("account not found")
	// ErrChannelNotFound is returned when no live channel matches.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrUserNotFound is returned when no live user matches inside a channel.
	ErrUserNotFound = errors.New("user not found")
	// ErrReviewNotFound is returned when no live review matches.
	ErrReviewNotFound = errors.New("review not found")
	// ErrUsernameExists signals a duplicate primary key on accounts.
	ErrUsernameExists = errors.New("username already exists")
	// ErrEmailExists signals a duplicate email on accounts.
	ErrEmailExists = errors.New("email already exists")
	// ErrAccIDTaken signals that an acc_id is already used by a live user of
	// the channel.  The allocator retries on it.
	ErrAccIDTaken = errors.New("acc_id already taken")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique key violation.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "1062")
}

// duplicateKey returns the index name reported by a duplicate entry error,
// or "" when it cannot be determined.
func duplicateKey(err error) string {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return ""
	}
	// Duplicate entry 'x' for key 'accounts.uq_accounts_email'
	i := strings.LastIndex(me.Message, "for key '")
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(me.Message[i+len("for key '"):], "'")
	if dot := strings.LastIndexByte(key, '.'); dot >= 0 {
		key = key[dot+1:]
	}
	return key
}

// notFound maps sql.ErrNoRows to the given sentinel and passes other errors through.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// rollback is deferred by transactional methods.  It is a no-op after a
// successful Commit.
func rollback(tx *sql.Tx) { _ = tx.Rollback() }
