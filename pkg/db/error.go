package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Violation names the kind of constraint a write tripped.
type Violation string

const (
	ViolationNone       Violation = ""
	ViolationUnique     Violation = "unique"
	ViolationForeignKey Violation = "foreign_key"
)

// ClassifyErr maps driver errors from postgres, mysql and sqlite onto a Violation.
func ClassifyErr(err error) Violation {
	if err == nil {
		return ViolationNone
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ViolationUnique
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ViolationForeignKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ViolationUnique
		case "23503":
			return ViolationForeignKey
		}
		return ViolationNone
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return ViolationUnique
		case 1451, 1452:
			return ViolationForeignKey
		}
		return ViolationNone
	}

	// The pure-Go sqlite driver only exposes its codes in the message.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ViolationUnique
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ViolationForeignKey
	}
	return ViolationNone
}

// IsDuplicateKeyErr reports a unique constraint violation, e.g. a replayed
// credit idempotency key or an email that is already registered.
func IsDuplicateKeyErr(err error) bool {
	return ClassifyErr(err) == ViolationUnique
}
