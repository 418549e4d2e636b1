package db

import (
	"errors"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConstraintViolation is a driver-neutral view of an integrity error.
type ConstraintViolation struct {
	Unique bool
	// Constraint is the index name on postgres. SQLite does not report it.
	Constraint string
	// Detail carries the driver message, e.g. "UNIQUE constraint failed: m_academic_year.name".
	Detail string
}

// Mentions reports whether the violation names constraint or the table.column pair.
func (v ConstraintViolation) Mentions(constraint, column string) bool {
	if v.Constraint != "" && v.Constraint == constraint {
		return true
	}
	return column != "" && containsColumn(v.Detail, column)
}

func containsColumn(detail, column string) bool {
	idx := strings.Index(detail, column)
	if idx < 0 {
		return false
	}
	end := idx + len(column)
	// "m_academic_year.name" must not match "m_academic_year.name_x".
	return end == len(detail) || !isIdentChar(detail[end])
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// AsConstraintViolation extracts an integrity violation from a postgres or sqlite error.
func AsConstraintViolation(err error) (ConstraintViolation, bool) {
	if err == nil {
		return ConstraintViolation{}, false
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		return ConstraintViolation{
			Unique:     pgErr.Field('C') == "23505",
			Constraint: pgErr.Field('n'),
			Detail:     pgErr.Field('M') + " " + pgErr.Field('D'),
		}, true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		code := liteErr.Code()
		return ConstraintViolation{
			Unique: code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
				code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
				strings.Contains(liteErr.Error(), "UNIQUE constraint failed"),
			Detail: liteErr.Error(),
		}, true
	}

	return ConstraintViolation{}, false
}
