package store

import (
	"errors"

	mattn "github.com/mattn/go-sqlite3"
	modernc "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Error kinds returned by the store. They are wrapped together with the
// underlying cause, so callers test them with errors.Is.
var (
	// ErrConnectivity means the database connection could not be (re)established.
	ErrConnectivity = errors.New("database unavailable")

	// ErrSchema means checking for or creating a notification table failed.
	ErrSchema = errors.New("schema provisioning failed")

	// ErrExecution means a statement failed while inserting or selecting rows.
	ErrExecution = errors.New("statement execution failed")

	// ErrInvalidNotification means a notification was rejected before reaching
	// the database.
	ErrInvalidNotification = errors.New("invalid notification")
)

// isForeignKeyViolation reports whether err is SQLite rejecting a row whose
// device is not in the Device table, for either driver.
func isForeignKeyViolation(err error) bool {
	var cgoErr mattn.Error
	if errors.As(err, &cgoErr) {
		return cgoErr.ExtendedCode == mattn.ErrConstraintForeignKey
	}
	var pureErr *modernc.Error
	if errors.As(err, &pureErr) {
		return pureErr.Code() == sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}
