package persistence

import (
	"strings"

	"github.com/pkg/errors"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// error kinds returned by the store, check with errors.Is
var (
	ErrDuplicateID          = errors.New("duplicate work item id")
	ErrNotFound             = errors.New("work item not found")
	ErrStatusConflict       = errors.New("work item status conflict")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrSchemaMismatch       = errors.New("schema version mismatch")
	ErrLocked               = errors.New("store locked by another process")
	ErrLocationMismatch     = errors.New("store already open at another location")
	ErrInvalidLocation      = errors.New("invalid store location")
)

// storageError wraps a driver failure. It matches ErrStorageUnavailable and unwraps to the cause
type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return e.op + ": " + ErrStorageUnavailable.Error() + ": " + e.err.Error()
}

func (e *storageError) Unwrap() error { return e.err }

func (e *storageError) Is(target error) bool { return target == ErrStorageUnavailable }

func storageErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, err: err}
}

// constraintErr maps sqlite constraint failures to the store error kinds,
// other errors become storage errors
func constraintErr(err error, op string) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return storageErr(err, op)
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return errors.Wrap(ErrDuplicateID, op)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return errors.Wrap(ErrReferentialIntegrity, op)
	case sqlite3.SQLITE_CONSTRAINT: // primary code only, extended codes disabled
		msg := se.Error()
		if strings.Contains(msg, "FOREIGN KEY") {
			return errors.Wrap(ErrReferentialIntegrity, op)
		}
		if strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "PRIMARY KEY") {
			return errors.Wrap(ErrDuplicateID, op)
		}
	}
	return storageErr(err, op)
}
