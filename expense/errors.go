package expense

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrInit marks failures that leave the store unusable. Callers must not
	// start serving when Open returns an error matching it.
	ErrInit = errors.New("storage initialization failed")

	// ErrOperational marks a per-call storage failure such as a read-only
	// file, a full disk or a corrupt database.
	ErrOperational = errors.New("storage operational error")

	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// pgReadOnlyTransaction is the SQLSTATE for read_only_sql_transaction.
const pgReadOnlyTransaction = "25006"

// InitError reports which initialization step failed.
type InitError struct {
	Step string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init storage: %s: %v", e.Step, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrInit }

// OpError wraps a driver error raised while serving a single operation.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool { return target == ErrOperational }

// ReadOnly reports whether the underlying driver refused the operation
// because the database cannot be written.
func (e *OpError) ReadOnly() bool {
	return isReadOnly(e.Err)
}

// IsReadOnly reports whether err is an operational error caused by a
// read-only database.
func IsReadOnly(err error) bool {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.ReadOnly()
	}
	return false
}

func isReadOnly(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrReadonly {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgReadOnlyTransaction {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "readonly") || strings.Contains(msg, "read-only")
}
