package expense

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	pragmaJournalModeWAL = `PRAGMA journal_mode=WAL`
	sqliteCreateTable    = `CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		amount REAL NOT NULL,
		category TEXT NOT NULL,
		subcategory TEXT DEFAULT '',
		note TEXT DEFAULT ''
	)`
	postgresCreateTable = `CREATE TABLE IF NOT EXISTS expenses (
		id BIGSERIAL PRIMARY KEY,
		date TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		category TEXT NOT NULL,
		subcategory TEXT DEFAULT '',
		note TEXT DEFAULT ''
	)`
)

// dialect captures the few places where SQLite and PostgreSQL differ.
// Queries are written with '?' placeholders and rebound by sqlx.
type dialect struct {
	driver string
	// createTable is the idempotent schema statement.
	createTable string
	// returningID is set when inserts report the new id through RETURNING
	// instead of LastInsertId.
	returningID bool
	// walMode enables the write-ahead journal at startup.
	walMode bool
	// restoreSequence resets sqlite_sequence after the startup write check.
	restoreSequence bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", DriverSQLite:
		return dialect{
			driver:          DriverSQLite,
			createTable:     sqliteCreateTable,
			walMode:         true,
			restoreSequence: true,
		}, nil
	case DriverPostgres:
		return dialect{
			driver:      DriverPostgres,
			createTable: postgresCreateTable,
			returningID: true,
		}, nil
	default:
		return dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// sqliteDSN builds a go-sqlite3 URI for path. The busy timeout is applied to
// every pooled connection, so concurrent writers wait instead of failing
// with SQLITE_BUSY.
func sqliteDSN(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}
