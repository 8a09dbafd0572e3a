package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultBusyTimeout  = 5 * time.Second
	defaultMaxOpenConns = 8
)

// StoreConfig selects and tunes the backing database.
type StoreConfig struct {
	// Driver is DriverSQLite (default) or DriverPostgres.
	Driver string
	// Path is the SQLite database file. Its parent directory is created.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN          string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

// Store is the durable record of expenses.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	path    string
}

// Open connects to the configured database, enables WAL mode for SQLite,
// creates the schema if absent and verifies the store accepts writes. Any
// failure is returned as an *InitError.
func Open(ctx context.Context, cfg StoreConfig) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, &InitError{Step: "select driver", Err: err}
	}

	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaultBusyTimeout
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}

	var dsn string
	switch d.driver {
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, &InitError{Step: "open", Err: errors.New("empty database path")}
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, &InitError{Step: "create parent dir", Err: err}
		}
		dsn = sqliteDSN(cfg.Path, cfg.BusyTimeout)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, &InitError{Step: "open", Err: errors.New("empty postgres dsn")}
		}
		dsn = cfg.DSN
	}

	db, err := sqlx.ConnectContext(ctx, d.driver, dsn)
	if err != nil {
		return nil, &InitError{Step: "connect", Err: err}
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	s := newStore(db, d)
	s.path = cfg.Path
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sqlx.DB, d dialect) *Store {
	return &Store{db: db, dialect: d}
}

func (s *Store) init(ctx context.Context) error {
	if s.dialect.walMode {
		var mode string
		if err := s.db.QueryRowContext(ctx, pragmaJournalModeWAL).Scan(&mode); err != nil {
			return &InitError{Step: "enable wal", Err: err}
		}
		if !strings.EqualFold(mode, "wal") {
			return &InitError{Step: "enable wal", Err: fmt.Errorf("journal mode is %q", mode)}
		}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return &InitError{Step: "create schema", Err: err}
	}
	if err := s.checkWritable(ctx); err != nil {
		return &InitError{Step: "write check", Err: err}
	}
	return nil
}

// writeCheckMarker returns a fresh category for the startup write check, so the
// check can delete its own row by category without touching stored expenses.
func writeCheckMarker() string {
	return "__write-check-" + uuid.NewString()
}

// checkWritable inserts a throwaway row and deletes it again by its unique
// category marker, so an unwritable location fails at startup rather than on
// the first request.
// On SQLite the AUTOINCREMENT counter is put back, so the check does not
// consume an id.
func (s *Store) checkWritable(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var seq sql.NullInt64
	if s.dialect.restoreSequence {
		err := tx.GetContext(ctx, &seq, `SELECT seq FROM sqlite_sequence WHERE name = 'expenses'`)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read sequence: %w", err)
		}
	}

	marker := writeCheckMarker()
	if _, err := s.insert(ctx, tx, NewExpense{Date: "2000-01-01", Category: marker}); err != nil {
		return fmt.Errorf("insert check row: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM expenses WHERE category = ?`), marker)
	if err != nil {
		return fmt.Errorf("delete check row: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete check row: %w", err)
	} else if n != 1 {
		return fmt.Errorf("delete check row: removed %d rows, want 1", n)
	}

	if s.dialect.restoreSequence {
		if seq.Valid {
			_, err = tx.ExecContext(ctx, `UPDATE sqlite_sequence SET seq = ? WHERE name = 'expenses'`, seq.Int64)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'expenses'`)
		}
		if err != nil {
			return fmt.Errorf("restore sequence: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the SQLite file path, or "" for other drivers.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.dialect.driver
}

func (s *Store) insert(ctx context.Context, q sqlx.ExtContext, e NewExpense) (int64, error) {
	const stmt = `INSERT INTO expenses (date, amount, category, subcategory, note) VALUES (?, ?, ?, ?, ?)`
	args := []any{e.Date, e.Amount, e.Category, e.Subcategory, e.Note}

	if s.dialect.returningID {
		var id int64
		if err := q.QueryRowxContext(ctx, q.Rebind(stmt+` RETURNING id`), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := q.ExecContext(ctx, q.Rebind(stmt), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Insert appends one expense and returns its newly assigned id. The date
// format and amount sign are not validated.
func (s *Store) Insert(ctx context.Context, e NewExpense) (int64, error) {
	id, err := s.insert(ctx, s.db, e)
	if err != nil {
		return 0, &OpError{Op: "insert expense", Err: err}
	}
	return id, nil
}

// ListRange returns the expenses dated within [start, end] by string
// comparison, newest date first and, within a date, most recently inserted
// first.
func (s *Store) ListRange(ctx context.Context, start, end string) ([]Expense, error) {
	const query = `SELECT id, date, amount, category,
			COALESCE(subcategory, '') AS subcategory,
			COALESCE(note, '') AS note
		FROM expenses
		WHERE date BETWEEN ? AND ?
		ORDER BY date DESC, id DESC`

	expenses := []Expense{}
	if err := s.db.SelectContext(ctx, &expenses, s.db.Rebind(query), start, end); err != nil {
		return nil, &OpError{Op: "list expenses", Err: err}
	}
	return expenses, nil
}

// Summarize groups the expenses dated within [start, end] by category,
// largest total first. A non-empty category restricts the result to that
// single group.
func (s *Store) Summarize(ctx context.Context, start, end, category string) ([]CategorySummary, error) {
	var b strings.Builder
	b.WriteString(`SELECT category, SUM(amount) AS total_amount, COUNT(*) AS count
		FROM expenses
		WHERE date BETWEEN ? AND ?`)
	args := []any{start, end}
	if category != "" {
		b.WriteString(` AND category = ?`)
		args = append(args, category)
	}
	b.WriteString(` GROUP BY category ORDER BY total_amount DESC, category ASC`)

	summary := []CategorySummary{}
	if err := s.db.SelectContext(ctx, &summary, s.db.Rebind(b.String()), args...); err != nil {
		return nil, &OpError{Op: "summarize expenses", Err: err}
	}
	return summary, nil
}

// Count returns the number of stored expenses.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM expenses`); err != nil {
		return 0, &OpError{Op: "count expenses", Err: err}
	}
	return n, nil
}
