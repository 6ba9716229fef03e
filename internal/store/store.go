// Package store persists the chart of accounts and the journal in SQLite.
//
// Three relations hold all ledger state: accounts, entries and entry_lines,
// with entry_lines foreign-keyed to both. Entries and lines are append-only;
// triggers refuse any UPDATE or DELETE on them.
//
// Writers are serialized by a mutex within a process and each write runs in
// one transaction that takes the database write lock at BEGIN, so writers in
// other processes queue on busy_timeout instead of failing mid-transaction.
// Readers use a separate pool and run concurrently; View pins a single read
// transaction so every query inside it sees the same point in ledger history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cleared-dev/bookkeeper/internal/model"
)

const timestampFormat = time.RFC3339Nano

// DB is a handle on one ledger database file.
type DB struct {
	db      *sql.DB // readers
	wdb     *sql.DB // writers, BEGIN IMMEDIATE
	path    string
	writeMu sync.Mutex
	log     *zap.Logger
	now     func() time.Time
}

// Open creates or opens the ledger at path and applies the schema.
func Open(path string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	writeDB, err := sql.Open("sqlite", dsn+"&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	writeDB.SetMaxOpenConns(1)

	db := &DB{wdb: writeDB, path: path, log: log, now: time.Now}
	if err := db.migrate(); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("migrating ledger %s: %w", path, err)
	}

	if db.db, err = sql.Open("sqlite", dsn); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	log.Debug("ledger opened", zap.String("path", path))
	return db, nil
}

// Close releases both database pools.
func (db *DB) Close() error {
	return errors.Join(db.db.Close(), db.wdb.Close())
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Migrations returns the schema statements, one per string.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			number         TEXT NOT NULL UNIQUE,
			name           TEXT NOT NULL,
			type           TEXT NOT NULL CHECK(type IN ('asset', 'liability', 'equity', 'revenue', 'expense')),
			normal_balance TEXT NOT NULL CHECK(normal_balance IN ('debit', 'credit')),
			description    TEXT NOT NULL DEFAULT '',
			active         INTEGER NOT NULL DEFAULT 1,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS entries (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_id    TEXT NOT NULL UNIQUE,
			month       TEXT NOT NULL,
			seq         INTEGER NOT NULL,
			entry_date  TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			reference   TEXT NOT NULL DEFAULT '',
			batch_id    TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			UNIQUE(month, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(entry_date)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_batch ON entries(batch_id)`,

		`CREATE TABLE IF NOT EXISTS entry_lines (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_id    INTEGER NOT NULL REFERENCES entries(id),
			line_no     INTEGER NOT NULL,
			account_id  INTEGER NOT NULL REFERENCES accounts(id),
			amount      TEXT NOT NULL,
			side        TEXT NOT NULL CHECK(side IN ('debit', 'credit')),
			description TEXT NOT NULL DEFAULT '',
			UNIQUE(entry_id, line_no)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lines_account ON entry_lines(account_id)`,

		`CREATE TRIGGER IF NOT EXISTS entries_immutable_update BEFORE UPDATE ON entries
		BEGIN SELECT RAISE(ABORT, 'journal entries are append-only'); END`,
		`CREATE TRIGGER IF NOT EXISTS entries_immutable_delete BEFORE DELETE ON entries
		BEGIN SELECT RAISE(ABORT, 'journal entries are append-only'); END`,
		`CREATE TRIGGER IF NOT EXISTS entry_lines_immutable_update BEFORE UPDATE ON entry_lines
		BEGIN SELECT RAISE(ABORT, 'journal lines are append-only'); END`,
		`CREATE TRIGGER IF NOT EXISTS entry_lines_immutable_delete BEFORE DELETE ON entry_lines
		BEGIN SELECT RAISE(ABORT, 'journal lines are append-only'); END`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.wdb.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// View runs fn against a single read transaction. Every query fn issues
// observes the same committed ledger state.
func (db *DB) View(ctx context.Context, fn func(Reader) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin read", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only; nothing to undo

	return fn(Snapshot{q: tx})
}

// Reader returns a reader whose queries each see the latest committed state.
func (db *DB) Reader() Reader {
	return Snapshot{q: db.db}
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *model.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &model.StorageError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatDate(t time.Time) string {
	return t.Format(model.DateFormat)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(model.DateFormat, s)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampFormat, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
