package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/bookkeeper/internal/id"
	"github.com/cleared-dev/bookkeeper/internal/model"
)

// Reader is the read side of the ledger. Snapshot implements it.
type Reader interface {
	AccountByNumber(ctx context.Context, number string) (model.Account, error)
	Accounts(ctx context.Context, activeOnly bool) ([]model.Account, error)
	LinesForAccount(ctx context.Context, accountID int64, asOf time.Time) iter.Seq2[model.PostedLine, error]
	Totals(ctx context.Context, w model.Window) (map[int64]model.Totals, error)
	EntriesInRange(ctx context.Context, from, to time.Time) ([]model.Entry, error)
	Entry(ctx context.Context, entryID string) (model.Entry, error)
}

// Snapshot issues reads through either a pinned read transaction (inside
// View) or the shared pool (from Reader).
type Snapshot struct {
	q queryer
}

// Commit writes an entry and all of its lines in one transaction and returns
// the entry with its public ID, line numbers and creation time assigned.
// Either every row becomes visible or none does.
//
// Commit trusts the entry's balance: callers validate it and resolve account
// IDs first (see package journal). Each line's account is checked again
// inside the transaction so a chart change made through another handle
// cannot slip a line onto a missing or deactivated account.
func (db *DB) Commit(ctx context.Context, e model.Entry) (model.Entry, error) {
	committed, err := db.CommitAll(ctx, []model.Entry{e})
	if err != nil {
		return model.Entry{}, err
	}
	return committed[0], nil
}

// CommitAll writes a batch of entries in one transaction. IDs are assigned in
// slice order. If any entry fails, nothing from the batch is stored.
func (db *DB) CommitAll(ctx context.Context, entries []model.Entry) ([]model.Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	for _, e := range entries {
		if len(e.Lines) == 0 {
			return nil, model.ErrEmptyEntry
		}
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.wdb.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin commit", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	now := db.now().UTC()
	committed := make([]model.Entry, len(entries))
	for i, e := range entries {
		if committed[i], err = insertEntry(ctx, tx, e, now); err != nil {
			if len(entries) > 1 {
				return nil, fmt.Errorf("entry %d: %w", i+1, err)
			}
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit entry", err)
	}

	for _, e := range committed {
		db.log.Debug("entry committed",
			zap.String("entry_id", e.ID),
			zap.Int("lines", len(e.Lines)),
			zap.String("date", formatDate(e.Date)))
	}
	return committed, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e model.Entry, now time.Time) (model.Entry, error) {
	e.Date = model.Day(e.Date)
	month := id.MonthKey(e.Date)

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE month = ?`, month).Scan(&seq); err != nil {
		return model.Entry{}, storageErr("next entry sequence", err)
	}
	e.ID = id.ForDate(e.Date, seq)
	e.CreatedAt = now

	res, err := tx.ExecContext(ctx, `
		INSERT INTO entries (entry_id, month, seq, entry_date, description, reference, batch_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, month, seq, formatDate(e.Date), e.Description, e.Reference, e.BatchID, formatTimestamp(e.CreatedAt))
	if err != nil {
		return model.Entry{}, storageErr("insert entry", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return model.Entry{}, storageErr("insert entry", err)
	}

	lines := make([]model.Line, len(e.Lines))
	for i, l := range e.Lines {
		l.LineNo = i + 1
		if err := checkPostable(ctx, tx, l); err != nil {
			return model.Entry{}, fmt.Errorf("line %d: %w", l.LineNo, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entry_lines (entry_id, line_no, account_id, amount, side, description)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rowID, l.LineNo, l.AccountID, l.Amount.String(), string(l.Side), l.Description)
		if err != nil {
			return model.Entry{}, storageErr(fmt.Sprintf("insert line %d", l.LineNo), err)
		}
		lines[i] = l
	}
	e.Lines = lines
	return e, nil
}

// checkPostable reports whether the line's account exists and is active as
// of the write transaction.
func checkPostable(ctx context.Context, q queryer, l model.Line) error {
	var active int
	err := q.QueryRowContext(ctx, `SELECT active FROM accounts WHERE id = ?`, l.AccountID).Scan(&active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &model.UnknownAccountError{Number: l.AccountNumber}
	case err != nil:
		return storageErr("check line account", err)
	case active != 1:
		return fmt.Errorf("account %s is inactive: %w", l.AccountNumber, model.ErrInvalidLine)
	}
	return nil
}

// accountTotals sums every line posted to one account.
func accountTotals(ctx context.Context, q queryer, accountID int64) (model.Totals, error) {
	var t model.Totals
	rows, err := q.QueryContext(ctx, `SELECT side, amount FROM entry_lines WHERE account_id = ?`, accountID)
	if err != nil {
		return t, storageErr("query account totals", err)
	}
	defer rows.Close()
	for rows.Next() {
		var side, amt string
		if err := rows.Scan(&side, &amt); err != nil {
			return t, storageErr("scan account totals", err)
		}
		amount, err := decimal.NewFromString(amt)
		if err != nil {
			return t, storageErr("scan account totals", fmt.Errorf("parsing amount %q: %w", amt, err))
		}
		t.Add(model.Side(side), amount)
	}
	if err := rows.Err(); err != nil {
		return t, storageErr("query account totals", err)
	}
	return t, nil
}

const postedLineQuery = `
	SELECT e.entry_id, e.entry_date, l.line_no, l.account_id, a.number, l.amount, l.side, l.description
	FROM entry_lines l
	JOIN entries e ON e.id = l.entry_id
	JOIN accounts a ON a.id = l.account_id`

func scanPostedLine(s scanner) (model.PostedLine, error) {
	var (
		pl             model.PostedLine
		date, amt, sid string
	)
	if err := s.Scan(&pl.EntryID, &date, &pl.LineNo, &pl.AccountID, &pl.AccountNumber, &amt, &sid, &pl.Description); err != nil {
		return model.PostedLine{}, err
	}
	var err error
	if pl.Date, err = parseDate(date); err != nil {
		return model.PostedLine{}, fmt.Errorf("parsing entry_date %q: %w", date, err)
	}
	if pl.Amount, err = decimal.NewFromString(amt); err != nil {
		return model.PostedLine{}, fmt.Errorf("parsing amount %q: %w", amt, err)
	}
	pl.Side = model.Side(sid)
	return pl, nil
}

// windowClause appends entry_date bounds for w to a query that already has
// a WHERE clause.
func windowClause(w model.Window, args []any) (string, []any) {
	var b strings.Builder
	if !w.From.IsZero() {
		b.WriteString(` AND e.entry_date >= ?`)
		args = append(args, formatDate(w.From))
	}
	if !w.To.IsZero() {
		b.WriteString(` AND e.entry_date <= ?`)
		args = append(args, formatDate(w.To))
	}
	return b.String(), args
}

// LinesForAccount yields the account's lines dated on or before asOf (all
// lines when asOf is zero), ordered by entry date then insertion order.
// The query runs when iteration starts, so the sequence can be ranged over
// more than once.
func (s Snapshot) LinesForAccount(ctx context.Context, accountID int64, asOf time.Time) iter.Seq2[model.PostedLine, error] {
	return func(yield func(model.PostedLine, error) bool) {
		cond, args := windowClause(model.AsOf(asOf), []any{accountID})
		query := postedLineQuery + ` WHERE l.account_id = ?` + cond + ` ORDER BY e.entry_date, l.id`

		rows, err := s.q.QueryContext(ctx, query, args...)
		if err != nil {
			yield(model.PostedLine{}, storageErr("query account lines", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			pl, err := scanPostedLine(rows)
			if err != nil {
				yield(model.PostedLine{}, storageErr("scan line", err))
				return
			}
			if !yield(pl, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.PostedLine{}, storageErr("query account lines", err))
		}
	}
}

// Totals sums debit and credit amounts per account ID over the window.
// Accounts without lines in the window are absent from the map.
func (s Snapshot) Totals(ctx context.Context, w model.Window) (map[int64]model.Totals, error) {
	totals := make(map[int64]model.Totals)
	if w.Empty() {
		return totals, nil
	}

	cond, args := windowClause(w, nil)
	rows, err := s.q.QueryContext(ctx, `
		SELECT l.account_id, l.side, l.amount
		FROM entry_lines l
		JOIN entries e ON e.id = l.entry_id
		WHERE 1 = 1`+cond, args...)
	if err != nil {
		return nil, storageErr("query totals", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			accountID int64
			side, amt string
		)
		if err := rows.Scan(&accountID, &side, &amt); err != nil {
			return nil, storageErr("scan totals", err)
		}
		amount, err := decimal.NewFromString(amt)
		if err != nil {
			return nil, storageErr("scan totals", fmt.Errorf("parsing amount %q: %w", amt, err))
		}
		t := totals[accountID]
		t.Add(model.Side(side), amount)
		totals[accountID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query totals", err)
	}
	return totals, nil
}

const entryColumns = `e.id, e.entry_id, e.entry_date, e.description, e.reference, e.batch_id, e.created_at`

func scanEntry(s scanner) (int64, model.Entry, error) {
	var (
		rowID         int64
		e             model.Entry
		date, created string
	)
	if err := s.Scan(&rowID, &e.ID, &date, &e.Description, &e.Reference, &e.BatchID, &created); err != nil {
		return 0, model.Entry{}, err
	}
	var err error
	if e.Date, err = parseDate(date); err != nil {
		return 0, model.Entry{}, fmt.Errorf("parsing entry_date %q: %w", date, err)
	}
	if e.CreatedAt, err = parseTimestamp(created); err != nil {
		return 0, model.Entry{}, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	return rowID, e, nil
}

// EntriesInRange returns entries dated within [from, to], both inclusive,
// with their lines, ordered by date then commit order. A zero bound is open.
func (s Snapshot) EntriesInRange(ctx context.Context, from, to time.Time) ([]model.Entry, error) {
	w := model.Period(from, to)
	if w.Empty() {
		return nil, nil
	}
	cond, args := windowClause(w, nil)
	return s.queryEntries(ctx, ` WHERE 1 = 1`+cond, args)
}

// EntriesInBatch returns the entries stamped with an import batch ID.
func (s Snapshot) EntriesInBatch(ctx context.Context, batchID string) ([]model.Entry, error) {
	return s.queryEntries(ctx, ` WHERE e.batch_id = ?`, []any{batchID})
}

// Entry returns one entry by its public ID.
func (s Snapshot) Entry(ctx context.Context, entryID string) (model.Entry, error) {
	if !id.Valid(entryID) {
		return model.Entry{}, fmt.Errorf("entry %q: malformed ID: %w", entryID, model.ErrUnknownEntry)
	}
	entries, err := s.queryEntries(ctx, ` WHERE e.entry_id = ?`, []any{entryID})
	if err != nil {
		return model.Entry{}, err
	}
	if len(entries) == 0 {
		return model.Entry{}, fmt.Errorf("entry %q: %w", entryID, model.ErrUnknownEntry)
	}
	return entries[0], nil
}

func (s Snapshot) queryEntries(ctx context.Context, where string, args []any) ([]model.Entry, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries e`+where+` ORDER BY e.entry_date, e.id`, args...)
	if err != nil {
		return nil, storageErr("query entries", err)
	}

	var (
		entries []model.Entry
		index   = make(map[int64]int)
	)
	for rows.Next() {
		rowID, e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr("scan entry", err)
		}
		index[rowID] = len(entries)
		entries = append(entries, e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, storageErr("query entries", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	lineRows, err := s.q.QueryContext(ctx, `
		SELECT l.entry_id, l.line_no, l.account_id, a.number, l.amount, l.side, l.description
		FROM entry_lines l
		JOIN entries e ON e.id = l.entry_id
		JOIN accounts a ON a.id = l.account_id`+where+` ORDER BY l.entry_id, l.line_no`, args...)
	if err != nil {
		return nil, storageErr("query entry lines", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var (
			rowID     int64
			l         model.Line
			amt, side string
		)
		if err := lineRows.Scan(&rowID, &l.LineNo, &l.AccountID, &l.AccountNumber, &amt, &side, &l.Description); err != nil {
			return nil, storageErr("scan entry line", err)
		}
		if l.Amount, err = decimal.NewFromString(amt); err != nil {
			return nil, storageErr("scan entry line", fmt.Errorf("parsing amount %q: %w", amt, err))
		}
		l.Side = model.Side(side)

		i, ok := index[rowID]
		if !ok {
			continue
		}
		entries[i].Lines = append(entries[i].Lines, l)
	}
	if err := lineRows.Err(); err != nil {
		return nil, storageErr("query entry lines", err)
	}
	return entries, nil
}

// EntriesInBatch returns the entries posted by one import batch.
func (db *DB) EntriesInBatch(ctx context.Context, batchID string) ([]model.Entry, error) {
	return Snapshot{q: db.db}.EntriesInBatch(ctx, batchID)
}
