package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cleared-dev/bookkeeper/internal/model"
)

const accountColumns = `id, number, name, type, normal_balance, description, active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (model.Account, error) {
	var (
		a                model.Account
		typ, nb          string
		active           int
		created, updated string
	)
	if err := s.Scan(&a.ID, &a.Number, &a.Name, &typ, &nb, &a.Description, &active, &created, &updated); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	a.NormalBalance = model.NormalBalance(nb)
	a.Active = active == 1

	var err error
	if a.CreatedAt, err = parseTimestamp(created); err != nil {
		return model.Account{}, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	if a.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return model.Account{}, fmt.Errorf("parsing updated_at %q: %w", updated, err)
	}
	return a, nil
}

// InsertAccount stores a new account and returns it with its identifier and
// timestamps filled in.
func (db *DB) InsertAccount(ctx context.Context, a model.Account) (model.Account, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	now := db.now().UTC()
	res, err := db.wdb.ExecContext(ctx, `
		INSERT INTO accounts (number, name, type, normal_balance, description, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Number, a.Name, string(a.Type), string(a.NormalBalance), a.Description, boolToInt(a.Active),
		formatTimestamp(now), formatTimestamp(now))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Account{}, fmt.Errorf("account %s: %w", a.Number, model.ErrDuplicateAccountNumber)
		}
		return model.Account{}, storageErr("insert account", err)
	}

	a.ID, err = res.LastInsertId()
	if err != nil {
		return model.Account{}, storageErr("insert account", err)
	}
	a.CreatedAt, a.UpdatedAt = now, now
	db.log.Debug("account inserted", zap.String("number", a.Number), zap.Int64("id", a.ID))
	return a, nil
}

// UpdateAccount overwrites the account currently numbered number with a.
// Renumbering is refused once any journal line references the account, and
// deactivation while its lines leave a balance.
func (db *DB) UpdateAccount(ctx context.Context, number string, a model.Account) (model.Account, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.wdb.BeginTx(ctx, nil)
	if err != nil {
		return model.Account{}, storageErr("begin update account", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := Snapshot{q: tx}.AccountByNumber(ctx, number)
	if err != nil {
		return model.Account{}, err
	}

	if existing.Active && !a.Active {
		t, err := accountTotals(ctx, tx, existing.ID)
		if err != nil {
			return model.Account{}, err
		}
		if !t.Difference().Abs().LessThan(model.Tolerance) {
			return model.Account{}, fmt.Errorf("deactivating %s (balance %s): %w",
				number, t.Difference().Abs().StringFixed(2), model.ErrAccountHasBalance)
		}
	}

	if a.Number != existing.Number {
		n, err := referencingLines(ctx, tx, existing.ID)
		if err != nil {
			return model.Account{}, err
		}
		if n > 0 {
			return model.Account{}, fmt.Errorf("renumbering %s: %w", number, model.ErrAccountReferenced)
		}
	}

	now := db.now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET number = ?, name = ?, type = ?, normal_balance = ?, description = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, a.Number, a.Name, string(a.Type), string(a.NormalBalance), a.Description, boolToInt(a.Active),
		formatTimestamp(now), existing.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Account{}, fmt.Errorf("account %s: %w", a.Number, model.ErrDuplicateAccountNumber)
		}
		return model.Account{}, storageErr("update account", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Account{}, storageErr("commit account update", err)
	}

	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = now
	return a, nil
}

// DeleteAccount removes an account that no journal line references.
func (db *DB) DeleteAccount(ctx context.Context, number string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.wdb.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin delete account", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := Snapshot{q: tx}.AccountByNumber(ctx, number)
	if err != nil {
		return err
	}
	n, err := referencingLines(ctx, tx, existing.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("deleting %s: %w", number, model.ErrAccountReferenced)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, existing.ID); err != nil {
		return storageErr("delete account", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit account delete", err)
	}
	db.log.Debug("account deleted", zap.String("number", number))
	return nil
}

// ListAccounts returns every account ordered by number.
func (db *DB) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return db.Reader().Accounts(ctx, false)
}

func referencingLines(ctx context.Context, q queryer, accountID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM entry_lines WHERE account_id = ?`, accountID).Scan(&n)
	if err != nil {
		return 0, storageErr("count account lines", err)
	}
	return n, nil
}

// AccountByNumber looks up one account.
func (s Snapshot) AccountByNumber(ctx context.Context, number string) (model.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number = ?`, number)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, &model.UnknownAccountError{Number: number}
	}
	if err != nil {
		return model.Account{}, storageErr("get account", err)
	}
	return a, nil
}

// Accounts returns the chart ordered by account number.
func (s Snapshot) Accounts(ctx context.Context, activeOnly bool) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY number`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("list accounts", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storageErr("scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list accounts", err)
	}
	return accounts, nil
}
