package balance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bookkeeper/internal/accounts"
	"github.com/cleared-dev/bookkeeper/internal/journal"
	"github.com/cleared-dev/bookkeeper/internal/model"
	"github.com/cleared-dev/bookkeeper/internal/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newLedger(t *testing.T) (*store.DB, *journal.Service) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	chart, err := accounts.NewService(ctx, db, nil)
	require.NoError(t, err)
	_, err = chart.Seed(ctx, accounts.DefaultChart(""))
	require.NoError(t, err)
	return db, journal.NewService(chart, db, nil, nil)
}

func post(t *testing.T, svc *journal.Service, d time.Time, lines ...journal.LineInput) {
	t.Helper()
	_, err := svc.Post(context.Background(), journal.Submission{Date: d, Description: "test", Lines: lines})
	require.NoError(t, err)
}

func TestSigned(t *testing.T) {
	tot := model.Totals{Debits: dec("300"), Credits: dec("120")}
	assert.True(t, Signed(model.NormalDebit, tot).Equal(dec("180")))
	assert.True(t, Signed(model.NormalCredit, tot).Equal(dec("-180")))
	assert.True(t, Signed(model.NormalDebit, model.Totals{}).IsZero())
}

func TestOf_SaleScenario(t *testing.T) {
	db, svc := newLedger(t)
	ctx := context.Background()
	post(t, svc, date(2024, 1, 15),
		journal.Debit("1010", dec("1000.00")),
		journal.Credit("4000", dec("1000.00")))

	cash, err := Of(ctx, db.Reader(), "1010", date(2024, 1, 15))
	require.NoError(t, err)
	assert.True(t, cash.Balance.Equal(dec("1000.00")), "cash = %s", cash.Balance)

	sales, err := Of(ctx, db.Reader(), "4000", date(2024, 1, 15))
	require.NoError(t, err)
	assert.True(t, sales.Balance.Equal(dec("1000.00")), "sales = %s", sales.Balance)
	assert.True(t, sales.TotalCredits.Equal(dec("1000.00")))
	assert.True(t, sales.TotalDebits.IsZero())

	before, err := Of(ctx, db.Reader(), "1010", date(2024, 1, 14))
	require.NoError(t, err)
	assert.True(t, before.Balance.IsZero())
}

func TestOf_NoLines(t *testing.T) {
	db, _ := newLedger(t)
	b, err := Of(context.Background(), db.Reader(), "5300", time.Time{})
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(decimal.Zero))
	assert.Equal(t, "5300", b.Account.Number)
}

func TestOf_UnknownAccount(t *testing.T) {
	db, _ := newLedger(t)
	_, err := Of(context.Background(), db.Reader(), "9999", time.Time{})
	assert.ErrorIs(t, err, model.ErrUnknownAccount)
}

func TestAll_MatchesOf(t *testing.T) {
	db, svc := newLedger(t)
	ctx := context.Background()
	post(t, svc, date(2024, 1, 2), journal.Debit("1010", dec("5000")), journal.Credit("3000", dec("5000")))
	post(t, svc, date(2024, 1, 10), journal.Debit("5100", dec("1200")), journal.Credit("1010", dec("1200")))
	post(t, svc, date(2024, 2, 1), journal.Debit("1100", dec("800")), journal.Credit("4100", dec("800")))

	asOf := date(2024, 1, 31)
	rows, err := All(ctx, db.Reader(), asOf, false)
	require.NoError(t, err)
	require.Len(t, rows, len(accounts.DefaultChart("")))

	for _, row := range rows {
		single, err := Of(ctx, db.Reader(), row.Account.Number, asOf)
		require.NoError(t, err)
		assert.True(t, single.Balance.Equal(row.Balance), "account %s: %s != %s", row.Account.Number, single.Balance, row.Balance)
	}

	byNumber := make(map[string]decimal.Decimal)
	for _, row := range rows {
		byNumber[row.Account.Number] = row.Balance
	}
	assert.True(t, byNumber["1010"].Equal(dec("3800")))
	assert.True(t, byNumber["3000"].Equal(dec("5000")))
	assert.True(t, byNumber["5100"].Equal(dec("1200")))
	assert.True(t, byNumber["4100"].IsZero(), "February revenue is after asOf")
}

func TestInWindow_Period(t *testing.T) {
	db, svc := newLedger(t)
	ctx := context.Background()
	post(t, svc, date(2024, 1, 31), journal.Debit("1010", dec("10")), journal.Credit("4000", dec("10")))
	post(t, svc, date(2024, 2, 1), journal.Debit("1010", dec("20")), journal.Credit("4000", dec("20")))
	post(t, svc, date(2024, 2, 29), journal.Debit("1010", dec("40")), journal.Credit("4000", dec("40")))
	post(t, svc, date(2024, 3, 1), journal.Debit("1010", dec("80")), journal.Credit("4000", dec("80")))

	rows, err := InWindow(ctx, db.Reader(), model.Period(date(2024, 2, 1), date(2024, 2, 29)), false)
	require.NoError(t, err)
	for _, row := range rows {
		if row.Account.Number == "4000" {
			assert.True(t, row.Balance.Equal(dec("60")), "got %s", row.Balance)
		}
	}
}

func TestBalances_PathIndependent(t *testing.T) {
	type posting struct {
		d     time.Time
		lines []journal.LineInput
	}
	postings := []posting{
		{date(2024, 3, 1), []journal.LineInput{journal.Debit("1010", dec("2500")), journal.Credit("3000", dec("2500"))}},
		{date(2024, 3, 5), []journal.LineInput{journal.Debit("5400", dec("75.25")), journal.Credit("1010", dec("75.25"))}},
		{date(2024, 3, 9), []journal.LineInput{journal.Debit("1100", dec("900")), journal.Credit("4100", dec("900"))}},
		{date(2024, 3, 20), []journal.LineInput{journal.Debit("1010", dec("900")), journal.Credit("1100", dec("900"))}},
	}

	balancesAfter := func(order []int) []model.AccountBalance {
		db, svc := newLedger(t)
		for _, i := range order {
			post(t, svc, postings[i].d, postings[i].lines...)
		}
		rows, err := NewEngine(db).Balances(context.Background(), date(2024, 3, 31), false)
		require.NoError(t, err)
		return rows
	}

	forward := balancesAfter([]int{0, 1, 2, 3})
	reverse := balancesAfter([]int{3, 2, 1, 0})
	shuffled := balancesAfter([]int{2, 0, 3, 1})

	require.Len(t, reverse, len(forward))
	for i := range forward {
		assert.True(t, forward[i].Balance.Equal(reverse[i].Balance), "account %s", forward[i].Account.Number)
		assert.True(t, forward[i].Balance.Equal(shuffled[i].Balance), "account %s", forward[i].Account.Number)
	}
}

func TestEngine_Balance(t *testing.T) {
	db, svc := newLedger(t)
	post(t, svc, date(2024, 1, 15), journal.Debit("1010", dec("42")), journal.Credit("4000", dec("42")))

	b, err := NewEngine(db).Balance(context.Background(), "1010", time.Time{})
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(dec("42")))

	_, err = NewEngine(db).Balance(context.Background(), "0000", time.Time{})
	assert.ErrorIs(t, err, model.ErrUnknownAccount)
}
