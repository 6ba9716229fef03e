package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bookkeeper/internal/accounts"
	"github.com/cleared-dev/bookkeeper/internal/id"
	"github.com/cleared-dev/bookkeeper/internal/metrics"
	"github.com/cleared-dev/bookkeeper/internal/model"
	"github.com/cleared-dev/bookkeeper/internal/store"
)

// mockCommitter records commits and can be told to fail.
type mockCommitter struct {
	committed []model.Entry
	err       error
}

func (m *mockCommitter) Commit(_ context.Context, e model.Entry) (model.Entry, error) {
	if m.err != nil {
		return model.Entry{}, m.err
	}
	e.ID = id.ForDate(e.Date, len(m.committed)+1)
	m.committed = append(m.committed, e)
	return e, nil
}

func (m *mockCommitter) CommitAll(ctx context.Context, entries []model.Entry) ([]model.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Entry, len(entries))
	for i, e := range entries {
		out[i], _ = m.Commit(ctx, e)
	}
	return out, nil
}

func TestPost_Mock(t *testing.T) {
	mc := &mockCommitter{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(newMockAccounts("1010", "4000"), mc, nil, m)

	entryID, err := svc.Post(context.Background(), sub(Debit("1010", dec("5")), Credit("4000", dec("5"))))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-001", entryID)
	require.Len(t, mc.committed, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesPosted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LinesPosted))
}

func TestPost_RejectedNeverCommits(t *testing.T) {
	mc := &mockCommitter{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(newMockAccounts("1010", "4000"), mc, nil, m)

	_, err := svc.Post(context.Background(), sub(Debit("1010", dec("500")), Credit("4000", dec("400"))))
	assert.ErrorIs(t, err, model.ErrUnbalancedEntry)
	_, err = svc.Post(context.Background(), sub(Debit("1010", dec("5")), Credit("9999", dec("5"))))
	assert.ErrorIs(t, err, model.ErrUnknownAccount)

	assert.Empty(t, mc.committed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesRejected.WithLabelValues(metrics.ReasonUnbalanced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesRejected.WithLabelValues(metrics.ReasonUnknown)))
}

func TestPost_StorageFailure(t *testing.T) {
	mc := &mockCommitter{err: &model.StorageError{Op: "insert entry", Err: errors.New("disk I/O error")}}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(newMockAccounts("1010", "4000"), mc, nil, m)

	_, err := svc.Post(context.Background(), sub(Debit("1010", dec("5")), Credit("4000", dec("5"))))
	assert.ErrorIs(t, err, model.ErrStorageFailure)
	assert.False(t, model.IsValidation(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesRejected.WithLabelValues(metrics.ReasonStorage)))
}

func TestPostAll_ValidatesBeforeCommitting(t *testing.T) {
	mc := &mockCommitter{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(newMockAccounts("1010", "4000"), mc, nil, m)

	ids, err := svc.PostAll(context.Background(), []Submission{
		sub(Debit("1010", dec("1")), Credit("4000", dec("1"))),
		sub(Debit("1010", dec("2")), Credit("4000", dec("3"))),
		sub(Debit("1010", dec("4")), Credit("4000", dec("4"))),
	})
	require.Error(t, err)
	assert.Nil(t, ids)

	var pe *PostError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Index)
	assert.ErrorIs(t, err, model.ErrUnbalancedEntry)
	assert.Empty(t, mc.committed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EntriesPosted))
}

func TestPostAll_CommitsInOrder(t *testing.T) {
	mc := &mockCommitter{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(newMockAccounts("1010", "4000"), mc, nil, m)

	ids, err := svc.PostAll(context.Background(), []Submission{
		sub(Debit("1010", dec("1")), Credit("4000", dec("1"))),
		sub(Debit("1010", dec("2")), Credit("4000", dec("2"))),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-001", "2024-01-002"}, ids)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesPosted))

	ids, err = svc.PostAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPostAll_StorageFailure(t *testing.T) {
	mc := &mockCommitter{err: &model.StorageError{Op: "insert entry", Err: errors.New("disk I/O error")}}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(newMockAccounts("1010", "4000"), mc, nil, m)

	ids, err := svc.PostAll(context.Background(), []Submission{
		sub(Debit("1010", dec("1")), Credit("4000", dec("1"))),
	})
	assert.ErrorIs(t, err, model.ErrStorageFailure)
	assert.Nil(t, ids)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesRejected.WithLabelValues(metrics.ReasonStorage)))
}

// ledger wires the real chart and store together.
type ledger struct {
	db    *store.DB
	chart *accounts.Service
	svc   *Service
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	chart, err := accounts.NewService(ctx, db, nil)
	require.NoError(t, err)
	_, err = chart.Seed(ctx, accounts.DefaultChart(""))
	require.NoError(t, err)

	return &ledger{db: db, chart: chart, svc: NewService(chart, db, nil, nil)}
}

func (l *ledger) lineCount(t *testing.T, number string) int {
	t.Helper()
	acct, err := l.chart.Lookup(number)
	require.NoError(t, err)
	n := 0
	for _, err := range l.db.Reader().LinesForAccount(context.Background(), acct.ID, time.Time{}) {
		require.NoError(t, err)
		n++
	}
	return n
}

func TestPost_Store(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	entryID, err := l.svc.Post(ctx, Submission{
		Date:        date(2024, 1, 15),
		Description: "Invoice 1042",
		Reference:   "INV-1042",
		Lines: []LineInput{
			Debit("1010", dec("1000.00")),
			Credit("4000", dec("1000.00")),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-001", entryID)

	e, err := l.db.Reader().Entry(ctx, entryID)
	require.NoError(t, err)
	assert.Equal(t, "Invoice 1042", e.Description)
	assert.Equal(t, "INV-1042", e.Reference)
	require.Len(t, e.Lines, 2)
	assert.Equal(t, "1010", e.Lines[0].AccountNumber)
	assert.Equal(t, "4000", e.Lines[1].AccountNumber)
}

func TestPost_StoreRejectedLeavesNoLines(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	_, err := l.svc.Post(ctx, sub(Debit("1010", dec("500")), Credit("4000", dec("400"))))
	require.ErrorIs(t, err, model.ErrUnbalancedEntry)

	assert.Zero(t, l.lineCount(t, "1010"))
	assert.Zero(t, l.lineCount(t, "4000"))

	// The next accepted entry still gets the first sequence number.
	entryID, err := l.svc.Post(ctx, sub(Debit("1010", dec("5")), Credit("4000", dec("5"))))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-001", entryID)
}

func TestPost_StoreInactiveAccount(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	_, err := l.chart.SetActive(ctx, "5300", false)
	require.NoError(t, err)

	_, err = l.svc.Post(ctx, sub(Debit("5300", dec("80")), Credit("1010", dec("80"))))
	assert.ErrorIs(t, err, model.ErrInvalidLine)
	assert.Zero(t, l.lineCount(t, "1010"))
}

func TestPost_SeesChartChangesFromAnotherHandle(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	other, err := accounts.NewService(ctx, l.db, nil)
	require.NoError(t, err)
	_, err = other.Register(ctx, accounts.Registration{
		Number: "1050", Name: "Petty Cash", Type: model.AccountTypeAsset, Active: true,
	})
	require.NoError(t, err)

	// l.chart was loaded before 1050 existed.
	entryID, err := l.svc.Post(ctx, sub(Debit("1050", dec("25")), Credit("1010", dec("25"))))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-001", entryID)
	assert.Equal(t, 1, l.lineCount(t, "1050"))

	_, err = other.SetActive(ctx, "5300", false)
	require.NoError(t, err)
	stale, ok := l.chart.Get("5300")
	require.True(t, ok)
	require.True(t, stale.Active)

	_, err = l.svc.Post(ctx, sub(Debit("5300", dec("80")), Credit("1010", dec("80"))))
	assert.ErrorIs(t, err, model.ErrInvalidLine)
	assert.Zero(t, l.lineCount(t, "5300"))
}

func TestPostAll_StoreBatchIsAtomic(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	other, err := accounts.NewService(ctx, l.db, nil)
	require.NoError(t, err)
	_, err = other.SetActive(ctx, "5300", false)
	require.NoError(t, err)

	// Both submissions validate against the stale chart; the second is
	// refused inside the write transaction and takes the first with it.
	_, err = l.svc.PostAll(ctx, []Submission{
		sub(Debit("1010", dec("100")), Credit("4000", dec("100"))),
		sub(Debit("5300", dec("80")), Credit("1010", dec("80"))),
	})
	require.ErrorIs(t, err, model.ErrInvalidLine)
	assert.ErrorContains(t, err, "entry 2")
	assert.Zero(t, l.lineCount(t, "1010"))
	assert.Zero(t, l.lineCount(t, "4000"))

	ids, err := l.svc.PostAll(ctx, []Submission{
		sub(Debit("1010", dec("100")), Credit("4000", dec("100"))),
		sub(Debit("5400", dec("80")), Credit("1010", dec("80"))),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-001", "2024-01-002"}, ids)
}
