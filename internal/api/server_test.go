package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bookkeeper/internal/accounts"
	"github.com/cleared-dev/bookkeeper/internal/journal"
	"github.com/cleared-dev/bookkeeper/internal/metrics"
	"github.com/cleared-dev/bookkeeper/internal/model"
	"github.com/cleared-dev/bookkeeper/internal/statements"
	"github.com/cleared-dev/bookkeeper/internal/store"
)

func setupServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	chart, err := accounts.NewService(ctx, db, nil)
	require.NoError(t, err)
	_, err = chart.Seed(ctx, accounts.DefaultChart(""))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	srv := NewServer(Deps{
		Chart:      chart,
		Journal:    journal.NewService(chart, db, nil, m),
		DB:         db,
		Statements: statements.New(db, statements.Options{}, m, nil),
		Metrics:    m,
	})
	srv.now = func() time.Time { return time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC) }
	srv.EnableMetrics(reg)
	return srv, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

const saleJSON = `{"date":"2024-01-15","description":"Invoice 1042","reference":"INV-1042",
	"lines":[{"account":"1010","amount":"1000.00","side":"debit"},{"account":"4000","amount":1000,"side":"credit"}]}`

func TestHealth(t *testing.T) {
	_, h := setupServer(t)
	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestAccounts(t *testing.T) {
	_, h := setupServer(t)

	w := do(t, h, http.MethodGet, "/api/v1/accounts", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]accountJSON](t, w)
	assert.Len(t, list, len(accounts.DefaultChart("")))
	assert.Equal(t, "1010", list[0].Number)

	w = do(t, h, http.MethodPost, "/api/v1/accounts", `{"number":"1050","name":"Petty Cash","type":"asset"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[accountJSON](t, w)
	assert.Equal(t, "debit", string(created.NormalBalance))
	require.NotNil(t, created.Active)
	assert.True(t, *created.Active)

	w = do(t, h, http.MethodPost, "/api/v1/accounts", `{"number":"1050","name":"Again","type":"asset"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/accounts", `{"number":"1060","name":"Bad","type":"income"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/accounts", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/accounts/1050", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Petty Cash", decode[accountJSON](t, w).Name)

	w = do(t, h, http.MethodGet, "/api/v1/accounts/9999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/accounts?q=payable", "")
	assert.Len(t, decode[[]accountJSON](t, w), 2)
}

func TestPostEntryAndBalance(t *testing.T) {
	_, h := setupServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/entries", saleJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	e := decode[entryJSON](t, w)
	assert.Equal(t, "2024-01-001", e.ID)
	require.Len(t, e.Lines, 2)
	assert.Equal(t, 1, e.Lines[0].LineNo)

	w = do(t, h, http.MethodGet, "/api/v1/accounts/1010/balance?as_of=2024-01-15", "")
	require.Equal(t, http.StatusOK, w.Code)
	b := decode[balanceJSON](t, w)
	assert.True(t, b.Balance.Equal(decimal.RequireFromString("1000")))
	assert.Equal(t, "2024-01-15", b.AsOf)

	w = do(t, h, http.MethodGet, "/api/v1/accounts/4000/balance", "")
	assert.True(t, decode[balanceJSON](t, w).Balance.Equal(decimal.RequireFromString("1000")))

	w = do(t, h, http.MethodGet, "/api/v1/accounts/1010/lines", "")
	require.Equal(t, http.StatusOK, w.Code)
	lines := decode[[]lineJSON](t, w)
	require.Len(t, lines, 1)
	assert.Equal(t, "2024-01-001", lines[0].EntryID)

	w = do(t, h, http.MethodGet, "/api/v1/entries/2024-01-001", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "INV-1042", decode[entryJSON](t, w).Reference)

	w = do(t, h, http.MethodGet, "/api/v1/entries?from=2024-01-01&to=2024-01-31", "")
	assert.Len(t, decode[[]entryJSON](t, w), 1)
	w = do(t, h, http.MethodGet, "/api/v1/entries?from=2024-02-01", "")
	assert.Empty(t, decode[[]entryJSON](t, w))
}

func TestPostEntry_Errors(t *testing.T) {
	_, h := setupServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"unbalanced", `{"date":"2024-01-15","lines":[{"account":"1010","amount":"500","side":"debit"},{"account":"4000","amount":"400","side":"credit"}]}`, http.StatusUnprocessableEntity},
		{"empty", `{"date":"2024-01-15","lines":[]}`, http.StatusUnprocessableEntity},
		{"unknown account", `{"date":"2024-01-15","lines":[{"account":"9999","amount":"5","side":"debit"},{"account":"4000","amount":"5","side":"credit"}]}`, http.StatusNotFound},
		{"bad date", `{"date":"15/01/2024","lines":[]}`, http.StatusBadRequest},
		{"bad body", `[`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/entries", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	w := do(t, h, http.MethodGet, "/api/v1/accounts/1010/balance", "")
	assert.True(t, decode[balanceJSON](t, w).Balance.IsZero())

	w = do(t, h, http.MethodGet, "/api/v1/entries/2024-01-001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodGet, "/api/v1/entries/not-an-id", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReports(t *testing.T) {
	_, h := setupServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/entries", saleJSON).Code)

	w := do(t, h, http.MethodGet, "/api/v1/reports/trial-balance?as_of=2024-01-31", "")
	require.Equal(t, http.StatusOK, w.Code)
	tb := decode[statements.TrialBalance](t, w)
	assert.True(t, tb.IsBalanced)
	assert.True(t, tb.TotalDebits.Equal(decimal.RequireFromString("1000")))

	w = do(t, h, http.MethodGet, "/api/v1/reports/income-statement?from=2024-01-01&to=2024-01-31", "")
	require.Equal(t, http.StatusOK, w.Code)
	is := decode[statements.IncomeStatement](t, w)
	assert.True(t, is.TotalRevenue.Equal(decimal.RequireFromString("1000")))
	assert.True(t, is.NetIncome.Equal(decimal.RequireFromString("1000")))

	// as_of defaults to the server's today.
	w = do(t, h, http.MethodGet, "/api/v1/reports/balance-sheet", "")
	require.Equal(t, http.StatusOK, w.Code)
	bs := decode[statements.BalanceSheet](t, w)
	assert.True(t, bs.IsBalanced)
	assert.Equal(t, "2024-06-30", bs.AsOf.Format("2006-01-02"))

	w = do(t, h, http.MethodGet, "/api/v1/reports/cash-flow?from=2024-01-01&to=2024-12-31", "")
	require.Equal(t, http.StatusOK, w.Code)
	cf := decode[statements.CashFlow](t, w)
	assert.True(t, cf.NetCashOperating.Equal(decimal.RequireFromString("1000")))

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/reports/cash-flow?from=2024-01-01", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/reports/trial-balance?as_of=yesterday", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := setupServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/entries", saleJSON).Code)

	w := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "bookkeeper_journal_entries_posted_total 1")
	assert.Contains(t, body, `bookkeeper_http_requests_total{code="201"`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&model.UnknownAccountError{Number: "9"}, http.StatusNotFound},
		{model.ErrUnknownEntry, http.StatusNotFound},
		{model.ErrDuplicateAccountNumber, http.StatusConflict},
		{model.ErrAccountReferenced, http.StatusConflict},
		{fmt.Errorf("deactivating 1010: %w", model.ErrAccountHasBalance), http.StatusConflict},
		{&model.UnbalancedEntryError{}, http.StatusUnprocessableEntity},
		{model.ErrInvalidLine, http.StatusUnprocessableEntity},
		{&model.StorageError{Op: "insert", Err: io.ErrUnexpectedEOF}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
