package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bookkeeper/internal/accounts"
	"github.com/cleared-dev/bookkeeper/internal/journal"
	"github.com/cleared-dev/bookkeeper/internal/model"
)

type accountJSON struct {
	Number        string              `json:"number"`
	Name          string              `json:"name"`
	Type          model.AccountType   `json:"type"`
	NormalBalance model.NormalBalance `json:"normal_balance,omitempty"`
	Description   string              `json:"description,omitempty"`
	Active        *bool               `json:"active,omitempty"`
}

func toAccountJSON(a model.Account) accountJSON {
	active := a.Active
	return accountJSON{
		Number:        a.Number,
		Name:          a.Name,
		Type:          a.Type,
		NormalBalance: a.NormalBalance,
		Description:   a.Description,
		Active:        &active,
	}
}

type balanceJSON struct {
	Account      accountJSON     `json:"account"`
	AsOf         string          `json:"as_of,omitempty"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	Balance      decimal.Decimal `json:"balance"`
}

type lineJSON struct {
	EntryID     string          `json:"entry_id,omitempty"`
	Date        string          `json:"date,omitempty"`
	LineNo      int             `json:"line_no,omitempty"`
	Account     string          `json:"account"`
	Amount      decimal.Decimal `json:"amount"`
	Side        model.Side      `json:"side"`
	Description string          `json:"description,omitempty"`
}

type entryJSON struct {
	ID          string     `json:"id,omitempty"`
	Date        string     `json:"date"`
	Description string     `json:"description"`
	Reference   string     `json:"reference,omitempty"`
	BatchID     string     `json:"batch_id,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Lines       []lineJSON `json:"lines"`
}

func toEntryJSON(e model.Entry) entryJSON {
	out := entryJSON{
		ID:          e.ID,
		Date:        e.Date.Format(model.DateFormat),
		Description: e.Description,
		Reference:   e.Reference,
		BatchID:     e.BatchID,
		Lines:       make([]lineJSON, len(e.Lines)),
	}
	if !e.CreatedAt.IsZero() {
		created := e.CreatedAt
		out.CreatedAt = &created
	}
	for i, l := range e.Lines {
		out.Lines[i] = lineJSON{
			LineNo:      l.LineNo,
			Account:     l.AccountNumber,
			Amount:      l.Amount,
			Side:        l.Side,
			Description: l.Description,
		}
	}
	return out
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var list []model.Account
	if term := q.Get("q"); term != "" {
		list = s.chart.Search(term)
	} else {
		list = s.chart.List(q.Get("active") == "true")
	}

	out := make([]accountJSON, len(list))
	for i, a := range list {
		out[i] = toAccountJSON(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRegisterAccount(w http.ResponseWriter, r *http.Request) {
	var in accountJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	acct, err := s.chart.Register(r.Context(), accounts.Registration{
		Number:        in.Number,
		Name:          in.Name,
		Type:          in.Type,
		NormalBalance: in.NormalBalance,
		Description:   in.Description,
		Active:        active,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.metrics.SetActiveAccounts(len(s.chart.List(true)))
	writeJSON(w, http.StatusCreated, toAccountJSON(acct))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.chart.Lookup(chi.URLParam(r, "number"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountJSON(acct))
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	asOf, ok := dateParam(w, r, "as_of")
	if !ok {
		return
	}
	b, err := s.balances.Balance(r.Context(), chi.URLParam(r, "number"), asOf)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := balanceJSON{
		Account:      toAccountJSON(b.Account),
		TotalDebits:  b.TotalDebits,
		TotalCredits: b.TotalCredits,
		Balance:      b.Balance,
	}
	if !asOf.IsZero() {
		out.AsOf = asOf.Format(model.DateFormat)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccountLines(w http.ResponseWriter, r *http.Request) {
	asOf, ok := dateParam(w, r, "as_of")
	if !ok {
		return
	}
	acct, err := s.chart.Lookup(chi.URLParam(r, "number"))
	if err != nil {
		s.fail(w, err)
		return
	}

	out := []lineJSON{}
	for pl, err := range s.db.Reader().LinesForAccount(r.Context(), acct.ID, asOf) {
		if err != nil {
			s.fail(w, err)
			return
		}
		out = append(out, lineJSON{
			EntryID:     pl.EntryID,
			Date:        pl.Date.Format(model.DateFormat),
			LineNo:      pl.LineNo,
			Account:     acct.Number,
			Amount:      pl.Amount,
			Side:        pl.Side,
			Description: pl.Description,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePostEntry(w http.ResponseWriter, r *http.Request) {
	var in entryJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := model.ParseDate(in.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub := journal.Submission{Date: d, Description: in.Description, Reference: in.Reference}
	for _, l := range in.Lines {
		sub.Lines = append(sub.Lines, journal.LineInput{
			AccountNumber: l.Account,
			Amount:        l.Amount,
			Side:          l.Side,
			Description:   l.Description,
		})
	}

	e, err := s.journal.PostEntry(r.Context(), sub)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryJSON(e))
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	from, ok := dateParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := dateParam(w, r, "to")
	if !ok {
		return
	}
	entries, err := s.db.Reader().EntriesInRange(r.Context(), from, to)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = toEntryJSON(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.db.Reader().Entry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryJSON(e))
}

func (s *Server) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, ok := dateParam(w, r, "as_of")
	if !ok {
		return
	}
	tb, err := s.reports.TrialBalance(r.Context(), asOf, activeOnly(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}

func (s *Server) handleIncomeStatement(w http.ResponseWriter, r *http.Request) {
	from, to, ok := periodParams(w, r)
	if !ok {
		return
	}
	is, err := s.reports.IncomeStatement(r.Context(), from, to, activeOnly(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, is)
}

func (s *Server) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, ok := dateParam(w, r, "as_of")
	if !ok {
		return
	}
	if asOf.IsZero() {
		asOf = model.Day(s.now())
	}
	bs, err := s.reports.BalanceSheet(r.Context(), asOf, activeOnly(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	from, to, ok := periodParams(w, r)
	if !ok {
		return
	}
	cf, err := s.reports.CashFlow(r.Context(), from, to)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cf)
}

// dateParam parses an optional YYYY-MM-DD query parameter, writing a 400
// and returning false when it is malformed.
func dateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	d, err := model.ParseDate(r.URL.Query().Get(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", name, err))
		return time.Time{}, false
	}
	return d, true
}

// periodParams reads the required from and to parameters.
func periodParams(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, ok := dateParam(w, r, "from")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := dateParam(w, r, "to")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if from.IsZero() || to.IsZero() {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// activeOnly is true unless ?all=true is given.
func activeOnly(r *http.Request) bool {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	return !all
}
