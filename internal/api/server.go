// Package api provides the bookkeeper HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cleared-dev/bookkeeper/internal/accounts"
	"github.com/cleared-dev/bookkeeper/internal/balance"
	"github.com/cleared-dev/bookkeeper/internal/journal"
	"github.com/cleared-dev/bookkeeper/internal/metrics"
	"github.com/cleared-dev/bookkeeper/internal/model"
	"github.com/cleared-dev/bookkeeper/internal/statements"
	"github.com/cleared-dev/bookkeeper/internal/store"
)

// Deps are the services the API is built on.
type Deps struct {
	Chart      *accounts.Service
	Journal    *journal.Service
	DB         *store.DB
	Statements *statements.Generator
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

// Server is the bookkeeper HTTP API server.
type Server struct {
	chart    *accounts.Service
	journal  *journal.Service
	db       *store.DB
	balances *balance.Engine
	reports  *statements.Generator
	metrics  *metrics.Metrics
	log      *zap.Logger
	gatherer prometheus.Gatherer
	now      func() time.Time
}

// NewServer creates a new API server.
func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		chart:    d.Chart,
		journal:  d.Journal,
		db:       d.DB,
		balances: balance.NewEngine(d.DB),
		reports:  d.Statements,
		metrics:  d.Metrics,
		log:      log,
		now:      time.Now,
	}
}

// EnableMetrics serves g on /metrics.
func (s *Server) EnableMetrics(g prometheus.Gatherer) { s.gatherer = g }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.observe)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleRegisterAccount)
			r.Get("/{number}", s.handleGetAccount)
			r.Get("/{number}/balance", s.handleAccountBalance)
			r.Get("/{number}/lines", s.handleAccountLines)
		})
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Post("/", s.handlePostEntry)
			r.Get("/{id}", s.handleGetEntry)
		})
		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", s.handleTrialBalance)
			r.Get("/income-statement", s.handleIncomeStatement)
			r.Get("/balance-sheet", s.handleBalanceSheet)
			r.Get("/cash-flow", s.handleCashFlow)
		})
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// observe logs each request and counts it by route pattern and status.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.Request(route, strconv.Itoa(status))
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownAccount), errors.Is(err, model.ErrUnknownEntry):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateAccountNumber), errors.Is(err, model.ErrAccountReferenced),
		errors.Is(err, model.ErrAccountHasBalance):
		return http.StatusConflict
	case model.IsValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"status":  status,
		},
	})
}
