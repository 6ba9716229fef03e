// Package metrics defines the ledger's Prometheus instruments.
//
// Instruments are registered against a caller-supplied registry so tests and
// embedded uses do not collide on the global default. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bookkeeper"

// Rejection reasons used as the "reason" label.
const (
	ReasonEmpty      = "empty"
	ReasonUnknown    = "unknown_account"
	ReasonInvalid    = "invalid_line"
	ReasonUnbalanced = "unbalanced"
	ReasonStorage    = "storage"
)

// Metrics holds every instrument.
type Metrics struct {
	EntriesPosted     prometheus.Counter
	LinesPosted       prometheus.Counter
	EntriesRejected   *prometheus.CounterVec
	AccountsActive    prometheus.Gauge
	StatementDuration *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EntriesPosted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "entries_posted_total",
			Help:      "Total journal entries committed.",
		}),
		LinesPosted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "lines_posted_total",
			Help:      "Total journal lines committed.",
		}),
		EntriesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "entries_rejected_total",
			Help:      "Total journal entries rejected, by reason.",
		}, []string{"reason"}),
		AccountsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "active",
			Help:      "Number of active accounts in the chart.",
		}),
		StatementDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "statements",
			Name:      "duration_seconds",
			Help:      "Statement generation latency by statement.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"statement"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP API requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// Posted records one committed entry with n lines.
func (m *Metrics) Posted(n int) {
	if m == nil {
		return
	}
	m.EntriesPosted.Inc()
	m.LinesPosted.Add(float64(n))
}

// Rejected records one rejected entry.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.EntriesRejected.WithLabelValues(reason).Inc()
}

// SetActiveAccounts sets the active-account gauge.
func (m *Metrics) SetActiveAccounts(n int) {
	if m == nil {
		return
	}
	m.AccountsActive.Set(float64(n))
}

// ObserveStatement records how long statement took since start.
func (m *Metrics) ObserveStatement(statement string, start time.Time) {
	if m == nil {
		return
	}
	m.StatementDuration.WithLabelValues(statement).Observe(time.Since(start).Seconds())
}

// Request counts one HTTP request.
func (m *Metrics) Request(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}
