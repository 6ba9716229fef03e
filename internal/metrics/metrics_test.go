package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostedAndRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Posted(2)
	m.Posted(3)
	m.Rejected(ReasonUnbalanced)
	m.Rejected(ReasonUnbalanced)
	m.Rejected(ReasonUnknown)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesPosted))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.LinesPosted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesRejected.WithLabelValues(ReasonUnbalanced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesRejected.WithLabelValues(ReasonUnknown)))
}

func TestActiveAccountsGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetActiveAccounts(14)
	assert.Equal(t, 14.0, testutil.ToFloat64(m.AccountsActive))
}

func TestObserveStatement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveStatement("trial_balance", time.Now())

	n, err := testutil.GatherAndCount(reg, "bookkeeper_statements_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Posted(1)
		m.Rejected(ReasonEmpty)
		m.SetActiveAccounts(1)
		m.ObserveStatement("x", time.Now())
		m.Request("/", "200")
	})
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
