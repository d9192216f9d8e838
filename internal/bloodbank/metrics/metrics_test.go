package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementDonorsRegistered()
	m.IncrementRequestsSubmitted("critical")
	m.RecordFulfillment("partial", "O-", 3)
	m.RecordFulfillment("fulfilled", "O-", 2)
	m.SetStoreBackend("memory", true)
	m.ObserveMatchReport(time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DonorsRegistered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsSubmitted.WithLabelValues("critical")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.UnitsDebited.WithLabelValues("O-")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreBackend.WithLabelValues("memory", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.MatchReportDuration))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementDonorsRegistered()
		m.RecordFulfillment("fulfilled", "A+", 1)
		m.ObserveMatchReport(time.Now())
		m.SetStoreBackend("redis", false)
	})
}
