package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the blood bank module.
// Tracks registrations, donations, requests, fulfillment and match latency.
type Metrics struct {
	DonorsRegistered     prometheus.Counter
	RequestorsRegistered prometheus.Counter
	DonationsRecorded    prometheus.Counter
	RequestsSubmitted    *prometheus.CounterVec
	FulfillmentsRecorded *prometheus.CounterVec
	UnitsDebited         *prometheus.CounterVec
	InventoryAdjustments *prometheus.CounterVec
	MatchReportDuration  prometheus.Histogram
	StoreBackend         *prometheus.GaugeVec
}

// New registers every instrument with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DonorsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "hemalink_donors_registered_total",
			Help: "Total number of donors registered",
		}),
		RequestorsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "hemalink_requestors_registered_total",
			Help: "Total number of requestors registered",
		}),
		DonationsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "hemalink_donations_recorded_total",
			Help: "Total number of donations recorded",
		}),
		RequestsSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hemalink_requests_submitted_total",
			Help: "Blood requests submitted, by urgency",
		}, []string{"urgency"}),
		FulfillmentsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hemalink_fulfillments_recorded_total",
			Help: "Fulfillments recorded, by resulting request status",
		}, []string{"status"}),
		UnitsDebited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hemalink_units_debited_total",
			Help: "Units removed from inventory by fulfillment, by blood group",
		}, []string{"blood_group"}),
		InventoryAdjustments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hemalink_inventory_adjustments_total",
			Help: "Inventory adjustments, by blood group and direction",
		}, []string{"blood_group", "direction"}),
		MatchReportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hemalink_match_report_duration_seconds",
			Help:    "Duration of match report computation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StoreBackend: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hemalink_store_backend",
			Help: "Selected record store backend (1 for the active one)",
		}, []string{"backend", "fallback"}),
	}
}

// The helpers below are nil-safe so components run without metrics.

func (m *Metrics) IncrementDonorsRegistered() {
	if m != nil {
		m.DonorsRegistered.Inc()
	}
}

func (m *Metrics) IncrementRequestorsRegistered() {
	if m != nil {
		m.RequestorsRegistered.Inc()
	}
}

func (m *Metrics) IncrementDonationsRecorded() {
	if m != nil {
		m.DonationsRecorded.Inc()
	}
}

func (m *Metrics) IncrementRequestsSubmitted(urgency string) {
	if m != nil {
		m.RequestsSubmitted.WithLabelValues(urgency).Inc()
	}
}

// RecordFulfillment counts one fulfillment and the units it debited.
func (m *Metrics) RecordFulfillment(status, bloodGroup string, debited int) {
	if m == nil {
		return
	}
	m.FulfillmentsRecorded.WithLabelValues(status).Inc()
	m.UnitsDebited.WithLabelValues(bloodGroup).Add(float64(debited))
}

func (m *Metrics) IncrementInventoryAdjustment(bloodGroup, direction string) {
	if m != nil {
		m.InventoryAdjustments.WithLabelValues(bloodGroup, direction).Inc()
	}
}

// ObserveMatchReport records the duration of a match report.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMatchReport(start time.Time) {
	if m != nil {
		m.MatchReportDuration.Observe(time.Since(start).Seconds())
	}
}

// SetStoreBackend marks the backend chosen at startup.
func (m *Metrics) SetStoreBackend(backend string, fallback bool) {
	if m == nil {
		return
	}
	label := "false"
	if fallback {
		label = "true"
	}
	m.StoreBackend.WithLabelValues(backend, label).Set(1)
}
