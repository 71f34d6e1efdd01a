package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics exposes low-cardinality counters for the billing pipeline.
type BillingMetrics struct {
	usageIngested     prometheus.Counter
	invoicesGenerated prometheus.Counter
	paymentsApplied   prometheus.Counter
	penaltiesApplied  prometheus.Counter
	cycleCustomers    *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the process-wide metrics set, registering it on first use.
func Billing() (*BillingMetrics, error) {
	var err error
	billingMetricsOnce.Do(func() {
		billingMetrics, err = newBillingMetrics(prometheus.DefaultRegisterer)
	})
	return billingMetrics, err
}

func newBillingMetrics(reg prometheus.Registerer) (*BillingMetrics, error) {
	m := &BillingMetrics{
		usageIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telcobill_usage_ingested_total",
			Help: "Usage records accepted by the metering ingest path.",
		}),
		invoicesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telcobill_invoices_generated_total",
			Help: "Bills created by the billing cycle.",
		}),
		paymentsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telcobill_payments_applied_total",
			Help: "Payments recorded against bills.",
		}),
		penaltiesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telcobill_penalties_applied_total",
			Help: "Late penalties applied to overdue bills.",
		}),
		cycleCustomers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telcobill_cycle_customers_total",
			Help: "Per-customer outcomes of billing cycle runs.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "telcobill_cycle_duration_seconds",
			Help:    "Wall-clock duration of one billing cycle run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.usageIngested,
		m.invoicesGenerated,
		m.paymentsApplied,
		m.penaltiesApplied,
		m.cycleCustomers,
		m.cycleDuration,
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *BillingMetrics) IncUsageIngested() {
	if m == nil {
		return
	}
	m.usageIngested.Inc()
}

func (m *BillingMetrics) IncInvoiceGenerated() {
	if m == nil {
		return
	}
	m.invoicesGenerated.Inc()
}

func (m *BillingMetrics) IncPaymentApplied() {
	if m == nil {
		return
	}
	m.paymentsApplied.Inc()
}

func (m *BillingMetrics) IncPenaltyApplied() {
	if m == nil {
		return
	}
	m.penaltiesApplied.Inc()
}

func (m *BillingMetrics) ObserveCycleOutcome(outcome string) {
	if m == nil {
		return
	}
	m.cycleCustomers.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) ObserveCycleDuration(seconds float64) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(seconds)
}
