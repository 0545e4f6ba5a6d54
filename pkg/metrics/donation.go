package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DonationMetrics tracks pledge creation and status transitions.
type DonationMetrics struct {
	created     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	settled     *prometheus.CounterVec
}

func NewDonationMetrics(reg prometheus.Registerer) *DonationMetrics {
	if reg == nil {
		return &DonationMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "donations_created_total",
		Help: "Donation pledges created, by currency.",
	}, []string{"currency"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_transitions_total",
		Help: "Donation status transitions, by target status and source (webhook or admin).",
	}, []string{"status", "source"})
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "donations_settled_minor_total",
		Help: "Sum of successful donation amounts in minor units, by currency.",
	}, []string{"currency"})
	reg.MustRegister(created, transitions, settled)
	return &DonationMetrics{created: created, transitions: transitions, settled: settled}
}

func (d *DonationMetrics) IncCreated(currency string) {
	if d == nil || d.created == nil {
		return
	}
	d.created.WithLabelValues(normalizeLabel(currency)).Inc()
}

// IncTransition counts a fresh status change. Idempotent re-applies are not counted.
func (d *DonationMetrics) IncTransition(status, source string) {
	if d == nil || d.transitions == nil {
		return
	}
	d.transitions.WithLabelValues(normalizeLabel(status), normalizeLabel(source)).Inc()
}

func (d *DonationMetrics) AddSettled(currency string, amountMinor int64) {
	if d == nil || d.settled == nil || amountMinor <= 0 {
		return
	}
	d.settled.WithLabelValues(normalizeLabel(currency)).Add(float64(amountMinor))
}
