package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// UsagePercentRemaining tracks the latest probed remaining percentage
	UsagePercentRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "usagelord_percent_remaining",
			Help: "Latest remaining usage percentage per provider quota window",
		},
		[]string{"provider_id", "quota_type"},
	)

	// ProbeDurationSeconds tracks how long each probe takes
	ProbeDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "usagelord_probe_duration_seconds",
			Help:    "Wall-clock duration of one provider probe",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"provider_id"},
	)

	// ProbeFailuresTotal counts failed probes by error kind
	ProbeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagelord_probe_failures_total",
			Help: "Total number of failed probes",
		},
		[]string{"provider_id", "kind"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(UsagePercentRemaining)
	prometheus.MustRegister(ProbeDurationSeconds)
	prometheus.MustRegister(ProbeFailuresTotal)
}
