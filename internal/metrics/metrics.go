package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScheduledJobs is the number of live daily push jobs.
	ScheduledJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tarot_scheduled_jobs",
			Help: "Number of live daily push jobs",
		},
	)

	// JobFiresTotal counts timer firings by result (handed_off, rejected, not_configured, panic, stale).
	JobFiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_job_fires_total",
			Help: "Total number of daily job firings by result",
		},
		[]string{"result"},
	)

	// PushesTotal counts push actions by status (sent, failed, skipped, error).
	PushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_pushes_total",
			Help: "Total number of daily pushes by status",
		},
		[]string{"status"},
	)

	// PaymentsTotal counts payment state changes by provider and status.
	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_payments_total",
			Help: "Total number of payment outcomes by provider and status",
		},
		[]string{"provider", "status"},
	)

	// ReadingsTotal counts LLM readings by result (ok, failed).
	ReadingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_readings_total",
			Help: "Total number of three-card readings by result",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(ScheduledJobs, JobFiresTotal, PushesTotal, PaymentsTotal, ReadingsTotal)
	})
}

// SetScheduledJobs sets the live job gauge.
func SetScheduledJobs(n int) {
	ScheduledJobs.Set(float64(n))
}

// IncJobFire increments the job firing counter for the given result.
func IncJobFire(result string) {
	JobFiresTotal.WithLabelValues(result).Inc()
}

// IncPush increments the push counter for the given status.
func IncPush(status string) {
	PushesTotal.WithLabelValues(status).Inc()
}

// IncPayment increments the payment counter.
func IncPayment(provider, status string) {
	PaymentsTotal.WithLabelValues(provider, status).Inc()
}

// IncReading increments the reading counter for the given result.
func IncReading(result string) {
	ReadingsTotal.WithLabelValues(result).Inc()
}
