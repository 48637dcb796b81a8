package processing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pipeline throughput. All methods are safe on a nil
// receiver so wiring metrics stays optional.
type Metrics struct {
	processed  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duplicates prometheus.Counter
	duration   *prometheus.HistogramVec
	queueDepth prometheus.GaugeFunc
}

// NewMetrics registers the pipeline metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer, queue Queue) *Metrics {
	m := &Metrics{
		processed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "bimhub_jobs_processed_total",
			Help: "Jobs that completed successfully, by job type.",
		}, []string{"type"}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "bimhub_jobs_failed_total",
			Help: "Jobs that ended in failure, by job type and reason.",
		}, []string{"type", "reason"}),
		duplicates: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "bimhub_jobs_duplicates_total",
			Help: "Redelivered envelopes skipped by the idempotency ledger.",
		}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bimhub_job_duration_seconds",
			Help:    "Wall-clock duration of job handler execution.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"type"}),
	}
	if queue != nil {
		m.queueDepth = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bimhub_job_queue_depth",
			Help: "Envelopes waiting in the job queue.",
		}, func() float64 { return float64(queue.Len()) })
	}
	return m
}

// RecordProcessed counts a successful job.
func (m *Metrics) RecordProcessed(jobType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(jobType).Inc()
	m.duration.WithLabelValues(jobType).Observe(elapsed.Seconds())
}

// RecordFailure counts a failed job.
func (m *Metrics) RecordFailure(jobType, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(jobType, reason).Inc()
	m.duration.WithLabelValues(jobType).Observe(elapsed.Seconds())
}

// RecordDuplicate counts a skipped redelivery.
func (m *Metrics) RecordDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}
